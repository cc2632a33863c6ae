package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		AppName  string
		WorkDir  string
		TimeZone string // IANA name; all calendar-day comparisons happen here

		FrontendBaseURL string

		DefaultFromName string
		DefaultFromAddr string
		SendgridApiKey  string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Retry    RetryConfig
	}

	ServerConfig struct {
		Host               string
		Port               string
		SecretKey          string
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RetryConfig struct {
		MaxAttempts int
		Delay       time.Duration
	}
)

func (c Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

// Location resolves the configured time zone; falls back to UTC if the
// zone cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (dc DatabaseConfig) Address() string {
	return dc.Host + ":" + dc.Port
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Nota Mil")
	v.SetDefault("timeZone", "America/Sao_Paulo")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Nota Mil")
	v.SetDefault("defaultFromAddr", "noreply@localhost")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.secretKey", "q2w)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "notamil")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "notamil")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("retry.maxAttempts", 3)
	v.SetDefault("retry.delay", 50*time.Millisecond)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        testMode,
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		WorkDir:         wd,
		TimeZone:        v.GetString("timeZone"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromName: v.GetString("defaultFromName"),
		DefaultFromAddr: v.GetString("defaultFromAddr"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetString("server.port"),
			SecretKey:          v.GetString("server.secretKey"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.maxAttempts"),
			Delay:       v.GetDuration("retry.delay"),
		},
	}
}
