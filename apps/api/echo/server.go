package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		EssaySvc   essay.Service
		StudentSvc student.Service
		Logger     core.Logger
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerEssayAPI(v1, jwt, s.opts.EssaySvc)
	registerStudentAPI(v1, jwt, s.opts.StudentSvc)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
			s.opts.Logger.Error("server error", err)
			s.signalShutdown()
		}
	}()

	<-s.shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		s.opts.Logger.Fatal("graceful shutdown failed", err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// signalShutdown triggers a graceful server shutdown; called when an
// unrecoverable operational error surfaces.
func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Nota Mil API!")
}
