package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

type (
	// ProfileResponse is a student's own view of their account, subscription
	// standing included.
	ProfileResponse struct {
		student.Student
		SubscriptionActive bool `json:"subscription_active"`
		DaysRemaining      *int `json:"days_remaining,omitempty"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string          `json:"token"`
		Student student.Student `json:"student"`
	}
)

func (r LoginRequest) Validate() error { return core.Validate.Struct(r) }

type studentApi struct {
	svc student.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc student.Service) {
	api := studentApi{svc: svc}

	g.POST("/login", api.login)

	sg := g.Group("/students", jwt)
	sg.GET("/me", api.me, studentMiddleware())
	sg.GET("/me/ledger", api.ledger, studentMiddleware())
}

func (api *studentApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	std, err := api.svc.GetByEmail(ctx.Request().Context(), data.Email)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errUnauthorized
		}
		return err
	}
	if err = std.CheckPassword(data.Password); err != nil {
		return errUnauthorized
	}

	token, err := GenerateToken(GetPrincipalClaims(core.Principal{
		ID:    std.ID,
		Name:  std.Name,
		Email: std.Email,
		Roles: []string{core.RoleStudent},
	}))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Student: std})
}

func (api *studentApi) me(ctx echo.Context) error {
	std, err := api.contextStudent(ctx)
	if err != nil {
		return err
	}

	auth, err := api.svc.Authorize(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "authorizing student")
	}
	resp := ProfileResponse{Student: std, SubscriptionActive: auth.Allowed && std.Plan != student.PlanCredits}
	if std.Plan != student.PlanCredits {
		days := std.DaysRemaining(time.Now(), core.Conf.Location())
		resp.DaysRemaining = &days
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *studentApi) ledger(ctx echo.Context) error {
	std, err := api.contextStudent(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.LedgerHistory(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "querying ledger")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *studentApi) contextStudent(ctx echo.Context) (student.Student, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting context claims")
	}
	return api.svc.GetByEmail(ctx.Request().Context(), claims.Email)
}
