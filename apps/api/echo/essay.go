package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
)

type (
	SubmitRequest struct {
		Theme      string     `json:"theme" validate:"required"`
		Body       string     `json:"body" validate:"required"`
		Kind       essay.Kind `json:"kind" validate:"required,essaykind"`
		Manuscript bool       `json:"manuscript"`
		// StudentEmail may only be set by admins submitting on behalf of a
		// student; for students it is taken from their claims.
		StudentEmail string `json:"student_email" validate:"omitempty,email"`
	}

	GradeRequest struct {
		SlotIndex int      `json:"slot_index" validate:"required,min=1,max=2"`
		Scores    []int    `json:"scores" validate:"required,len=5"`
		Comments  []string `json:"comments" validate:"omitempty,len=5"`
		Note      string   `json:"note"`
		AudioRef  string   `json:"audio_ref"`
	}

	ReturnRequest struct {
		Justification string `json:"justification" validate:"required"`
	}

	ResubmitRequest struct {
		Body string `json:"body" validate:"required"`
	}

	CorrectorRequest struct {
		Email             string `json:"email" validate:"required,email"`
		Name              string `json:"name" validate:"required"`
		AcceptsTyped      bool   `json:"accepts_typed"`
		AcceptsManuscript bool   `json:"accepts_manuscript"`
	}

	CancelResponse struct {
		RefundedCredits int `json:"refunded_credits"`
	}

	OkResponse struct {
		Ok bool `json:"ok"`
	}
)

func (r SubmitRequest) Validate() error    { return core.Validate.Struct(r) }
func (r GradeRequest) Validate() error     { return core.Validate.Struct(r) }
func (r ReturnRequest) Validate() error    { return core.Validate.Struct(r) }
func (r ResubmitRequest) Validate() error  { return core.Validate.Struct(r) }
func (r CorrectorRequest) Validate() error { return core.Validate.Struct(r) }

type essayApi struct {
	svc essay.Service
}

func registerEssayAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc essay.Service) {
	api := essayApi{svc: svc}

	eg := g.Group("/essays", jwt)
	eg.POST("", api.submit, studentMiddleware())
	eg.GET("", api.query, studentMiddleware())

	dg := eg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/assign", api.assign, adminMiddleware())
	dg.POST("/grade", api.grade, correctorMiddleware())
	dg.POST("/return", api.returnEssay, correctorMiddleware())
	dg.POST("/acknowledge", api.acknowledge, studentMiddleware())
	dg.POST("/resubmit", api.resubmit, studentMiddleware())
	dg.DELETE("", api.cancel, studentMiddleware())

	cg := g.Group("/correctors", jwt)
	cg.POST("", api.registerCorrector, adminMiddleware())
}

// Handlers

func (api *essayApi) submit(ctx echo.Context) error {
	var data SubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin || data.StudentEmail == "" {
		data.StudentEmail = claims.Email
	}

	e, err := api.svc.Submit(ctx.Request().Context(), essay.NewEssay{
		StudentEmail: data.StudentEmail,
		Theme:        data.Theme,
		Body:         data.Body,
		Kind:         data.Kind,
		Manuscript:   data.Manuscript,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *essayApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var ord Ordering
	ord.Bind(ctx)
	essays, err := api.svc.QueryByOwner(ctx.Request().Context(), claims.Email, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying essays")
	}
	return ctx.JSON(http.StatusOK, essays)
}

func (api *essayApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	email := core.CleanString(claims.Email, true /* lower */)
	isAssigned := e.Slots[0].Corrector == email || e.Slots[1].Corrector == email
	if !claims.IsAdmin && !(claims.IsCorrector && isAssigned) && e.OwnerEmail != email {
		return errHttpForbidden
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *essayApi) assign(ctx echo.Context) error {
	var data essay.Assignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assignment")
	}

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	e, err := api.svc.AssignCorrectors(ctx.Request().Context(), prin, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *essayApi) grade(ctx echo.Context) error {
	var data GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	grade := essay.SlotGrade{Note: data.Note, AudioRef: data.AudioRef}
	copy(grade.Scores[:], data.Scores)
	copy(grade.Comments[:], data.Comments)

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	e, err := api.svc.GradeSlot(ctx.Request().Context(), prin, ctx.Param("id"), data.SlotIndex, grade)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *essayApi) returnEssay(ctx echo.Context) error {
	var data ReturnRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReturnRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	e, err := api.svc.Return(ctx.Request().Context(), prin, ctx.Param("id"), data.Justification)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *essayApi) acknowledge(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.AcknowledgeReturn(ctx.Request().Context(), ctx.Param("id"), claims.Email); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

func (api *essayApi) resubmit(ctx echo.Context) error {
	var data ResubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResubmitRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	e, err := api.svc.Resubmit(ctx.Request().Context(), ctx.Param("id"), claims.Email, data.Body)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *essayApi) cancel(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	refunded, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), claims.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CancelResponse{RefundedCredits: refunded})
}

func (api *essayApi) registerCorrector(ctx echo.Context) error {
	var data CorrectorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CorrectorRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	c, err := api.svc.RegisterCorrector(ctx.Request().Context(), prin, essay.Corrector{
		Email:             data.Email,
		Name:              data.Name,
		AcceptsTyped:      data.AcceptsTyped,
		AcceptsManuscript: data.AcceptsManuscript,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}
