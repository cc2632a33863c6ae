package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch errors.Cause(err) {
			case student.ErrNotFound, essay.ErrNotFound, essay.ErrCorrectorNotFound:
				code = http.StatusNotFound
				message = errors.Cause(err).Error()
			case core.ErrPermissionDenied:
				code = http.StatusForbidden
				message = core.ErrPermissionDenied.Error()
			case student.ErrInsufficientCredits:
				code = http.StatusBadRequest
				message = student.ErrInsufficientCredits.Error()
			case essay.ErrInvalidTransition, essay.ErrCorrectionAlreadyStarted:
				code = http.StatusConflict
				message = errors.Cause(err).Error()
			case core.ErrWriteConflict:
				code = http.StatusConflict
				message = "temporary write conflict, please retry"
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var prin core.Principal
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					prin.ID = claims.Subject
					prin.Name = claims.Name
					prin.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), prin)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
