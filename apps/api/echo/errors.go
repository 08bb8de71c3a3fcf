package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/news"
	"github.com/tkceria/ceria/core/payment"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// sentinelCodes maps domain errors to the status they are answered with; the message is the error text.
var sentinelCodes = map[error]int{
	core.ErrPermissionDenied: http.StatusForbidden,

	edit.ErrSessionNotFound: http.StatusNotFound,
	edit.ErrUnknownSubject:  http.StatusBadRequest,

	user.ErrNotFound:           http.StatusNotFound,
	student.ErrNotFound:        http.StatusNotFound,
	student.ErrClassNotFound:   http.StatusNotFound,
	grade.ErrNotFound:          http.StatusNotFound,
	grade.ErrSemesterNotFound:  http.StatusNotFound,
	grade.ErrAspectNotFound:    http.StatusNotFound,
	grade.ErrSubAspectNotFound: http.StatusNotFound,
	attendance.ErrNotFound:     http.StatusNotFound,
	payment.ErrNotFound:        http.StatusNotFound,
	payment.ErrTypeNotFound:    http.StatusNotFound,
	payment.ErrAlreadyPaid:     http.StatusConflict,
	payment.ErrTypeInUse:       http.StatusConflict,
	news.ErrNotFound:           http.StatusNotFound,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := sentinelCodes[cause]; ok {
			code = c
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
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
					fldErrs[vErr.Field()] = vErr.Translate(translator)
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
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if u, ok := ctx.Get(contextUserKey).(user.User); ok {
					usr = u
				} else if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
					usr.Role = claims.Role
				}
				logger.Error(msg, errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), usr)

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
