package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

type attendanceAPI struct {
	auth     *authAPI
	access   access
	svc      attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authAPI,
	svc attendance.Service,
	studentSvc student.Service,
	validate *validator.Validate,
) {
	api := attendanceAPI{
		auth:     auth,
		access:   access{auth: auth, students: studentSvc},
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/attendance-sessions", jwt, staffMiddleware(auth))
	eg.POST("", api.openSession)
	eg.POST("/:sid/mark-all", api.markAll)
	sessions := &sessionAPI{auth: auth, svc: attendanceSessions{svc}, validate: validate}
	sessions.register(eg)

	g.GET("/classes/:id/attendance/recap", api.recap, jwt, staffMiddleware(auth))
	g.GET("/students/:id/attendance", api.studentAttendances, jwt)
}

// attendanceSessions adapts attendance.Service to the shared session handlers.
type attendanceSessions struct {
	svc attendance.Service
}

func (as attendanceSessions) Sheet(ctx echo.Context, usr user.User, sid string) (edit.Sheet, error) {
	return as.svc.Sheet(ctx.Request().Context(), usr, sid)
}

func (as attendanceSessions) SetCells(ctx echo.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error) {
	return as.svc.SetCells(ctx.Request().Context(), usr, sid, cells)
}

func (as attendanceSessions) Save(ctx echo.Context, usr user.User, sid string) (edit.Result, edit.Sheet, error) {
	res, err := as.svc.Save(ctx.Request().Context(), usr, sid)
	return res.Result, res.Sheet, err
}

func (as attendanceSessions) Close(ctx echo.Context, usr user.User, sid string) error {
	return as.svc.CloseSession(ctx.Request().Context(), usr, sid)
}

// Handlers

func (api *attendanceAPI) openSession(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data attendance.OpenRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sheet, err := api.svc.OpenSession(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "opening attendance session")
	}
	return ctx.JSON(http.StatusCreated, sheet)
}

func (api *attendanceAPI) markAll(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data attendance.MarkAllRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAllRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sheet, err := api.svc.MarkAll(ctx.Request().Context(), usr, ctx.Param("sid"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceAPI) recapRequest(ctx echo.Context) (attendance.RecapRequest, error) {
	req := attendance.RecapRequest{From: ctx.QueryParam("from"), To: ctx.QueryParam("to")}
	if err := req.Validate(api.validate); err != nil {
		return req, err
	}
	return req, nil
}

func (api *attendanceAPI) recap(ctx echo.Context) error {
	cls, err := api.access.class(ctx)
	if err != nil {
		return err
	}
	req, err := api.recapRequest(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.Recap(ctx.Request().Context(), cls.ID, req)
	if err != nil {
		return errors.Wrap(err, "computing attendance recap")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attendanceAPI) studentAttendances(ctx echo.Context) error {
	st, err := api.access.student(ctx)
	if err != nil {
		return err
	}
	req, err := api.recapRequest(ctx)
	if err != nil {
		return err
	}
	atts, err := api.svc.StudentAttendances(ctx.Request().Context(), st, req)
	if err != nil {
		return errors.Wrap(err, "listing student attendances")
	}
	if atts == nil {
		atts = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, atts)
}
