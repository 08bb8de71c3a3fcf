package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
	reportsvc "github.com/tkceria/ceria/services/report"
)

type gradeAPI struct {
	auth     *authAPI
	access   access
	svc      grade.Service
	validate *validator.Validate
}

func registerGradeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authAPI,
	svc grade.Service,
	studentSvc student.Service,
	validate *validator.Validate,
) {
	api := gradeAPI{
		auth:     auth,
		access:   access{auth: auth, students: studentSvc},
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/semesters", jwt)
	sg.GET("", api.querySemesters)
	sg.POST("", api.createSemester, adminMiddleware(auth))

	ag := g.Group("/aspects", jwt)
	ag.GET("", api.queryAspects)
	ag.POST("", api.createAspect, adminMiddleware(auth))
	ag.POST("/:id/sub-aspects", api.createSubAspect, adminMiddleware(auth))

	eg := g.Group("/grade-sessions", jwt, staffMiddleware(auth))
	eg.POST("", api.openSession)
	sessions := &sessionAPI{auth: auth, svc: gradeSessions{svc}, validate: validate}
	sessions.register(eg)

	g.GET("/classes/:id/grades", api.report, jwt, staffMiddleware(auth))
	g.GET("/classes/:id/grades/export", api.export, jwt, staffMiddleware(auth))
	g.GET("/students/:id/grades", api.studentGrades, jwt)
}

// gradeSessions adapts grade.Service to the shared session handlers.
type gradeSessions struct {
	svc grade.Service
}

func (gs gradeSessions) Sheet(ctx echo.Context, usr user.User, sid string) (edit.Sheet, error) {
	return gs.svc.Sheet(ctx.Request().Context(), usr, sid)
}

func (gs gradeSessions) SetCells(ctx echo.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error) {
	return gs.svc.SetCells(ctx.Request().Context(), usr, sid, cells)
}

func (gs gradeSessions) Save(ctx echo.Context, usr user.User, sid string) (edit.Result, edit.Sheet, error) {
	res, err := gs.svc.Save(ctx.Request().Context(), usr, sid)
	return res.Result, res.Sheet, err
}

func (gs gradeSessions) Close(ctx echo.Context, usr user.User, sid string) error {
	return gs.svc.CloseSession(ctx.Request().Context(), usr, sid)
}

// Handlers

func (api *gradeAPI) querySemesters(ctx echo.Context) error {
	sems, err := api.svc.QuerySemesters(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying semesters")
	}
	if sems == nil {
		sems = []grade.Semester{}
	}
	return ctx.JSON(http.StatusOK, sems)
}

func (api *gradeAPI) createSemester(ctx echo.Context) error {
	var data grade.NewSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSemester")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

func (api *gradeAPI) queryAspects(ctx echo.Context) error {
	aspects, err := api.svc.QueryAspects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying aspects")
	}
	if aspects == nil {
		aspects = []grade.Aspect{}
	}
	return ctx.JSON(http.StatusOK, aspects)
}

func (api *gradeAPI) createAspect(ctx echo.Context) error {
	var data grade.NewAspect
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAspect")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	asp, err := api.svc.CreateAspect(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating aspect")
	}
	return ctx.JSON(http.StatusCreated, asp)
}

func (api *gradeAPI) createSubAspect(ctx echo.Context) error {
	var data grade.NewAspect
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAspect")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.svc.CreateSubAspect(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating sub-aspect")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *gradeAPI) openSession(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.OpenRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sheet, err := api.svc.OpenSession(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "opening grading session")
	}
	return ctx.JSON(http.StatusCreated, sheet)
}

func (api *gradeAPI) classReport(ctx echo.Context) (grade.Report, error) {
	cls, err := api.access.class(ctx)
	if err != nil {
		return grade.Report{}, err
	}
	semesterID := core.CleanString(ctx.QueryParam("semester_id"))
	if semesterID == "" {
		return grade.Report{}, core.NewValidationError(nil, core.FieldError{Field: "semester_id", Error: "semester_id is required"})
	}
	return api.svc.Report(ctx.Request().Context(), cls.ID, semesterID)
}

func (api *gradeAPI) report(ctx echo.Context) error {
	report, err := api.classReport(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *gradeAPI) export(ctx echo.Context) error {
	report, err := api.classReport(ctx)
	if err != nil {
		return err
	}
	buf, err := reportsvc.Buffer(func(w io.Writer) error { return reportsvc.ExportGrades(w, report) })
	if err != nil {
		return errors.Wrap(err, "exporting grades")
	}
	name := "nilai-" + strings.ReplaceAll(strings.ToLower(report.ClassName), " ", "-") + ".xlsx"
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, reportsvc.ContentType, buf.Bytes())
}

func (api *gradeAPI) studentGrades(ctx echo.Context) error {
	st, err := api.access.student(ctx)
	if err != nil {
		return err
	}
	semesterID := core.CleanString(ctx.QueryParam("semester_id"))
	if semesterID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "semester_id", Error: "semester_id is required"})
	}
	grades, err := api.svc.StudentGrades(ctx.Request().Context(), st.ID, semesterID)
	if err != nil {
		return errors.Wrap(err, "listing student grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}
