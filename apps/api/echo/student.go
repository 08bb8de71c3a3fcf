package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/student"
	reportsvc "github.com/tkceria/ceria/services/report"
)

type studentAPI struct {
	auth     *authAPI
	access   access
	svc      student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authAPI, svc student.Service, validate *validator.Validate) {
	api := studentAPI{
		auth:     auth,
		access:   access{auth: auth, students: svc},
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/classes", jwt)
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass, adminMiddleware(auth))
	cg.GET("/:id", api.retrieveClass)
	cg.PUT("/:id", api.updateClass, adminMiddleware(auth))
	cg.DELETE("/:id", api.destroyClass, adminMiddleware(auth))
	cg.GET("/:id/students", api.classStudents)
	cg.POST("/:id/students/import", api.importStudents, adminMiddleware(auth))

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent, adminMiddleware(auth))
	sg.DELETE("", api.destroyStudents, adminMiddleware(auth))
	sg.GET("/import-template", api.importTemplate, adminMiddleware(auth))
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent, adminMiddleware(auth))
	sg.DELETE("/:id", api.destroyStudent, adminMiddleware(auth))
}

// Classes

func (api *studentAPI) queryClasses(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var teacherID string
	if usr.IsTeacher() {
		teacherID = usr.ID
	}
	classes, err := api.svc.QueryClasses(ctx.Request().Context(), teacherID)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}

	visible := make([]student.Class, 0, len(classes))
	if usr.IsParent() {
		for _, cls := range classes {
			ok, err := api.access.canSeeClass(ctx, usr, cls)
			if err != nil {
				return err
			}
			if ok {
				visible = append(visible, cls)
			}
		}
	} else {
		visible = append(visible, classes...)
	}
	return ctx.JSON(http.StatusOK, visible)
}

func (api *studentAPI) createClass(ctx echo.Context) error {
	var data student.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *studentAPI) retrieveClass(ctx echo.Context) error {
	cls, err := api.access.class(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *studentAPI) updateClass(ctx echo.Context) error {
	cls, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	var data student.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	cls, err = api.svc.UpdateClass(ctx.Request().Context(), cls, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *studentAPI) destroyClass(ctx echo.Context) error {
	if err := api.svc.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentAPI) classStudents(ctx echo.Context) error {
	cls, err := api.access.class(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.ClassStudents(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentAPI) importStudents(ctx echo.Context) error {
	cls, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "an .xlsx file is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = file.Close() }()

	rows, err := reportsvc.ParseStudents(file)
	if err != nil {
		switch errors.Cause(err) {
		case reportsvc.ErrNoSheet, reportsvc.ErrMissingHeader:
			return core.NewValidationError(err, core.FieldError{Field: "file", Error: errors.Cause(err).Error()})
		}
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "invalid spreadsheet"})
	}

	res, err := api.svc.ImportStudents(ctx.Request().Context(), cls.ID, rows)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentAPI) importTemplate(ctx echo.Context) error {
	buf, err := reportsvc.Buffer(reportsvc.StudentTemplate)
	if err != nil {
		return errors.Wrap(err, "writing student template")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="siswa.xlsx"`)
	return ctx.Blob(http.StatusOK, reportsvc.ContentType, buf.Bytes())
}

// Students

func (api *studentAPI) queryStudents(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(student.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	switch {
	case usr.IsParent():
		filter.ParentID = usr.ID
	case usr.IsTeacher():
		classes, err := api.svc.QueryClasses(ctx.Request().Context(), usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying classes")
		}
		ids := make([]string, 0, len(classes))
		for _, cls := range classes {
			ids = append(ids, cls.ID)
		}
		filter.ClassIDs = intersect(filter.ClassIDs, ids)
		if len(filter.ClassIDs) == 0 {
			return ctx.JSON(http.StatusOK, []student.Student{})
		}
	}

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentAPI) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentAPI) retrieveStudent(ctx echo.Context) error {
	st, err := api.access.student(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentAPI) updateStudent(ctx echo.Context) error {
	st, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	var data student.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	st, err = api.svc.UpdateStudent(ctx.Request().Context(), st, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentAPI) destroyStudent(ctx echo.Context) error {
	if _, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.DeleteStudents(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentAPI) destroyStudents(ctx echo.Context) error {
	var query destroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to destroyMultipleRequest")
	}
	if len(query.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteStudents(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}
