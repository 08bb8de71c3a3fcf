package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

// access scopes classes and students to what the context user may see:
// admins see everything, teachers their classes, parents their children.
// Records outside of that scope are reported as not found.
type access struct {
	auth     *authAPI
	students student.Service
}

func (a access) children(ctx echo.Context, parent user.User) ([]student.Student, error) {
	students, err := a.students.QueryStudents(ctx.Request().Context(), &student.QueryFilter{ParentID: parent.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	return students, nil
}

func (a access) canSeeClass(ctx echo.Context, usr user.User, cls student.Class) (bool, error) {
	switch {
	case usr.IsAdmin():
		return true, nil
	case usr.IsTeacher():
		return cls.TeacherID.Valid && cls.TeacherID.String == usr.ID, nil
	case usr.IsParent():
		children, err := a.children(ctx, usr)
		if err != nil {
			return false, err
		}
		for _, st := range children {
			if st.ClassID.Valid && st.ClassID.String == cls.ID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (a access) canSeeStudent(ctx echo.Context, usr user.User, st student.Student) (bool, error) {
	switch {
	case usr.IsAdmin():
		return true, nil
	case usr.IsParent():
		return st.ParentID.Valid && st.ParentID.String == usr.ID, nil
	case usr.IsTeacher():
		if !st.ClassID.Valid {
			return false, nil
		}
		cls, err := a.students.GetClass(ctx.Request().Context(), st.ClassID.String)
		if err != nil {
			if errors.Cause(err) == student.ErrClassNotFound {
				return false, nil
			}
			return false, errors.Wrap(err, "finding class by ID")
		}
		return cls.TeacherID.Valid && cls.TeacherID.String == usr.ID, nil
	}
	return false, nil
}

// class loads the class of the `:id` param.
func (a access) class(ctx echo.Context) (student.Class, error) {
	usr, err := a.auth.contextUser(ctx)
	if err != nil {
		return student.Class{}, err
	}
	cls, err := a.students.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return student.Class{}, err
	}
	ok, err := a.canSeeClass(ctx, usr, cls)
	if err != nil {
		return student.Class{}, err
	}
	if !ok {
		return student.Class{}, student.ErrClassNotFound
	}
	return cls, nil
}

// student loads the student of the `:id` param.
func (a access) student(ctx echo.Context) (student.Student, error) {
	usr, err := a.auth.contextUser(ctx)
	if err != nil {
		return student.Student{}, err
	}
	st, err := a.students.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return student.Student{}, err
	}
	ok, err := a.canSeeStudent(ctx, usr, st)
	if err != nil {
		return student.Student{}, err
	}
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	return st, nil
}
