package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("student not found")
	ErrClassNotFound = errors.New("class not found")
	ErrNISExists     = errors.New("a student with this NIS already exists")

	NowFunc = time.Now // mockable
)

type (
	GetFilter struct {
		ID  string
		NIS string
	}

	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		// QueryClasses returns every class, or the classes of teacherID when set.
		QueryClasses(ctx context.Context, teacherID string) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		FilterStudents(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, teacherID string) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class, nc NewClass) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Student, error)
		ClassStudents(ctx context.Context, classID string) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student, ns NewStudent) (Student, error)
		DeleteStudents(ctx context.Context, ids ...string) error
		ImportStudents(ctx context.Context, classID string, rows []NewStudent) (ImportResult, error)
	}

	service struct {
		repo     Repository
		usrSvc   user.Service
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, validate *validator.Validate) Service {
	return &service{repo: repo, usrSvc: usrSvc, validate: validate}
}

func (svc *service) checkUserRole(ctx context.Context, field, id, role string) error {
	if id == "" {
		return nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: "user not found"})
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if usr.Role != role {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "user is not a " + role})
	}
	return nil
}

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if err := svc.checkUserRole(ctx, "teacher_id", nc.TeacherID, user.RoleTeacher); err != nil {
		return Class{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:         nc.Name,
		AcademicYear: nc.AcademicYear,
		TeacherID:    null.NewString(nc.TeacherID, nc.TeacherID != ""),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) QueryClasses(ctx context.Context, teacherID string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, teacherID)
}

func (svc *service) UpdateClass(ctx context.Context, cls Class, nc NewClass) (Class, error) {
	if err := svc.checkUserRole(ctx, "teacher_id", nc.TeacherID, user.RoleTeacher); err != nil {
		return Class{}, err
	}
	cls.Name = nc.Name
	cls.AcademicYear = nc.AcademicYear
	cls.TeacherID = null.NewString(nc.TeacherID, nc.TeacherID != "")
	cls.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) DeleteClass(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

// checkRefs validates the class and parent a student points to.
func (svc *service) checkRefs(ctx context.Context, ns NewStudent) error {
	if ns.ClassID != "" {
		if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
			if errors.Cause(err) == ErrClassNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
			}
			return errors.Wrap(err, "finding class by ID")
		}
	}
	return svc.checkUserRole(ctx, "parent_id", ns.ParentID, user.RoleParent)
}

func (svc *service) checkNIS(ctx context.Context, nis, excludedID string) error {
	st, err := svc.repo.GetStudent(ctx, GetFilter{NIS: nis})
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding student by NIS")
	case st.ID == excludedID:
		return nil
	}
	return core.NewValidationError(ErrNISExists, core.FieldError{Field: "nis", Error: ErrNISExists.Error()})
}

func applyNewStudent(st *Student, ns NewStudent) {
	st.NIS = ns.NIS
	st.Name = ns.Name
	st.Gender = ns.Gender
	st.BirthDate = null.Time{}
	if bd, err := time.Parse("2006-01-02", ns.BirthDate); err == nil {
		st.BirthDate = null.TimeFrom(bd.UTC())
	}
	st.ClassID = null.NewString(ns.ClassID, ns.ClassID != "")
	st.ParentID = null.NewString(ns.ParentID, ns.ParentID != "")
}

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkNIS(ctx, ns.NIS, ""); err != nil {
		return Student{}, err
	}
	if err := svc.checkRefs(ctx, ns); err != nil {
		return Student{}, err
	}
	now := NowFunc().UTC()
	st := Student{CreatedAt: now, UpdatedAt: now}
	applyNewStudent(&st, ns)
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *service) QueryStudents(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Student, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.FilterStudents(ctx, *filter, orderings)
}

// ClassStudents lists the students of a class ordered by name.
func (svc *service) ClassStudents(ctx context.Context, classID string) ([]Student, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return svc.repo.FilterStudents(ctx, QueryFilter{ClassIDs: []string{classID}}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) UpdateStudent(ctx context.Context, st Student, ns NewStudent) (Student, error) {
	if err := svc.checkNIS(ctx, ns.NIS, st.ID); err != nil {
		return Student{}, err
	}
	if err := svc.checkRefs(ctx, ns); err != nil {
		return Student{}, err
	}
	applyNewStudent(&st, ns)
	st.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) DeleteStudents(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}

// ImportStudents creates the students of rows in classID, updating those whose NIS is already known.
// Invalid rows are reported in the result and skipped, blank rows are ignored; rows[0] is spreadsheet row 2.
func (svc *service) ImportStudents(ctx context.Context, classID string, rows []NewStudent) (ImportResult, error) {
	res := ImportResult{Errors: make(map[int]string)}
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return res, err
	}

	for i, ns := range rows {
		rowNum := i + 2
		if ns == (NewStudent{}) {
			continue
		}
		ns.ClassID = classID
		if err := ns.Validate(svc.validate); err != nil {
			res.Errors[rowNum] = rowError(err)
			continue
		}

		existing, err := svc.repo.GetStudent(ctx, GetFilter{NIS: ns.NIS})
		switch {
		case errors.Cause(err) == ErrNotFound:
			if _, err = svc.CreateStudent(ctx, ns); err != nil {
				if !core.IsValidationError(err) {
					return res, errors.Wrapf(err, "importing row %d", rowNum)
				}
				res.Errors[rowNum] = rowError(err)
				continue
			}
			res.Created++
		case err != nil:
			return res, errors.Wrapf(err, "importing row %d", rowNum)
		default:
			if ns.ParentID == "" {
				ns.ParentID = existing.ParentID.String
			}
			if _, err = svc.UpdateStudent(ctx, existing, ns); err != nil {
				if !core.IsValidationError(err) {
					return res, errors.Wrapf(err, "importing row %d", rowNum)
				}
				res.Errors[rowNum] = rowError(err)
				continue
			}
			res.Updated++
		}
	}
	return res, nil
}

func rowError(err error) string {
	if vErrs, ok := errors.Cause(err).(validator.ValidationErrors); ok && len(vErrs) > 0 {
		return vErrs[0].Field() + ": " + vErrs[0].Tag()
	}
	return err.Error()
}
