package grade

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

// Kind is the edit.Scope kind of grading sessions.
const Kind = "grade"

var (
	// errors
	ErrNotFound          = errors.New("grade not found")
	ErrSemesterNotFound  = errors.New("semester not found")
	ErrAspectNotFound    = errors.New("aspect not found")
	ErrSubAspectNotFound = errors.New("sub-aspect not found")
)

type (
	Repository interface {
		CreateSemester(ctx context.Context, sem Semester) (Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)

		CreateAspect(ctx context.Context, asp Aspect) (Aspect, error)
		CreateSubAspect(ctx context.Context, sub SubAspect) (SubAspect, error)
		// GetAspect returns the aspect with its sub-aspects.
		GetAspect(ctx context.Context, id string) (Aspect, error)
		// QueryAspects returns every aspect with its sub-aspects, ordered by position.
		QueryAspects(ctx context.Context) ([]Aspect, error)

		FilterGrades(ctx context.Context, filter Filter) ([]Grade, error)
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		UpdateGradeDescription(ctx context.Context, id, description string, at time.Time) (Grade, error)
	}

	Service interface {
		CreateSemester(ctx context.Context, ns NewSemester) (Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)
		CreateAspect(ctx context.Context, na NewAspect) (Aspect, error)
		CreateSubAspect(ctx context.Context, aspectID string, na NewAspect) (SubAspect, error)
		QueryAspects(ctx context.Context) ([]Aspect, error)

		OpenSession(ctx context.Context, usr user.User, req OpenRequest) (edit.Sheet, error)
		Sheet(ctx context.Context, usr user.User, sid string) (edit.Sheet, error)
		SetCells(ctx context.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error)
		Save(ctx context.Context, usr user.User, sid string) (SaveResult, error)
		CloseSession(ctx context.Context, usr user.User, sid string) error

		Report(ctx context.Context, classID, semesterID string) (Report, error)
		StudentGrades(ctx context.Context, studentID, semesterID string) ([]Grade, error)
	}

	// Options configures the editing sessions.
	Options struct {
		Sessions    *edit.Sessions
		Locker      edit.Locker
		Recorder    edit.Recorder
		Policy      edit.FailurePolicy
		Concurrency int
	}

	SaveResult struct {
		edit.Result
		Sheet edit.Sheet `json:"sheet"`
	}

	service struct {
		repo       Repository
		studentSvc student.Service
		opts       Options
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, studentSvc student.Service, opts Options) Service {
	if opts.Sessions == nil {
		opts.Sessions = edit.NewSessions(0)
	}
	if opts.Locker == nil {
		opts.Locker = edit.NewLocalLocker()
	}
	return &service{repo: repo, studentSvc: studentSvc, opts: opts}
}

func (svc *service) CreateSemester(ctx context.Context, ns NewSemester) (Semester, error) {
	starts, _ := time.Parse("2006-01-02", ns.StartsOn)
	ends, _ := time.Parse("2006-01-02", ns.EndsOn)
	return svc.repo.CreateSemester(ctx, Semester{
		ID:           uuid.NewString(),
		Name:         ns.Name,
		AcademicYear: ns.AcademicYear,
		StartsOn:     starts.UTC(),
		EndsOn:       ends.UTC(),
	})
}

func (svc *service) GetSemester(ctx context.Context, id string) (Semester, error) {
	return svc.repo.GetSemester(ctx, id)
}

func (svc *service) QuerySemesters(ctx context.Context) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx)
}

func (svc *service) CreateAspect(ctx context.Context, na NewAspect) (Aspect, error) {
	return svc.repo.CreateAspect(ctx, Aspect{ID: uuid.NewString(), Name: na.Name, Position: na.Position})
}

func (svc *service) CreateSubAspect(ctx context.Context, aspectID string, na NewAspect) (SubAspect, error) {
	if _, err := svc.repo.GetAspect(ctx, aspectID); err != nil {
		return SubAspect{}, err
	}
	return svc.repo.CreateSubAspect(ctx, SubAspect{
		ID:       uuid.NewString(),
		AspectID: aspectID,
		Name:     na.Name,
		Position: na.Position,
	})
}

func (svc *service) QueryAspects(ctx context.Context) ([]Aspect, error) {
	return svc.repo.QueryAspects(ctx)
}

// canEdit reports whether usr may grade the students of cls.
func canEdit(usr user.User, cls student.Class) bool {
	return usr.IsAdmin() || (usr.IsTeacher() && cls.TeacherID.Valid && cls.TeacherID.String == usr.ID)
}

func (svc *service) OpenSession(ctx context.Context, usr user.User, req OpenRequest) (edit.Sheet, error) {
	cls, err := svc.studentSvc.GetClass(ctx, req.ClassID)
	if err != nil {
		return edit.Sheet{}, validationOr(err, student.ErrClassNotFound, "class_id")
	}
	if !canEdit(usr, cls) {
		return edit.Sheet{}, core.ErrPermissionDenied
	}
	if _, err = svc.repo.GetSemester(ctx, req.SemesterID); err != nil {
		return edit.Sheet{}, validationOr(err, ErrSemesterNotFound, "semester_id")
	}
	asp, err := svc.repo.GetAspect(ctx, req.AspectID)
	if err != nil {
		return edit.Sheet{}, validationOr(err, ErrAspectNotFound, "aspect_id")
	}
	var subAspectID null.String
	if req.SubAspectID != "" {
		if _, ok := asp.SubAspect(req.SubAspectID); !ok {
			return edit.Sheet{}, core.NewValidationError(ErrSubAspectNotFound,
				core.FieldError{Field: "sub_aspect_id", Error: ErrSubAspectNotFound.Error()})
		}
		subAspectID = null.StringFrom(req.SubAspectID)
	}

	students, err := svc.studentSvc.ClassStudents(ctx, cls.ID)
	if err != nil {
		return edit.Sheet{}, errors.Wrap(err, "listing class students")
	}
	subjects := make([]edit.Subject, 0, len(students))
	for _, st := range students {
		subjects = append(subjects, edit.Subject{ID: st.ID, Label: st.Name})
	}

	scope := edit.Scope{Kind: Kind, ID: cls.ID + ":" + Context(req.SemesterID, req.AspectID, subAspectID).String()}
	rec := edit.NewReconciler(scope, NewStore(svc.repo),
		edit.Filter{SubjectIDs: student.IDs(students), Context: Context(req.SemesterID, req.AspectID, subAspectID)},
		edit.WithLocker(svc.opts.Locker),
		edit.WithRecorder(svc.opts.Recorder),
		edit.WithFailurePolicy(svc.opts.Policy),
		edit.WithConcurrency(svc.opts.Concurrency),
	)
	if len(students) > 0 {
		if err = rec.Load(ctx); err != nil {
			return edit.Sheet{}, errors.Wrap(err, "loading grades")
		}
	}
	return svc.opts.Sessions.Open(usr.ID, rec, subjects).Sheet(), nil
}

func (svc *service) session(usr user.User, sid string) (*edit.Session, error) {
	return svc.opts.Sessions.Lookup(sid, usr.ID, Kind)
}

func (svc *service) Sheet(_ context.Context, usr user.User, sid string) (edit.Sheet, error) {
	sess, err := svc.session(usr, sid)
	if err != nil {
		return edit.Sheet{}, err
	}
	return sess.Sheet(), nil
}

func checkDescription(c edit.CellInput) error {
	if utf8.RuneCountInString(c.Value) > maxDescriptionLen {
		return core.NewValidationError(nil, core.FieldError{
			Field: c.SubjectID,
			Error: "description is too long",
		})
	}
	return nil
}

func (svc *service) SetCells(_ context.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error) {
	sess, err := svc.session(usr, sid)
	if err != nil {
		return edit.Sheet{}, err
	}
	if err = sess.StageCells(cells, checkDescription); err != nil {
		return edit.Sheet{}, err
	}
	return sess.Sheet(), nil
}

func (svc *service) Save(ctx context.Context, usr user.User, sid string) (SaveResult, error) {
	sess, err := svc.session(usr, sid)
	if err != nil {
		return SaveResult{}, err
	}
	res, err := sess.Save(ctx)
	return SaveResult{Result: res, Sheet: sess.Sheet()}, err
}

func (svc *service) CloseSession(_ context.Context, usr user.User, sid string) error {
	if _, err := svc.session(usr, sid); err != nil {
		return err
	}
	return svc.opts.Sessions.Close(sid)
}

func (svc *service) Report(ctx context.Context, classID, semesterID string) (Report, error) {
	cls, err := svc.studentSvc.GetClass(ctx, classID)
	if err != nil {
		return Report{}, err
	}
	sem, err := svc.repo.GetSemester(ctx, semesterID)
	if err != nil {
		return Report{}, err
	}
	aspects, err := svc.repo.QueryAspects(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying aspects")
	}
	students, err := svc.studentSvc.ClassStudents(ctx, classID)
	if err != nil {
		return Report{}, errors.Wrap(err, "listing class students")
	}

	report := Report{ClassName: cls.Name, Semester: sem, AcademicYear: cls.AcademicYear}
	colIdx := make(map[edit.Key]int)
	for _, asp := range aspects {
		colIdx[columnKey(asp.ID, "")] = len(report.Columns)
		report.Columns = append(report.Columns, ReportColumn{AspectID: asp.ID, Title: asp.Name})
		for _, sub := range asp.SubAspects {
			colIdx[columnKey(asp.ID, sub.ID)] = len(report.Columns)
			report.Columns = append(report.Columns, ReportColumn{
				AspectID:    asp.ID,
				SubAspectID: sub.ID,
				Title:       asp.Name + " / " + sub.Name,
			})
		}
	}
	if len(students) == 0 {
		return report, nil
	}

	grades, err := svc.repo.FilterGrades(ctx, Filter{
		StudentIDs:   student.IDs(students),
		SemesterID:   semesterID,
		AnySubAspect: true,
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "filtering grades")
	}
	byStudent := make(map[string][]Grade)
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}

	for _, st := range students {
		row := ReportRow{StudentID: st.ID, NIS: st.NIS, StudentName: st.Name, Values: make([]string, len(report.Columns))}
		for _, g := range byStudent[st.ID] {
			if i, ok := colIdx[columnKey(g.AspectID, g.SubAspectID.String)]; ok {
				row.Values[i] = g.Description
			}
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

func columnKey(aspectID, subAspectID string) edit.Key {
	return edit.DeriveKey(aspectID, subAspectID)
}

// StudentGrades lists the grades of a student for a semester, ordered by aspect position.
func (svc *service) StudentGrades(ctx context.Context, studentID, semesterID string) ([]Grade, error) {
	grades, err := svc.repo.FilterGrades(ctx, Filter{
		StudentIDs:   []string{studentID},
		SemesterID:   semesterID,
		AnySubAspect: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "filtering grades")
	}
	aspects, err := svc.repo.QueryAspects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying aspects")
	}
	pos := make(map[string]int)
	for i, asp := range aspects {
		pos[asp.ID] = i * 1000
		for j, sub := range asp.SubAspects {
			pos[sub.ID] = i*1000 + j + 1
		}
	}
	sort.SliceStable(grades, func(i, j int) bool {
		pi, pj := pos[grades[i].AspectID], pos[grades[j].AspectID]
		if grades[i].SubAspectID.Valid {
			pi = pos[grades[i].SubAspectID.String]
		}
		if grades[j].SubAspectID.Valid {
			pj = pos[grades[j].SubAspectID.String]
		}
		return pi < pj
	})
	return grades, nil
}

// validationOr turns a not-found err into a validation error on field.
func validationOr(err, notFound error, field string) error {
	if errors.Cause(err) == notFound {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: notFound.Error()})
	}
	return err
}
