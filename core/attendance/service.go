package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

// Kind is the edit.Scope kind of attendance sessions.
const Kind = "attendance"

var (
	// errors
	ErrNotFound = errors.New("attendance not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		FilterAttendances(ctx context.Context, filter Filter) ([]Attendance, error)
		CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		UpdateAttendanceStatus(ctx context.Context, id, status string, at time.Time) (Attendance, error)
	}

	Service interface {
		OpenSession(ctx context.Context, usr user.User, req OpenRequest) (edit.Sheet, error)
		Sheet(ctx context.Context, usr user.User, sid string) (edit.Sheet, error)
		SetCells(ctx context.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error)
		// MarkAll sets every row of the sheet to status.
		MarkAll(ctx context.Context, usr user.User, sid, status string) (edit.Sheet, error)
		Save(ctx context.Context, usr user.User, sid string) (SaveResult, error)
		CloseSession(ctx context.Context, usr user.User, sid string) error

		Recap(ctx context.Context, classID string, req RecapRequest) ([]RecapRow, error)
		StudentAttendances(ctx context.Context, st student.Student, req RecapRequest) ([]Attendance, error)
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

func canEdit(usr user.User, cls student.Class) bool {
	return usr.IsAdmin() || (usr.IsTeacher() && cls.TeacherID.Valid && cls.TeacherID.String == usr.ID)
}

func (svc *service) OpenSession(ctx context.Context, usr user.User, req OpenRequest) (edit.Sheet, error) {
	cls, err := svc.studentSvc.GetClass(ctx, req.ClassID)
	if err != nil {
		if errors.Cause(err) == student.ErrClassNotFound {
			return edit.Sheet{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return edit.Sheet{}, err
	}
	if !canEdit(usr, cls) {
		return edit.Sheet{}, core.ErrPermissionDenied
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return edit.Sheet{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
	}
	if date.After(NowFunc().UTC()) {
		return edit.Sheet{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date cannot be in the future"})
	}

	students, err := svc.studentSvc.ClassStudents(ctx, cls.ID)
	if err != nil {
		return edit.Sheet{}, errors.Wrap(err, "listing class students")
	}
	subjects := make([]edit.Subject, 0, len(students))
	for _, st := range students {
		subjects = append(subjects, edit.Subject{ID: st.ID, Label: st.Name})
	}

	scope := edit.Scope{Kind: Kind, ID: cls.ID + ":" + Context(date).String()}
	rec := edit.NewReconciler(scope, NewStore(svc.repo, cls.ID),
		edit.Filter{SubjectIDs: student.IDs(students), Context: Context(date)},
		edit.WithLocker(svc.opts.Locker),
		edit.WithRecorder(svc.opts.Recorder),
		edit.WithFailurePolicy(svc.opts.Policy),
		edit.WithConcurrency(svc.opts.Concurrency),
	)
	if len(students) > 0 {
		if err = rec.Load(ctx); err != nil {
			return edit.Sheet{}, errors.Wrap(err, "loading attendances")
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

func checkStatus(c edit.CellInput) error {
	if !ValidStatus(c.Value) {
		return core.NewValidationError(nil, core.FieldError{
			Field: c.SubjectID,
			Error: "status must be one of " + strings.Join(Statuses, ", ") + " or empty",
		})
	}
	return nil
}

func (svc *service) SetCells(_ context.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error) {
	sess, err := svc.session(usr, sid)
	if err != nil {
		return edit.Sheet{}, err
	}
	for i := range cells {
		cells[i].Value = core.CleanString(cells[i].Value, true /* lower */)
	}
	if err = sess.StageCells(cells, checkStatus); err != nil {
		return edit.Sheet{}, err
	}
	return sess.Sheet(), nil
}

func (svc *service) MarkAll(ctx context.Context, usr user.User, sid, status string) (edit.Sheet, error) {
	sess, err := svc.session(usr, sid)
	if err != nil {
		return edit.Sheet{}, err
	}
	cells := make([]edit.CellInput, 0, len(sess.Subjects))
	for _, sub := range sess.Subjects {
		cells = append(cells, edit.CellInput{SubjectID: sub.ID, Value: status})
	}
	return svc.SetCells(ctx, usr, sid, cells)
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

// Recap counts the statuses of every student of a class over the requested period.
func (svc *service) Recap(ctx context.Context, classID string, req RecapRequest) ([]RecapRow, error) {
	from, err := ParseDate(req.From)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "from", Error: "invalid date"})
	}
	to, err := ParseDate(req.To)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "to", Error: "invalid date"})
	}
	students, err := svc.studentSvc.ClassStudents(ctx, classID)
	if err != nil {
		return nil, err
	}

	rows := make([]RecapRow, 0, len(students))
	if len(students) == 0 {
		return rows, nil
	}
	idx := make(map[string]int, len(students))
	for i, st := range students {
		idx[st.ID] = i
		rows = append(rows, RecapRow{StudentID: st.ID, StudentName: st.Name})
	}

	atts, err := svc.repo.FilterAttendances(ctx, Filter{
		ClassID:    classID,
		StudentIDs: student.IDs(students),
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "filtering attendances")
	}
	for _, a := range atts {
		if i, ok := idx[a.StudentID]; ok {
			rows[i].add(a.Status)
		}
	}
	return rows, nil
}

// StudentAttendances lists the marked days of a student over the requested period.
func (svc *service) StudentAttendances(ctx context.Context, st student.Student, req RecapRequest) ([]Attendance, error) {
	if !st.ClassID.Valid {
		return []Attendance{}, nil
	}
	from, err := ParseDate(req.From)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "from", Error: "invalid date"})
	}
	to, err := ParseDate(req.To)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "to", Error: "invalid date"})
	}
	return svc.repo.FilterAttendances(ctx, Filter{
		ClassID:    st.ClassID.String,
		StudentIDs: []string{st.ID},
		From:       from,
		To:         to,
	})
}
