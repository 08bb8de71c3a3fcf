package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/attendance"
)

const attendanceColumns = "id, student_id, class_id, date, status, created_at, updated_at"

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo *attendanceRepository) FilterAttendances(ctx context.Context, filter attendance.Filter) ([]attendance.Attendance, error) {
	var w where
	if filter.ClassID != "" {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentIDs != nil {
		if len(filter.StudentIDs) == 0 {
			return []attendance.Attendance{}, nil
		}
		w.add("student_id IN (?)", filter.StudentIDs)
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To.UTC())
	}

	atts := make([]attendance.Attendance, 0)
	q := "SELECT " + attendanceColumns + " FROM attendances" + w.String() + " ORDER BY date ASC, student_id ASC"
	if err := selectIn(ctx, repo.exec, &atts, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering attendances")
	}
	for i := range atts {
		atts[i].Date = atts[i].Date.UTC()
	}
	return atts, nil
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	a.ID = uuid.New().String()
	a.Date = a.Date.UTC()
	a.CreatedAt = stamp(a.CreatedAt)
	a.UpdatedAt = stamp(a.UpdatedAt)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO attendances ("+attendanceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		a.ID, a.StudentID, a.ClassID, a.Date, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

func (repo *attendanceRepository) UpdateAttendanceStatus(ctx context.Context, id, status string, at time.Time) (attendance.Attendance, error) {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE attendances SET status = ?, updated_at = ? WHERE id = ?"),
		status, stamp(at), id,
	)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if err = affectOne(res, attendance.ErrNotFound); err != nil {
		return attendance.Attendance{}, err
	}

	var a attendance.Attendance
	if err = repo.exec.GetContext(ctx, &a, repo.exec.Rebind("SELECT "+attendanceColumns+" FROM attendances WHERE id = ?"), id); err != nil {
		return attendance.Attendance{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding attendance")
	}
	a.Date = a.Date.UTC()
	return a, nil
}
