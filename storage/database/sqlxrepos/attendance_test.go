package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
	"github.com/tkceria/ceria/testutil"
)

func day(s string) time.Time {
	d, err := attendance.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func Test_attendanceRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewAttendanceRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	melati := testutil.CreateClass(t, studentRepo, "Melati", "")
	mawar := testutil.CreateClass(t, studentRepo, "Mawar", "")
	dina := testutil.CreateStudent(t, studentRepo, "1001", "Dina", melati.ID, "")
	eko := testutil.CreateStudent(t, studentRepo, "1002", "Eko", melati.ID, "")

	mark := func(classID, studentID, date, status string) attendance.Attendance {
		a, err := repo.CreateAttendance(ctx, attendance.Attendance{
			StudentID: studentID,
			ClassID:   classID,
			Date:      day(date),
			Status:    status,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
		require.NoError(t, err)
		return a
	}
	first := mark(melati.ID, dina.ID, "2024-08-05", attendance.StatusPresent)
	mark(melati.ID, eko.ID, "2024-08-05", attendance.StatusSick)
	mark(melati.ID, dina.ID, "2024-08-06", attendance.StatusPresent)
	mark(melati.ID, dina.ID, "2024-09-02", attendance.StatusAbsent)
	// Dina moved classes; marks of the old class stay with it
	mark(mawar.ID, dina.ID, "2024-08-07", attendance.StatusExcused)

	tests := []struct {
		name   string
		filter attendance.Filter
		want   int
	}{
		{name: "one day", filter: attendance.Filter{ClassID: melati.ID, From: day("2024-08-05"), To: day("2024-08-05")}, want: 2},
		{name: "inclusive range", filter: attendance.Filter{ClassID: melati.ID, From: day("2024-08-05"), To: day("2024-08-31")}, want: 3},
		{name: "one student", filter: attendance.Filter{ClassID: melati.ID, StudentIDs: []string{dina.ID}}, want: 3},
		{name: "other class", filter: attendance.Filter{ClassID: mawar.ID}, want: 1},
		{name: "no students", filter: attendance.Filter{ClassID: melati.ID, StudentIDs: []string{}}, want: 0},
		{name: "open start", filter: attendance.Filter{ClassID: melati.ID, To: day("2024-08-05")}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FilterAttendances(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, a := range got {
				assert.Equal(t, time.UTC, a.Date.Location())
			}
		})
	}

	t.Run("ordered by date", func(t *testing.T) {
		got, err := repo.FilterAttendances(ctx, attendance.Filter{ClassID: melati.ID, StudentIDs: []string{dina.ID}})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Date.Equal(day("2024-08-05")))
		assert.True(t, got[2].Date.Equal(day("2024-09-02")))
	})

	t.Run("update status", func(t *testing.T) {
		a, err := repo.UpdateAttendanceStatus(ctx, first.ID, "", time.Now())
		require.NoError(t, err)
		assert.Equal(t, "", a.Status)
		assert.True(t, a.Date.Equal(first.Date))

		_, err = repo.UpdateAttendanceStatus(ctx, "nope", attendance.StatusPresent, time.Now())
		assert.Equal(t, attendance.ErrNotFound, err)
	})

	t.Run("one mark per student and day", func(t *testing.T) {
		_, err := repo.CreateAttendance(ctx, attendance.Attendance{
			StudentID: eko.ID,
			ClassID:   melati.ID,
			Date:      day("2024-08-05"),
			Status:    attendance.StatusPresent,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
		assert.Error(t, err)
	})
}
