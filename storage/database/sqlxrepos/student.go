package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/student"
)

const (
	classColumns   = "id, name, academic_year, teacher_id, created_at, updated_at"
	studentColumns = "id, nis, name, gender, birth_date, class_id, parent_id, created_at, updated_at"
)

var studentOrderings = map[string]bool{"nis": true, "name": true, "birth_date": true, "created_at": true}

type studentRepository struct {
	exec core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{exec: exec}
}

func stampClass(cls *student.Class) {
	cls.CreatedAt = stamp(cls.CreatedAt)
	cls.UpdatedAt = stamp(cls.UpdatedAt)
}

func stampStudent(st *student.Student) {
	st.CreatedAt = stamp(st.CreatedAt)
	st.UpdatedAt = stamp(st.UpdatedAt)
	if st.BirthDate.Valid {
		st.BirthDate.Time = st.BirthDate.Time.UTC()
	}
}

func (repo *studentRepository) CreateClass(ctx context.Context, cls student.Class) (student.Class, error) {
	cls.ID = uuid.New().String()
	stampClass(&cls)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO classes ("+classColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		cls.ID, cls.Name, cls.AcademicYear, cls.TeacherID, cls.CreatedAt, cls.UpdatedAt,
	)
	if err != nil {
		return student.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *studentRepository) GetClass(ctx context.Context, id string) (student.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Class{}, student.ErrClassNotFound
	}
	var cls student.Class
	err := repo.exec.GetContext(ctx, &cls, repo.exec.Rebind("SELECT "+classColumns+" FROM classes WHERE id = ?"), id)
	if err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "finding class")
	}
	return cls, nil
}

func (repo *studentRepository) QueryClasses(ctx context.Context, teacherID string) ([]student.Class, error) {
	var w where
	if teacherID != "" {
		w.add("teacher_id = ?", teacherID)
	}
	classes := make([]student.Class, 0)
	q := "SELECT " + classColumns + " FROM classes" + w.String() + " ORDER BY academic_year DESC, name ASC"
	if err := selectIn(ctx, repo.exec, &classes, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (repo *studentRepository) UpdateClass(ctx context.Context, cls student.Class) (student.Class, error) {
	stampClass(&cls)
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE classes SET name = ?, academic_year = ?, teacher_id = ?, updated_at = ? WHERE id = ?"),
		cls.Name, cls.AcademicYear, cls.TeacherID, cls.UpdatedAt, cls.ID,
	)
	if err != nil {
		return student.Class{}, errors.Wrap(err, "updating class")
	}
	if err = affectOne(res, student.ErrClassNotFound); err != nil {
		return student.Class{}, err
	}
	return cls, nil
}

func (repo *studentRepository) DeleteClass(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM classes WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return affectOne(res, student.ErrClassNotFound)
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	st.ID = uuid.New().String()
	stampStudent(&st)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		st.ID, st.NIS, st.Name, st.Gender, st.BirthDate, st.ClassID, st.ParentID, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	q := "SELECT " + studentColumns + " FROM students WHERE "
	var arg string
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		q += "id = ?"
		arg = filter.ID
	case filter.NIS != "":
		q += "nis = ?"
		arg = filter.NIS
	default:
		return student.Student{}, student.ErrNotFound
	}

	var st student.Student
	if err := repo.exec.GetContext(ctx, &st, repo.exec.Rebind(q), arg); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return st, nil
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, orderings []core.DBOrdering) ([]student.Student, error) {
	var w where
	if filter.Search != "" {
		val := "%" + core.CleanString(filter.Search, true /* lower */) + "%"
		w.add("LOWER(name) LIKE ? OR LOWER(nis) LIKE ?", val, val)
	}
	if len(filter.ClassIDs) > 0 {
		w.add("class_id IN (?)", filter.ClassIDs)
	}
	if filter.ParentID != "" {
		w.add("parent_id = ?", filter.ParentID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []student.Student{}, nil
		}
		w.add("id IN (?)", filter.IDs)
	}

	students := make([]student.Student, 0)
	q := "SELECT " + studentColumns + " FROM students" + w.String() + core.OrderBy(orderings, studentOrderings, "name ASC")
	if err := selectIn(ctx, repo.exec, &students, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	stampStudent(&st)
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`
		UPDATE students
		SET nis = ?, name = ?, gender = ?, birth_date = ?, class_id = ?, parent_id = ?, updated_at = ?
		WHERE id = ?`),
		st.NIS, st.Name, st.Gender, st.BirthDate, st.ClassID, st.ParentID, st.UpdatedAt, st.ID,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = affectOne(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return st, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.exec, "DELETE FROM students WHERE id IN (?)", ids)
	return errors.Wrap(err, "deleting students")
}
