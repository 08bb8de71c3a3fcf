// Package testutil prepares databases and fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
	"github.com/tkceria/ceria/storage/database"
)

// PrepareDB opens a fresh, migrated in-memory SQLite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(context.Background(), db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewValidator returns a validator with every custom tag of the app registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorAndTranslator()
	return validate
}

// NewValidatorAndTranslator returns a validator with every custom rule registered,
// and the translator its messages were registered on.
func NewValidatorAndTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	student.RegisterValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo student.Repository, name, teacherID string) student.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), student.Class{
		Name:         name,
		AcademicYear: "2024/2025",
		TeacherID:    null.NewString(teacherID, teacherID != ""),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateStudent(t *testing.T, repo student.Repository, nis, name, classID, parentID string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	st, err := repo.CreateStudent(context.Background(), student.Student{
		NIS:       nis,
		Name:      name,
		Gender:    student.GenderFemale,
		ClassID:   null.NewString(classID, classID != ""),
		ParentID:  null.NewString(parentID, parentID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateSemester(t *testing.T, repo grade.Repository, name string) grade.Semester {
	t.Helper()
	sem, err := repo.CreateSemester(context.Background(), grade.Semester{
		Name:         name,
		AcademicYear: "2024/2025",
		StartsOn:     time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		EndsOn:       time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateSemester() failed: %v", err)
	}
	return sem
}

func CreateAspect(t *testing.T, repo grade.Repository, name string, position int, subAspects ...string) grade.Aspect {
	t.Helper()
	ctx := context.Background()
	asp, err := repo.CreateAspect(ctx, grade.Aspect{Name: name, Position: position})
	if err != nil {
		t.Fatalf("CreateAspect() failed: %v", err)
	}
	for i, subName := range subAspects {
		sub, err := repo.CreateSubAspect(ctx, grade.SubAspect{AspectID: asp.ID, Name: subName, Position: i})
		if err != nil {
			t.Fatalf("CreateAspect() failed: %v", err)
		}
		asp.SubAspects = append(asp.SubAspects, sub)
	}
	return asp
}
