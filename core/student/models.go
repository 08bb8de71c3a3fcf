package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
)

// Genders
const (
	GenderMale   = "L"
	GenderFemale = "P"
)

type Class struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	AcademicYear string      `json:"academic_year" db:"academic_year"`
	TeacherID    null.String `json:"teacher_id" db:"teacher_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

type Student struct {
	ID        string      `json:"id" db:"id"`
	NIS       string      `json:"nis" db:"nis"`
	Name      string      `json:"name" db:"name"`
	Gender    string      `json:"gender" db:"gender"`
	BirthDate null.Time   `json:"birth_date" db:"birth_date"`
	ClassID   null.String `json:"class_id" db:"class_id"`
	ParentID  null.String `json:"parent_id" db:"parent_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// IDs returns the ids of students.
func IDs(students []Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}

type NewClass struct {
	Name         string `json:"name" validate:"required,max=100"`
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
	TeacherID    string `json:"teacher_id"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	return validate.Struct(nc)
}

type NewStudent struct {
	NIS       string `json:"nis" validate:"required,max=30,alphanum_"`
	Name      string `json:"name" validate:"required,max=100"`
	Gender    string `json:"gender" validate:"required,oneof=L P"`
	BirthDate string `json:"birth_date" validate:"omitempty,isodate"`
	ClassID   string `json:"class_id"`
	ParentID  string `json:"parent_id"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.NIS = core.CleanString(ns.NIS)
	ns.Name = core.CleanString(ns.Name)
	ns.Gender = core.CleanString(ns.Gender)
	if ns.Gender != "" {
		ns.Gender = string(ns.Gender[0])
	}
	ns.Gender = normalizeGender(ns.Gender)
	ns.BirthDate = core.CleanString(ns.BirthDate)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.ParentID = core.CleanString(ns.ParentID)
	return validate.Struct(ns)
}

func normalizeGender(g string) string {
	switch g {
	case "l", "m", "M":
		return GenderMale
	case "p", "f", "F":
		return GenderFemale
	}
	return g
}

type QueryFilter struct {
	Search   string   `query:"search"`
	ClassIDs []string `query:"class_id"`
	ParentID string   `query:"parent_id"`
	IDs      []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ParentID = core.CleanString(qf.ParentID)
}

// ImportResult tallies a student import. Row numbers are 1-based spreadsheet rows.
type ImportResult struct {
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Errors  map[int]string `json:"errors"`
}
