package grade

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
)

const maxDescriptionLen = 1000

type Semester struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	AcademicYear string    `json:"academic_year" db:"academic_year"`
	StartsOn     time.Time `json:"starts_on" db:"starts_on"`
	EndsOn       time.Time `json:"ends_on" db:"ends_on"`
}

type Aspect struct {
	ID         string      `json:"id" db:"id"`
	Name       string      `json:"name" db:"name"`
	Position   int         `json:"position" db:"position"`
	SubAspects []SubAspect `json:"sub_aspects" db:"-"`
}

// SubAspect returns the sub-aspect id of a, if any.
func (a Aspect) SubAspect(id string) (SubAspect, bool) {
	for _, sa := range a.SubAspects {
		if sa.ID == id {
			return sa, true
		}
	}
	return SubAspect{}, false
}

type SubAspect struct {
	ID       string `json:"id" db:"id"`
	AspectID string `json:"aspect_id" db:"aspect_id"`
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
}

// Grade is the descriptive assessment of a student on an aspect (or sub-aspect) for a semester.
type Grade struct {
	ID          string      `json:"id" db:"id"`
	StudentID   string      `json:"student_id" db:"student_id"`
	SemesterID  string      `json:"semester_id" db:"semester_id"`
	AspectID    string      `json:"aspect_id" db:"aspect_id"`
	SubAspectID null.String `json:"sub_aspect_id" db:"sub_aspect_id"`
	Description string      `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// Filter selects grades. SubAspectID is matched exactly (NULL included) unless AnySubAspect is set.
type Filter struct {
	StudentIDs   []string
	SemesterID   string
	AspectID     string
	SubAspectID  null.String
	AnySubAspect bool
}

type NewSemester struct {
	Name         string `json:"name" validate:"required,max=100"`
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
	StartsOn     string `json:"starts_on" validate:"required,isodate"`
	EndsOn       string `json:"ends_on" validate:"required,isodate"`
}

func (ns *NewSemester) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.EndsOn <= ns.StartsOn {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_on", Error: "ends_on must be after starts_on"})
	}
	return nil
}

type NewAspect struct {
	Name     string `json:"name" validate:"required,max=100"`
	Position int    `json:"position" validate:"gte=0"`
}

func (na *NewAspect) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	return validate.Struct(na)
}

// OpenRequest opens a grading sheet: one class, one semester, one aspect and optionally one sub-aspect.
type OpenRequest struct {
	ClassID     string `json:"class_id" validate:"required"`
	SemesterID  string `json:"semester_id" validate:"required"`
	AspectID    string `json:"aspect_id" validate:"required"`
	SubAspectID string `json:"sub_aspect_id"`
}

func (req *OpenRequest) Validate(validate *validator.Validate) error {
	req.ClassID = core.CleanString(req.ClassID)
	req.SemesterID = core.CleanString(req.SemesterID)
	req.AspectID = core.CleanString(req.AspectID)
	req.SubAspectID = core.CleanString(req.SubAspectID)
	return validate.Struct(req)
}

// Report is the semester report of a class: one row per student, one column per aspect or sub-aspect.
type Report struct {
	ClassName    string         `json:"class_name"`
	Semester     Semester       `json:"semester"`
	Columns      []ReportColumn `json:"columns"`
	Rows         []ReportRow    `json:"rows"`
	AcademicYear string         `json:"academic_year"`
}

type ReportColumn struct {
	AspectID    string `json:"aspect_id"`
	SubAspectID string `json:"sub_aspect_id"`
	Title       string `json:"title"`
}

type ReportRow struct {
	StudentID   string   `json:"student_id"`
	NIS         string   `json:"nis"`
	StudentName string   `json:"student_name"`
	Values      []string `json:"values"` // aligned with Report.Columns
}
