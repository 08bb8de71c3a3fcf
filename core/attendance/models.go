package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tkceria/ceria/core"
)

// Statuses; an empty status means "not marked".
const (
	StatusPresent = "hadir"
	StatusSick    = "sakit"
	StatusExcused = "izin"
	StatusAbsent  = "alpa"

	DateLayout = "2006-01-02"
)

var Statuses = []string{StatusPresent, StatusSick, StatusExcused, StatusAbsent}

func ValidStatus(s string) bool {
	if s == "" {
		return true
	}
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

type Attendance struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	ClassID   string    `json:"class_id" db:"class_id"`
	Date      time.Time `json:"date" db:"date"` // UTC midnight
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Filter selects attendances of a class, optionally restricted to students and an inclusive date range.
type Filter struct {
	ClassID    string
	StudentIDs []string
	From       time.Time
	To         time.Time
}

// OpenRequest opens the attendance sheet of a class for one day.
type OpenRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Date    string `json:"date" validate:"required,isodate"`
}

func (req *OpenRequest) Validate(validate *validator.Validate) error {
	req.ClassID = core.CleanString(req.ClassID)
	req.Date = core.CleanString(req.Date)
	return validate.Struct(req)
}

// RecapRequest bounds a recap; both dates are inclusive.
type RecapRequest struct {
	From string `query:"from" json:"from" validate:"required,isodate"`
	To   string `query:"to" json:"to" validate:"required,isodate"`
}

func (req *RecapRequest) Validate(validate *validator.Validate) error {
	req.From = core.CleanString(req.From)
	req.To = core.CleanString(req.To)
	if err := validate.Struct(req); err != nil {
		return err
	}
	if req.To < req.From {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to must not be before from"})
	}
	return nil
}

// RecapRow counts the statuses of a student over a period.
type RecapRow struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Present     int    `json:"hadir"`
	Sick        int    `json:"sakit"`
	Excused     int    `json:"izin"`
	Absent      int    `json:"alpa"`
}

func (r *RecapRow) add(status string) {
	switch status {
	case StatusPresent:
		r.Present++
	case StatusSick:
		r.Sick++
	case StatusExcused:
		r.Excused++
	case StatusAbsent:
		r.Absent++
	}
}

// MarkAllRequest sets the same status on every row of a sheet.
type MarkAllRequest struct {
	Status string `json:"status" validate:"attstatus"`
}

func (req *MarkAllRequest) Validate(validate *validator.Validate) error {
	req.Status = core.CleanString(req.Status, true /* lower */)
	return validate.Struct(req)
}
