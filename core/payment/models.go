package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
)

const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
)

// amounts are in IDR, no minor unit
type (
	PaymentType struct {
		ID          string    `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		Amount      int64     `json:"amount" db:"amount"`
		IsRecurring bool      `json:"is_recurring" db:"is_recurring"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	Payment struct {
		ID            string    `json:"id" db:"id"`
		StudentID     string    `json:"student_id" db:"student_id"`
		PaymentTypeID string    `json:"payment_type_id" db:"payment_type_id"`
		Period        string    `json:"period" db:"period"` // YYYY-MM
		Amount        int64     `json:"amount" db:"amount"`
		Status        string    `json:"status" db:"status"`
		PaidAt        null.Time `json:"paid_at" db:"paid_at"`
		Note          string    `json:"note" db:"note"`
		CreatedAt     time.Time `json:"created_at" db:"created_at"`
		UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
	}
)

func (p Payment) IsPaid() bool {
	return p.Status == StatusPaid
}

type NewPaymentType struct {
	Name        string `json:"name" validate:"required,max=100"`
	Amount      int64  `json:"amount" validate:"min=0"`
	IsRecurring bool   `json:"is_recurring"`
}

func (npt *NewPaymentType) Validate(validate *validator.Validate) error {
	npt.Name = core.CleanString(npt.Name)
	return validate.Struct(npt)
}

type NewPayment struct {
	StudentID     string `json:"student_id" validate:"required"`
	PaymentTypeID string `json:"payment_type_id" validate:"required"`
	Period        string `json:"period" validate:"required,period"`
	// Amount defaults to the amount of the payment type.
	Amount *int64 `json:"amount" validate:"omitempty,min=0"`
	Note   string `json:"note" validate:"max=500"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.PaymentTypeID = core.CleanString(np.PaymentTypeID)
	np.Period = core.CleanString(np.Period)
	np.Note = core.CleanString(np.Note)
	return validate.Struct(np)
}

type PayRequest struct {
	Note string `json:"note" validate:"max=500"`
}

func (pr *PayRequest) Validate(validate *validator.Validate) error {
	pr.Note = core.CleanString(pr.Note)
	return validate.Struct(pr)
}

type QueryFilter struct {
	StudentIDs    []string `query:"student_id"`
	PaymentTypeID string   `query:"payment_type_id"`
	Period        string   `query:"period"`
	Status        string   `query:"status"`
}

func (f *QueryFilter) Clean() {
	f.PaymentTypeID = core.CleanString(f.PaymentTypeID)
	f.Period = core.CleanString(f.Period)
	f.Status = core.CleanString(f.Status, true /* lower */)
	ids := make([]string, 0, len(f.StudentIDs))
	for _, id := range f.StudentIDs {
		if id = core.CleanString(id); id != "" {
			ids = append(ids, id)
		}
	}
	f.StudentIDs = ids
}

// receiptData feeds the payment_receipt email template.
type receiptData struct {
	ParentName  string
	PaymentType string
	StudentName string
	Period      string
	Amount      string
	PaidAt      string
	Note        string
}
