package payment

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("payment not found")
	ErrTypeNotFound   = errors.New("payment type not found")
	ErrTypeNameExists = errors.New("a payment type with this name already exists")
	ErrPaymentExists  = errors.New("this payment is already recorded for the period")
	ErrAlreadyPaid    = errors.New("payment is already paid")
	ErrTypeInUse      = errors.New("payment type is referenced by payments")

	NowFunc = time.Now // mockable
)

const receiptTemplate = "payment_receipt"

type (
	Repository interface {
		CreatePaymentType(ctx context.Context, pt PaymentType) (PaymentType, error)
		GetPaymentType(ctx context.Context, id string) (PaymentType, error)
		QueryPaymentTypes(ctx context.Context) ([]PaymentType, error)
		UpdatePaymentType(ctx context.Context, pt PaymentType) (PaymentType, error)
		DeletePaymentType(ctx context.Context, id string) error

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		FilterPayments(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		DeletePayment(ctx context.Context, id string) error
	}

	Service interface {
		CreateType(ctx context.Context, npt NewPaymentType) (PaymentType, error)
		GetType(ctx context.Context, id string) (PaymentType, error)
		QueryTypes(ctx context.Context) ([]PaymentType, error)
		UpdateType(ctx context.Context, pt PaymentType, npt NewPaymentType) (PaymentType, error)
		DeleteType(ctx context.Context, id string) error

		Create(ctx context.Context, np NewPayment) (Payment, error)
		Get(ctx context.Context, id string) (Payment, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Payment, error)
		Delete(ctx context.Context, id string) error
		// Pay marks p as paid and emails a receipt to the parent of the student.
		Pay(ctx context.Context, p Payment, req PayRequest) (Payment, error)
	}

	service struct {
		repo       Repository
		studentSvc student.Service
		usrSvc     user.Service
		mailSvc    core.EmailService
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	studentSvc student.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:       repo,
		studentSvc: studentSvc,
		usrSvc:     usrSvc,
		mailSvc:    mailSvc,
		logger:     logger,
	}
}

func (svc *service) CreateType(ctx context.Context, npt NewPaymentType) (PaymentType, error) {
	now := NowFunc().UTC()
	return svc.repo.CreatePaymentType(ctx, PaymentType{
		Name:        npt.Name,
		Amount:      npt.Amount,
		IsRecurring: npt.IsRecurring,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetType(ctx context.Context, id string) (PaymentType, error) {
	return svc.repo.GetPaymentType(ctx, id)
}

func (svc *service) QueryTypes(ctx context.Context) ([]PaymentType, error) {
	return svc.repo.QueryPaymentTypes(ctx)
}

func (svc *service) UpdateType(ctx context.Context, pt PaymentType, npt NewPaymentType) (PaymentType, error) {
	pt.Name = npt.Name
	pt.Amount = npt.Amount
	pt.IsRecurring = npt.IsRecurring
	pt.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdatePaymentType(ctx, pt)
}

func (svc *service) DeleteType(ctx context.Context, id string) error {
	return svc.repo.DeletePaymentType(ctx, id)
}

func (svc *service) Create(ctx context.Context, np NewPayment) (Payment, error) {
	if _, err := svc.studentSvc.GetStudent(ctx, np.StudentID); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Payment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Payment{}, errors.Wrap(err, "finding student")
	}
	pt, err := svc.repo.GetPaymentType(ctx, np.PaymentTypeID)
	if err != nil {
		if errors.Cause(err) == ErrTypeNotFound {
			return Payment{}, core.NewValidationError(err, core.FieldError{Field: "payment_type_id", Error: err.Error()})
		}
		return Payment{}, errors.Wrap(err, "finding payment type")
	}

	amount := pt.Amount
	if np.Amount != nil {
		amount = *np.Amount
	}
	now := NowFunc().UTC()
	return svc.repo.CreatePayment(ctx, Payment{
		StudentID:     np.StudentID,
		PaymentTypeID: pt.ID,
		Period:        np.Period,
		Amount:        amount,
		Status:        StatusUnpaid,
		Note:          np.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) Get(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Payment, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.Clean()
	return svc.repo.FilterPayments(ctx, *filter, orderings)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeletePayment(ctx, id)
}

func (svc *service) Pay(ctx context.Context, p Payment, req PayRequest) (Payment, error) {
	if p.IsPaid() {
		return Payment{}, ErrAlreadyPaid
	}
	now := NowFunc().UTC()
	p.Status = StatusPaid
	p.PaidAt.SetValid(now)
	if req.Note != "" {
		p.Note = req.Note
	}
	p.UpdatedAt = now

	p, err := svc.repo.UpdatePayment(ctx, p)
	if err != nil {
		return Payment{}, errors.Wrap(err, "updating payment")
	}
	if err = svc.sendReceipt(ctx, p); err != nil {
		// receipt failures do not undo the payment
		svc.logger.Error("payment.Pay: sending receipt", err, map[string]interface{}{"payment_id": p.ID})
	}
	return p, nil
}

func (svc *service) sendReceipt(ctx context.Context, p Payment) error {
	st, err := svc.studentSvc.GetStudent(ctx, p.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if !st.ParentID.Valid {
		return nil
	}
	parent, err := svc.usrSvc.GetByID(ctx, st.ParentID.String)
	if err != nil {
		return errors.Wrap(err, "finding parent")
	}
	if parent.Email == "" {
		return nil
	}
	pt, err := svc.repo.GetPaymentType(ctx, p.PaymentTypeID)
	if err != nil {
		return errors.Wrap(err, "finding payment type")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      fmt.Sprintf("Payment receipt: %s %s", pt.Name, p.Period),
		TemplateName: receiptTemplate,
		TemplateData: receiptData{
			ParentName:  parent.Name,
			PaymentType: pt.Name,
			StudentName: st.Name,
			Period:      p.Period,
			Amount:      FormatAmount(p.Amount),
			PaidAt:      p.PaidAt.Time.Format("02 Jan 2006 15:04 MST"),
			Note:        p.Note,
		},
		Tags: map[string]string{"payment_id": p.ID, "period": p.Period},
	})
	return nil
}

// FormatAmount renders an IDR amount with dot thousands separators: 1500000 -> "1.500.000".
func FormatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := amount < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
