package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/payment"
)

const (
	paymentTypeColumns = "id, name, amount, is_recurring, created_at, updated_at"
	paymentColumns     = "id, student_id, payment_type_id, period, amount, status, paid_at, note, created_at, updated_at"
)

var paymentOrderings = map[string]bool{"period": true, "amount": true, "status": true, "paid_at": true, "created_at": true}

type paymentRepository struct {
	exec core.DBExecutor
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) *paymentRepository {
	return &paymentRepository{exec: exec}
}

func (repo *paymentRepository) checkTypeName(ctx context.Context, name, excludedID string) error {
	found, err := exists(ctx, repo.exec, "SELECT id FROM payment_types WHERE LOWER(name) = LOWER(?) AND id <> ?", name, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking payment type name")
	}
	if found {
		return core.NewValidationError(payment.ErrTypeNameExists,
			core.FieldError{Field: "name", Error: payment.ErrTypeNameExists.Error()})
	}
	return nil
}

func (repo *paymentRepository) CreatePaymentType(ctx context.Context, pt payment.PaymentType) (payment.PaymentType, error) {
	if err := repo.checkTypeName(ctx, pt.Name, ""); err != nil {
		return payment.PaymentType{}, err
	}
	pt.ID = uuid.New().String()
	pt.CreatedAt = stamp(pt.CreatedAt)
	pt.UpdatedAt = stamp(pt.UpdatedAt)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO payment_types ("+paymentTypeColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		pt.ID, pt.Name, pt.Amount, pt.IsRecurring, pt.CreatedAt, pt.UpdatedAt,
	)
	if err != nil {
		return payment.PaymentType{}, errors.Wrap(err, "inserting payment type")
	}
	return pt, nil
}

func (repo *paymentRepository) GetPaymentType(ctx context.Context, id string) (payment.PaymentType, error) {
	var pt payment.PaymentType
	err := repo.exec.GetContext(ctx, &pt, repo.exec.Rebind("SELECT "+paymentTypeColumns+" FROM payment_types WHERE id = ?"), id)
	if err != nil {
		return payment.PaymentType{}, trapNoRowsErr(err, payment.ErrTypeNotFound, "finding payment type")
	}
	return pt, nil
}

func (repo *paymentRepository) QueryPaymentTypes(ctx context.Context) ([]payment.PaymentType, error) {
	types := make([]payment.PaymentType, 0)
	if err := repo.exec.SelectContext(ctx, &types, "SELECT "+paymentTypeColumns+" FROM payment_types ORDER BY name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying payment types")
	}
	return types, nil
}

func (repo *paymentRepository) UpdatePaymentType(ctx context.Context, pt payment.PaymentType) (payment.PaymentType, error) {
	if err := repo.checkTypeName(ctx, pt.Name, pt.ID); err != nil {
		return payment.PaymentType{}, err
	}
	pt.UpdatedAt = stamp(pt.UpdatedAt)
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE payment_types SET name = ?, amount = ?, is_recurring = ?, updated_at = ? WHERE id = ?"),
		pt.Name, pt.Amount, pt.IsRecurring, pt.UpdatedAt, pt.ID,
	)
	if err != nil {
		return payment.PaymentType{}, errors.Wrap(err, "updating payment type")
	}
	if err = affectOne(res, payment.ErrTypeNotFound); err != nil {
		return payment.PaymentType{}, err
	}
	return pt, nil
}

func (repo *paymentRepository) DeletePaymentType(ctx context.Context, id string) error {
	used, err := exists(ctx, repo.exec, "SELECT id FROM payments WHERE payment_type_id = ?", id)
	if err != nil {
		return errors.Wrap(err, "checking payment type usage")
	}
	if used {
		return payment.ErrTypeInUse
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM payment_types WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting payment type")
	}
	return affectOne(res, payment.ErrTypeNotFound)
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	dup, err := exists(ctx, repo.exec,
		"SELECT id FROM payments WHERE student_id = ? AND payment_type_id = ? AND period = ?",
		p.StudentID, p.PaymentTypeID, p.Period)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "checking payment uniqueness")
	}
	if dup {
		return payment.Payment{}, core.NewValidationError(payment.ErrPaymentExists,
			core.FieldError{Field: "period", Error: payment.ErrPaymentExists.Error()})
	}

	p.ID = uuid.New().String()
	p.CreatedAt = stamp(p.CreatedAt)
	p.UpdatedAt = stamp(p.UpdatedAt)
	if p.PaidAt.Valid {
		p.PaidAt.Time = stamp(p.PaidAt.Time)
	}
	_, err = repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		p.ID, p.StudentID, p.PaymentTypeID, p.Period, p.Amount, p.Status, p.PaidAt, p.Note, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	var p payment.Payment
	err := repo.exec.GetContext(ctx, &p, repo.exec.Rebind("SELECT "+paymentColumns+" FROM payments WHERE id = ?"), id)
	if err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "finding payment")
	}
	return p, nil
}

func (repo *paymentRepository) FilterPayments(ctx context.Context, filter payment.QueryFilter, orderings []core.DBOrdering) ([]payment.Payment, error) {
	var w where
	if len(filter.StudentIDs) > 0 {
		w.add("student_id IN (?)", filter.StudentIDs)
	}
	if filter.PaymentTypeID != "" {
		w.add("payment_type_id = ?", filter.PaymentTypeID)
	}
	if filter.Period != "" {
		w.add("period = ?", filter.Period)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	payments := make([]payment.Payment, 0)
	q := "SELECT " + paymentColumns + " FROM payments" + w.String() + core.OrderBy(orderings, paymentOrderings, "period DESC, created_at DESC")
	if err := selectIn(ctx, repo.exec, &payments, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering payments")
	}
	return payments, nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.UpdatedAt = stamp(p.UpdatedAt)
	if p.PaidAt.Valid {
		p.PaidAt.Time = stamp(p.PaidAt.Time)
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE payments SET amount = ?, status = ?, paid_at = ?, note = ?, updated_at = ? WHERE id = ?"),
		p.Amount, p.Status, p.PaidAt, p.Note, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if err = affectOne(res, payment.ErrNotFound); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) DeletePayment(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM payments WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return affectOne(res, payment.ErrNotFound)
}
