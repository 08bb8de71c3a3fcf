package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/payment"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
	"github.com/tkceria/ceria/testutil"
)

func Test_paymentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewPaymentRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	cls := testutil.CreateClass(t, studentRepo, "Melati", "")
	dina := testutil.CreateStudent(t, studentRepo, "1001", "Dina", cls.ID, "")
	eko := testutil.CreateStudent(t, studentRepo, "1002", "Eko", cls.ID, "")

	now := time.Now()
	spp, err := repo.CreatePaymentType(ctx, payment.PaymentType{Name: "SPP", Amount: 150000, IsRecurring: true, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	book, err := repo.CreatePaymentType(ctx, payment.PaymentType{Name: "Buku", Amount: 75000, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	t.Run("type names are case-insensitively unique", func(t *testing.T) {
		_, err := repo.CreatePaymentType(ctx, payment.PaymentType{Name: "spp", CreatedAt: now, UpdatedAt: now})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "%v", err)
		assert.Equal(t, payment.ErrTypeNameExists, vErr.Err)

		book.Amount = 80000
		_, err = repo.UpdatePaymentType(ctx, book)
		assert.NoError(t, err)

		types, err := repo.QueryPaymentTypes(ctx)
		require.NoError(t, err)
		require.Len(t, types, 2)
		assert.Equal(t, "Buku", types[0].Name)
		assert.Equal(t, int64(80000), types[0].Amount)
	})

	create := func(studentID, typeID, period string, amount int64) payment.Payment {
		p, err := repo.CreatePayment(ctx, payment.Payment{
			StudentID:     studentID,
			PaymentTypeID: typeID,
			Period:        period,
			Amount:        amount,
			Status:        payment.StatusUnpaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		require.NoError(t, err)
		return p
	}
	aug := create(dina.ID, spp.ID, "2024-08", 150000)
	create(dina.ID, spp.ID, "2024-09", 150000)
	create(eko.ID, spp.ID, "2024-08", 100000)

	t.Run("duplicate period", func(t *testing.T) {
		_, err := repo.CreatePayment(ctx, payment.Payment{StudentID: dina.ID, PaymentTypeID: spp.ID, Period: "2024-08", Status: payment.StatusUnpaid})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "%v", err)
		assert.Equal(t, payment.ErrPaymentExists, vErr.Err)
		assert.Equal(t, "period", vErr.Fields[0].Field)
		// another type in the same period is fine
		create(dina.ID, book.ID, "2024-08", 80000)
	})

	t.Run("pay", func(t *testing.T) {
		aug.Status = payment.StatusPaid
		aug.PaidAt = null.TimeFrom(now)
		aug.Note = "tunai"
		_, err := repo.UpdatePayment(ctx, aug)
		require.NoError(t, err)
		got, err := repo.GetPayment(ctx, aug.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid())
		assert.True(t, got.PaidAt.Valid)
		assert.Equal(t, "tunai", got.Note)
	})

	tests := []struct {
		name   string
		filter payment.QueryFilter
		want   int
	}{
		{name: "all", want: 4},
		{name: "by student", filter: payment.QueryFilter{StudentIDs: []string{dina.ID}}, want: 3},
		{name: "by type and period", filter: payment.QueryFilter{PaymentTypeID: spp.ID, Period: "2024-08"}, want: 2},
		{name: "paid", filter: payment.QueryFilter{Status: payment.StatusPaid}, want: 1},
		{name: "unpaid of eko", filter: payment.QueryFilter{StudentIDs: []string{eko.ID}, Status: payment.StatusUnpaid}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FilterPayments(ctx, tt.filter, nil)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	t.Run("type in use", func(t *testing.T) {
		assert.Equal(t, payment.ErrTypeInUse, repo.DeletePaymentType(ctx, spp.ID))
		assert.Equal(t, payment.ErrTypeNotFound, repo.DeletePaymentType(ctx, "nope"))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeletePayment(ctx, aug.ID))
		_, err := repo.GetPayment(ctx, aug.ID)
		assert.Equal(t, payment.ErrNotFound, err)
		assert.Equal(t, payment.ErrNotFound, repo.DeletePayment(ctx, aug.ID))
	})
}
