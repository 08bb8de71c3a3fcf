package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core/payment"
	emailsvc "github.com/tkceria/ceria/services/email"
	"github.com/tkceria/ceria/testutil"
)

func Test_paymentAPI(t *testing.T) {
	f := setup(t)
	cls := testutil.CreateClass(t, f.studentRepo, "Melati", f.teacher.ID)
	dina := testutil.CreateStudent(t, f.studentRepo, "1001", "Dina", cls.ID, f.parent.ID)
	eko := testutil.CreateStudent(t, f.studentRepo, "1002", "Eko", cls.ID, "")
	adminToken := getToken(t, f, f.admin)
	parentToken := getToken(t, f, f.parent)

	rec := f.do(http.MethodPost, "/v1/payment-types", adminToken, marshalObj(t, payment.NewPaymentType{
		Name: "SPP", Amount: 150000, IsRecurring: true,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var spp payment.PaymentType
	decode(t, rec, &spp)

	create := func(studentID string, amount *int64) payment.Payment {
		t.Helper()
		rec := f.do(http.MethodPost, "/v1/payments", adminToken, marshalObj(t, payment.NewPayment{
			StudentID: studentID, PaymentTypeID: spp.ID, Period: "2024-08", Amount: amount,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p payment.Payment
		decode(t, rec, &p)
		return p
	}
	discounted := int64(100000)
	dinaSPP := create(dina.ID, nil)
	ekoSPP := create(eko.ID, &discounted)
	assert.Equal(t, int64(150000), dinaSPP.Amount)
	assert.Equal(t, payment.StatusUnpaid, dinaSPP.Status)
	assert.Equal(t, int64(100000), ekoSPP.Amount)

	t.Run("parent sees own children only", func(t *testing.T) {
		for _, path := range []string{"/v1/payments", "/v1/payments?student_id=" + eko.ID + "&student_id=" + dina.ID} {
			rec := f.do(http.MethodGet, path, parentToken)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var payments []payment.Payment
			decode(t, rec, &payments)
			require.Len(t, payments, 1, path)
			assert.Equal(t, dinaSPP.ID, payments[0].ID)
		}

		rec := f.do(http.MethodGet, "/v1/payments?student_id="+eko.ID, parentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("admin sees every payment", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/payments?period=2024-08", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var payments []payment.Payment
		decode(t, rec, &payments)
		assert.Len(t, payments, 2)
	})

	t.Run("pay", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		rec := f.do(http.MethodPost, "/v1/payments/"+dinaSPP.ID+"/pay", adminToken, []byte(`{"note":"transfer BCA"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p payment.Payment
		decode(t, rec, &p)
		assert.Equal(t, payment.StatusPaid, p.Status)
		assert.True(t, p.PaidAt.Valid)
		assert.Equal(t, "transfer BCA", p.Note)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		require.Len(t, msg.To, 1)
		assert.Equal(t, "budi@example.com", msg.To[0].Address)
		assert.Contains(t, msg.Subject, "SPP 2024-08")

		// no parent, no receipt
		emailsvc.ResetSentMessages()
		rec = f.do(http.MethodPost, "/v1/payments/"+ekoSPP.ID+"/pay", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		_, ok = emailsvc.LastSentMessage()
		assert.False(t, ok)
	})

	runHTTPTests(t, f, []httpTest{
		{
			name: "already paid", method: http.MethodPost, path: "/v1/payments/" + dinaSPP.ID + "/pay", token: adminToken,
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: payment.ErrAlreadyPaid.Error()}),
		},
		{
			name: "duplicate period", method: http.MethodPost, path: "/v1/payments", token: adminToken,
			body:     marshalObj(t, payment.NewPayment{StudentID: dina.ID, PaymentTypeID: spp.ID, Period: "2024-08"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"period": payment.ErrPaymentExists.Error()}),
		},
		{
			name: "malformed period", method: http.MethodPost, path: "/v1/payments", token: adminToken,
			body:     marshalObj(t, payment.NewPayment{StudentID: dina.ID, PaymentTypeID: spp.ID, Period: "2024-13"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"period": "period must be a month in the YYYY-MM format"}),
		},
		{
			name: "unknown payment type", method: http.MethodPost, path: "/v1/payments", token: adminToken,
			body:     marshalObj(t, payment.NewPayment{StudentID: dina.ID, PaymentTypeID: "nope", Period: "2024-09"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"payment_type_id": payment.ErrTypeNotFound.Error()}),
		},
		{name: "parent reads own child payment", path: "/v1/payments/" + dinaSPP.ID, token: parentToken, wantCode: http.StatusOK},
		{
			name: "parent reads other payment", path: "/v1/payments/" + ekoSPP.ID, token: parentToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: payment.ErrNotFound.Error()}),
		},
		{name: "parents cannot pay", method: http.MethodPost, path: "/v1/payments/" + ekoSPP.ID + "/pay", token: parentToken, wantCode: http.StatusForbidden},
		{name: "teachers have no payments", path: "/v1/payments", token: getToken(t, f, f.teacher), wantCode: http.StatusForbidden},
		{
			name: "type in use", method: http.MethodDelete, path: "/v1/payment-types/" + spp.ID, token: adminToken,
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: payment.ErrTypeInUse.Error()}),
		},
		{
			name: "duplicate type name", method: http.MethodPost, path: "/v1/payment-types", token: adminToken,
			body:     marshalObj(t, payment.NewPaymentType{Name: "SPP", Amount: 1}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": payment.ErrTypeNameExists.Error()}),
		},
		{name: "delete payment", method: http.MethodDelete, path: "/v1/payments/" + ekoSPP.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted payment", path: "/v1/payments/" + ekoSPP.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_paymentAPI_types(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)

	rec := f.do(http.MethodPost, "/v1/payment-types", adminToken, marshalObj(t, payment.NewPaymentType{Name: "Seragam", Amount: 250000}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pt payment.PaymentType
	decode(t, rec, &pt)

	rec = f.do(http.MethodPut, "/v1/payment-types/"+pt.ID, adminToken, marshalObj(t, payment.NewPaymentType{Name: "Seragam Olahraga", Amount: 275000}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &pt)
	assert.Equal(t, "Seragam Olahraga", pt.Name)
	assert.Equal(t, int64(275000), pt.Amount)

	rec = f.do(http.MethodGet, "/v1/payment-types", getToken(t, f, f.parent))
	require.Equal(t, http.StatusOK, rec.Code)
	var types []payment.PaymentType
	decode(t, rec, &types)
	assert.Len(t, types, 1)

	runHTTPTests(t, f, []httpTest{
		{name: "teachers cannot create", method: http.MethodPost, path: "/v1/payment-types", token: getToken(t, f, f.teacher),
			body: marshalObj(t, payment.NewPaymentType{Name: "Buku"}), wantCode: http.StatusForbidden},
		{name: "negative amount", method: http.MethodPost, path: "/v1/payment-types", token: adminToken,
			body: marshalObj(t, payment.NewPaymentType{Name: "Buku", Amount: -1}), wantCode: http.StatusBadRequest},
		{name: "delete", method: http.MethodDelete, path: "/v1/payment-types/" + pt.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/payment-types/" + pt.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}
