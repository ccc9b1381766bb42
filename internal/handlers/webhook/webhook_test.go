package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kilcode/kilcode/internal/domain"
)

type fakePaymentService struct {
	calls     int
	reference string
	status    string
	amount    decimal.Decimal
}

func (f *fakePaymentService) ReconcilePayment(_ context.Context, reference, providerStatus string, amount decimal.Decimal, _ string) (*domain.Transaction, error) {
	f.calls++
	f.reference = reference
	f.status = providerStatus
	f.amount = amount
	return &domain.Transaction{PaymentReference: reference, Status: "completed"}, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandlePaystack(t *testing.T) {
	const secret = "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-1","amount":5000,"currency":"NGN","status":"success"}}`)

	tests := []struct {
		name          string
		signature     string
		body          []byte
		expectedCode  int
		expectedCalls int
	}{
		{
			name:          "Valid signature reconciles",
			signature:     sign(secret, body),
			body:          body,
			expectedCode:  http.StatusOK,
			expectedCalls: 1,
		},
		{
			name:          "Missing signature is rejected with no side effects",
			signature:     "",
			body:          body,
			expectedCode:  http.StatusBadRequest,
			expectedCalls: 0,
		},
		{
			name:          "Wrong signature is rejected with no side effects",
			signature:     sign("other-secret", body),
			body:          body,
			expectedCode:  http.StatusBadRequest,
			expectedCalls: 0,
		},
		{
			name:          "Tampered body fails the signature",
			signature:     sign(secret, body),
			body:          []byte(`{"event":"charge.success","data":{"reference":"PAY-1","amount":9999999,"currency":"NGN","status":"success"}}`),
			expectedCode:  http.StatusBadRequest,
			expectedCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakePaymentService{}
			handler := New(service, secret)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(tt.body))
			req.Header.Set("x-paystack-signature", tt.signature)
			rec := httptest.NewRecorder()

			handler.HandlePaystack(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectedCalls, service.calls)
		})
	}
}

func TestHandlePaystackAmountConversion(t *testing.T) {
	const secret = "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-1","amount":5000,"currency":"NGN","status":"success"}}`)

	service := &fakePaymentService{}
	handler := New(service, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(secret, body))
	rec := httptest.NewRecorder()

	handler.HandlePaystack(rec, req)

	assert.Equal(t, "PAY-1", service.reference)
	// 5000 kobo is 50.00 NGN.
	assert.True(t, decimal.RequireFromString("50.00").Equal(service.amount))
}

func TestHandlePaystackIgnoresOtherEvents(t *testing.T) {
	const secret = "sk_test_secret"
	body := []byte(`{"event":"charge.dispute.create","data":{"reference":"PAY-1"}}`)

	service := &fakePaymentService{}
	handler := New(service, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(secret, body))
	rec := httptest.NewRecorder()

	handler.HandlePaystack(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, service.calls)
}
