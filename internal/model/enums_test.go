package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelarth/fnev4/internal/model"
)

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		raw      string
		expected model.PaymentMethod
	}{
		{"cash", model.PaymentCash},
		{"Espèces", model.PaymentCash},
		{"ESPECES", model.PaymentCash},
		{"  carte  ", model.PaymentCard},
		{"Virement", model.PaymentBankTransfer},
		{"chèque", model.PaymentCheck},
		{"cheque", model.PaymentCheck},
		{"crédit", model.PaymentCredit},
		{"mobile money", model.PaymentMobileMoney},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := model.ParsePaymentMethod(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParsePaymentMethod_EchoesUnknownLiteral(t *testing.T) {
	_, err := model.ParsePaymentMethod("cowrie shells")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cowrie shells"`)
}

func TestParseTemplateCategory(t *testing.T) {
	got, err := model.ParseTemplateCategory(" b2g ")
	require.NoError(t, err)
	assert.Equal(t, model.TemplateB2G, got)

	_, err = model.ParseTemplateCategory("B2X")
	assert.Error(t, err)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, model.StatusDraft.Valid())
	assert.True(t, model.StatusCertified.Valid())
	assert.False(t, model.Status("archived").Valid())
}

func TestInvoiceCertifiable(t *testing.T) {
	tests := []struct {
		name       string
		status     model.Status
		retryCount int
		eligible   bool
	}{
		{"draft", model.StatusDraft, 0, true},
		{"validated", model.StatusValidated, 0, true},
		{"error below cap", model.StatusError, 2, true},
		{"error at cap", model.StatusError, 3, false},
		{"certified is terminal", model.StatusCertified, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &model.Invoice{Status: tt.status, RetryCount: tt.retryCount}
			assert.Equal(t, tt.eligible, inv.Certifiable(3))
		})
	}
}
