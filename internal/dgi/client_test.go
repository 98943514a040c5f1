package dgi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelarth/fnev4/internal/dgi"
	"github.com/mikaelarth/fnev4/internal/model"
)

func testConfig(baseURL string) dgi.Config {
	return dgi.Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		PointOfSale: "POS-01",
		Timeout:     2 * time.Second,
		MaxRetries:  3,
	}
}

func testRequest() *dgi.SignRequest {
	return &dgi.SignRequest{
		InvoiceNumber: "FAC-2026-001",
		InvoiceDate:   "2026-01-15",
		PointOfSale:   "POS-01",
		Template:      "B2B",
		PaymentMethod: "cash",
		Client:        dgi.SignClient{Name: "SARL Ivoire", NCC: "9502363N"},
		TotalHT:       "2000.00",
		TotalVat:      "180.00",
		TotalTTC:      "2180.00",
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig("https://fne.example").Validate())

	bad := testConfig("https://fne.example")
	bad.APIKey = ""
	assert.Error(t, bad.Validate())

	bad = testConfig("not a url")
	assert.Error(t, bad.Validate())
}

func TestSign_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/external/invoices/sign", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req dgi.SignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "FAC-2026-001", req.InvoiceNumber)

		json.NewEncoder(w).Encode(dgi.SignResponse{
			Reference:      "FNE-REF-001",
			Token:          "tok-abc",
			BalanceSticker: 41,
		})
	}))
	defer srv.Close()

	c, err := dgi.NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	res, err := c.Sign(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Response)

	assert.Equal(t, "FNE-REF-001", res.Response.Reference)
	assert.Equal(t, "tok-abc", res.Response.Token)
	assert.Equal(t, 41, res.Response.BalanceSticker)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.RequestBody)
	assert.NotEmpty(t, res.ResponseBody)
}

func TestSign_ClientRejectionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "invalid_ncc",
			"message": "unknown taxpayer identifier",
		})
	}))
	defer srv.Close()

	c, err := dgi.NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	res, err := c.Sign(context.Background(), testRequest())
	require.Error(t, err)
	require.NotNil(t, res)

	var certErr *model.CertificationError
	require.ErrorAs(t, err, &certErr)
	assert.False(t, certErr.Transient)
	assert.Equal(t, "invalid_ncc", certErr.Code)
	assert.Equal(t, "unknown taxpayer identifier", certErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, certErr.StatusCode)
}

func TestSign_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := dgi.NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Sign(context.Background(), testRequest())
	require.Error(t, err)

	var certErr *model.CertificationError
	require.ErrorAs(t, err, &certErr)
	assert.True(t, certErr.Transient)
	assert.Equal(t, http.StatusBadGateway, certErr.StatusCode)
}

func TestSign_TimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	// close(block) must run before srv.Close so the blocked handler can return.
	defer close(block)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c, err := dgi.NewClient(cfg)
	require.NoError(t, err)

	res, err := c.Sign(context.Background(), testRequest())
	require.Error(t, err)
	require.NotNil(t, res, "the request body must survive for the audit row")

	var certErr *model.CertificationError
	require.ErrorAs(t, err, &certErr)
	assert.True(t, certErr.Transient, "a timeout is never an implicit success")
}

func TestSign_MalformedSuccessIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reference": "FNE-REF-001"}`)) // no token
	}))
	defer srv.Close()

	c, err := dgi.NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Sign(context.Background(), testRequest())
	require.Error(t, err)

	var certErr *model.CertificationError
	require.ErrorAs(t, err, &certErr)
	assert.True(t, certErr.Transient)
}

func TestVerificationURL(t *testing.T) {
	c, err := dgi.NewClient(testConfig("https://fne.example/"))
	require.NoError(t, err)

	assert.Equal(t, "https://fne.example/fne/verify/tok-abc", c.VerificationURL("tok-abc"))
}

func TestBuildSignRequest(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		Number:      "FAC-2026-001",
		Date:        now,
		PointOfSale: "POS-01",
		Template:    model.TemplateB2C,
		Payment:     model.PaymentCash,
		ClientName:  "Client de passage",
	}

	req := dgi.BuildSignRequest(inv)
	assert.Equal(t, "2026-01-15", req.InvoiceDate)
	assert.Equal(t, "B2C", req.Template)
	assert.Empty(t, req.Client.NCC, "anonymous customers carry no NCC")
}
