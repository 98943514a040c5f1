package certify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelarth/fnev4/internal/certify"
	"github.com/mikaelarth/fnev4/internal/dgi"
	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/store"
)

// fakeStore keeps invoices in memory and records audit rows.
type fakeStore struct {
	mu       sync.Mutex
	invoices map[uint]*model.Invoice
	logs     []*model.ApiLog
}

func newFakeStore(invoices ...*model.Invoice) *fakeStore {
	s := &fakeStore{invoices: make(map[uint]*model.Invoice)}
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *fakeStore) InvoiceByID(_ context.Context, id uint) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d not found", id)
	}
	cp := *inv
	return &cp, nil
}

func (s *fakeStore) ListCertifiable(_ context.Context, maxRetries int) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Invoice
	for _, inv := range s.invoices {
		if inv.Certifiable(maxRetries) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkValidated(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[id].Status = model.StatusValidated
	return nil
}

func (s *fakeStore) MarkCertified(_ context.Context, id uint, art store.CertificationArtifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.invoices[id]
	inv.Status = model.StatusCertified
	inv.FneReference = art.Reference
	inv.FneToken = art.Token
	inv.QRPayload = art.QRPayload
	inv.StickerBalance = art.StickerBalance
	at := art.At
	inv.CertifiedAt = &at
	return nil
}

func (s *fakeStore) MarkError(_ context.Context, id uint, message string, permanent bool, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.invoices[id]
	inv.Status = model.StatusError
	inv.ErrorMessage = message
	if permanent {
		inv.RetryCount = maxRetries
	} else {
		inv.RetryCount++
	}
	return nil
}

func (s *fakeStore) AppendApiLog(_ context.Context, entry *model.ApiLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) invoice(id uint) model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.invoices[id]
}

func (s *fakeStore) logCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// fakeAPI returns a scripted outcome and can block mid-call to expose the
// in-flight window.
type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	err     error
	resp    dgi.SignResponse
	blockCh chan struct{} // when set, Sign waits until it is closed
}

func (a *fakeAPI) Sign(_ context.Context, req *dgi.SignRequest) (*dgi.Result, error) {
	a.mu.Lock()
	a.calls++
	block := a.blockCh
	a.mu.Unlock()

	if block != nil {
		<-block
	}

	res := &dgi.Result{
		RequestBody: req.InvoiceNumber,
		StatusCode:  200,
		Latency:     5 * time.Millisecond,
	}
	if a.err != nil {
		var certErr *model.CertificationError
		if errors.As(a.err, &certErr) {
			res.StatusCode = certErr.StatusCode
			res.ResponseBody = certErr.Message
		}
		return res, a.err
	}
	resp := a.resp
	res.Response = &resp
	res.ResponseBody = "ok"
	return res, nil
}

func (a *fakeAPI) VerificationURL(token string) string {
	return "https://fne.example/fne/verify/" + token
}

func (a *fakeAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func draftInvoice(id uint) *model.Invoice {
	return &model.Invoice{
		ID:     id,
		Number: fmt.Sprintf("FAC-2026-%03d", id),
		Status: model.StatusDraft,
	}
}

func TestCertify_Success(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{resp: dgi.SignResponse{Reference: "FNE-REF-001", Token: "tok-abc", BalanceSticker: 42}}
	orch := certify.New(st, api)

	require.NoError(t, orch.Certify(context.Background(), 1))

	inv := st.invoice(1)
	assert.Equal(t, model.StatusCertified, inv.Status)
	assert.Equal(t, "FNE-REF-001", inv.FneReference)
	assert.Equal(t, "tok-abc", inv.FneToken)
	assert.Equal(t, "https://fne.example/fne/verify/tok-abc", inv.QRPayload)
	assert.Equal(t, 42, inv.StickerBalance)
	require.NotNil(t, inv.CertifiedAt)

	require.Equal(t, 1, st.logCount())
	assert.Equal(t, 1, st.logs[0].Attempt)
	assert.True(t, st.logs[0].Success)
}

func TestCertify_TransientErrorIncrementsRetry(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{err: model.NewTransientError("gateway timeout", 504, nil)}
	orch := certify.New(st, api, certify.WithMaxRetries(3))

	err := orch.Certify(context.Background(), 1)
	require.Error(t, err)

	inv := st.invoice(1)
	assert.Equal(t, model.StatusError, inv.Status)
	assert.Equal(t, 1, inv.RetryCount)
	assert.Contains(t, inv.ErrorMessage, "gateway timeout")
	assert.True(t, inv.Certifiable(3), "a transient failure below the cap stays eligible")

	require.Equal(t, 1, st.logCount())
	assert.False(t, st.logs[0].Success)
}

func TestCertify_PermanentErrorPinsRetryCount(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{err: model.NewPermanentError("invalid_ncc", "unknown taxpayer", 422)}
	orch := certify.New(st, api, certify.WithMaxRetries(3))

	err := orch.Certify(context.Background(), 1)
	require.Error(t, err)

	inv := st.invoice(1)
	assert.Equal(t, model.StatusError, inv.Status)
	assert.Equal(t, 3, inv.RetryCount, "a permanent rejection must not be retried automatically")
	assert.False(t, inv.Certifiable(3))
}

func TestCertify_SecondTriggerWhileInFlight(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{
		resp:    dgi.SignResponse{Reference: "R", Token: "tok"},
		blockCh: make(chan struct{}),
	}
	orch := certify.New(st, api)

	done := make(chan error, 1)
	go func() {
		done <- orch.Certify(context.Background(), 1)
	}()

	// Wait for the first call to reach the API, then fire the duplicate.
	require.Eventually(t, func() bool { return api.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	err := orch.Certify(context.Background(), 1)
	assert.ErrorIs(t, err, certify.ErrInFlight)
	assert.Equal(t, 0, st.logCount(), "the duplicate trigger must leave no trace")

	close(api.blockCh)
	require.NoError(t, <-done)

	assert.Equal(t, 1, api.callCount(), "exactly one remote call")
	assert.Equal(t, 1, st.logCount(), "exactly one audit row")
}

func TestCertify_TerminalStates(t *testing.T) {
	certified := draftInvoice(1)
	certified.Status = model.StatusCertified
	exhausted := draftInvoice(2)
	exhausted.Status = model.StatusError
	exhausted.RetryCount = 3

	st := newFakeStore(certified, exhausted)
	api := &fakeAPI{}
	orch := certify.New(st, api, certify.WithMaxRetries(3))

	assert.ErrorIs(t, orch.Certify(context.Background(), 1), certify.ErrNotEligible)
	assert.ErrorIs(t, orch.Certify(context.Background(), 2), certify.ErrNotEligible)
	assert.Equal(t, 0, api.callCount())
}

func TestRetry_BelowCap(t *testing.T) {
	inv := draftInvoice(1)
	inv.Status = model.StatusError
	inv.RetryCount = 2

	st := newFakeStore(inv)
	api := &fakeAPI{resp: dgi.SignResponse{Reference: "R", Token: "tok"}}
	orch := certify.New(st, api, certify.WithMaxRetries(3))

	require.NoError(t, orch.Retry(context.Background(), 1))
	assert.Equal(t, model.StatusCertified, st.invoice(1).Status)
	assert.Equal(t, 3, st.logs[0].Attempt)
}

func TestRetry_AtCap(t *testing.T) {
	inv := draftInvoice(1)
	inv.Status = model.StatusError
	inv.RetryCount = 3

	st := newFakeStore(inv)
	api := &fakeAPI{}
	orch := certify.New(st, api, certify.WithMaxRetries(3))

	assert.ErrorIs(t, orch.Retry(context.Background(), 1), certify.ErrNotEligible)
	assert.Equal(t, 0, api.callCount())
}

func TestRunAuto_CertifiesEligibleInvoices(t *testing.T) {
	errored := draftInvoice(3)
	errored.Status = model.StatusError
	errored.RetryCount = 3 // at cap, must be skipped by the store scan

	st := newFakeStore(draftInvoice(1), draftInvoice(2), errored)
	api := &fakeAPI{resp: dgi.SignResponse{Reference: "R", Token: "tok"}}
	orch := certify.New(st, api, certify.WithMaxRetries(3), certify.WithConcurrency(2))

	result, err := orch.RunAuto(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Certified)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, model.StatusCertified, st.invoice(1).Status)
	assert.Equal(t, model.StatusCertified, st.invoice(2).Status)
	assert.Equal(t, model.StatusError, st.invoice(3).Status)
}

func TestRunAuto_OverlappingBatchSkipped(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{
		resp:    dgi.SignResponse{Reference: "R", Token: "tok"},
		blockCh: make(chan struct{}),
	}
	orch := certify.New(st, api)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.RunAuto(context.Background())
	}()

	require.Eventually(t, func() bool { return api.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	_, err := orch.RunAuto(context.Background())
	assert.ErrorIs(t, err, certify.ErrBatchRunning)

	close(api.blockCh)
	<-done

	// Once the first batch drains, a new one may start.
	result, err := orch.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed, "nothing left to certify")
}

func TestRunAuto_MixedOutcomes(t *testing.T) {
	st := newFakeStore(draftInvoice(1))
	api := &fakeAPI{err: model.NewTransientError("connection reset", 0, nil)}
	orch := certify.New(st, api)

	result, err := orch.RunAuto(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Certified)
}
