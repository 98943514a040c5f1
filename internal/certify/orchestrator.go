// Package certify drives the invoice lifecycle Draft -> Validated ->
// Certified | Error against the authority's API. It guarantees at most one
// outstanding call per invoice, converts every API failure into a state
// change plus an audit row, and never retries past the configured cap on
// its own.
package certify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikaelarth/fnev4/internal/dgi"
	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/store"
)

var (
	// ErrInFlight means a certification call for this invoice is already
	// outstanding; the trigger is a no-op, not queued.
	ErrInFlight = errors.New("certification already in flight for invoice")

	// ErrBatchRunning means a batch is already running; a new scan is
	// skipped rather than queued.
	ErrBatchRunning = errors.New("certification batch already running")

	// ErrNotEligible means the invoice state does not allow certification.
	ErrNotEligible = errors.New("invoice not eligible for certification")
)

// Store is the persistence surface the orchestrator consumes.
type Store interface {
	InvoiceByID(ctx context.Context, id uint) (*model.Invoice, error)
	ListCertifiable(ctx context.Context, maxRetries int) ([]model.Invoice, error)
	MarkValidated(ctx context.Context, id uint) error
	MarkCertified(ctx context.Context, id uint, art store.CertificationArtifacts) error
	MarkError(ctx context.Context, id uint, message string, permanent bool, maxRetries int) error
	AppendApiLog(ctx context.Context, entry *model.ApiLog) error
}

// API is the remote certification endpoint.
type API interface {
	Sign(ctx context.Context, req *dgi.SignRequest) (*dgi.Result, error)
	VerificationURL(token string) string
}

// New creates an Orchestrator.
func New(st Store, api API, opts ...Option) *Orchestrator {
	e := &Orchestrator{
		store:       st,
		api:         api,
		log:         logrus.New(),
		maxRetries:  3,
		concurrency: 4,
		inflight:    make(map[uint]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Orchestrator owns every Status mutation after import.
type Orchestrator struct {
	store Store
	api   API
	log   *logrus.Logger

	maxRetries  int
	concurrency int

	mu       sync.Mutex
	inflight map[uint]struct{}

	batchActive atomic.Bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMaxRetries sets the automatic retry cap.
func WithMaxRetries(n int) Option {
	return func(e *Orchestrator) {
		e.maxRetries = n
	}
}

// WithConcurrency caps concurrent certification calls within a batch.
func WithConcurrency(n int) Option {
	return func(e *Orchestrator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Orchestrator) {
		e.log = l
	}
}

// MaxRetries returns the configured retry cap.
func (e *Orchestrator) MaxRetries() int {
	return e.maxRetries
}

// Certify submits one invoice. A second trigger while the call is
// outstanding returns ErrInFlight without any side effect; an in-progress
// call is never cancelled mid-flight.
func (e *Orchestrator) Certify(ctx context.Context, id uint) error {
	if !e.acquire(id) {
		return ErrInFlight
	}
	defer e.release(id)

	inv, err := e.store.InvoiceByID(ctx, id)
	if err != nil {
		return err
	}
	if !inv.Certifiable(e.maxRetries) {
		return ErrNotEligible
	}

	// Draft invoices were validated at import time; Error invoices reach
	// here only through an explicit retry trigger. Both re-enter through
	// Validated.
	if inv.Status == model.StatusDraft || inv.Status == model.StatusError {
		if err := e.store.MarkValidated(ctx, id); err != nil {
			return err
		}
		inv.Status = model.StatusValidated
	}

	return e.submit(ctx, inv)
}

// submit performs the remote round trip and converts the outcome into a
// state change plus one immutable audit row.
func (e *Orchestrator) submit(ctx context.Context, inv *model.Invoice) error {
	attempt := inv.RetryCount + 1
	req := dgi.BuildSignRequest(inv)

	res, signErr := e.api.Sign(ctx, req)

	entry := &model.ApiLog{
		InvoiceID: inv.ID,
		Attempt:   attempt,
		Success:   signErr == nil,
	}
	if res != nil {
		entry.RequestBody = res.RequestBody
		entry.Response = res.ResponseBody
		entry.StatusCode = res.StatusCode
		entry.LatencyMS = res.Latency.Milliseconds()
	}
	if signErr != nil && entry.Response == "" {
		entry.Response = signErr.Error()
	}
	if err := e.store.AppendApiLog(ctx, entry); err != nil {
		e.log.WithError(err).WithField("invoice", inv.ID).Error("failed to append audit row")
	}

	if signErr != nil {
		permanent := false
		var certErr *model.CertificationError
		if errors.As(signErr, &certErr) {
			permanent = !certErr.Transient
		}
		if err := e.store.MarkError(ctx, inv.ID, signErr.Error(), permanent, e.maxRetries); err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"invoice":   inv.ID,
			"number":    inv.Number,
			"attempt":   attempt,
			"permanent": permanent,
		}).Warn(signErr.Error())
		return signErr
	}

	art := store.CertificationArtifacts{
		Reference:      res.Response.Reference,
		Token:          res.Response.Token,
		QRPayload:      e.api.VerificationURL(res.Response.Token),
		StickerBalance: res.Response.BalanceSticker,
		At:             time.Now().UTC(),
	}
	if err := e.store.MarkCertified(ctx, inv.ID, art); err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"invoice":   inv.ID,
		"number":    inv.Number,
		"reference": art.Reference,
		"stickers":  art.StickerBalance,
	}).Info("invoice certified")
	return nil
}

// Retry re-queues one Error invoice if it is still below the retry cap.
// Past the cap the invoice needs manual correction first (ResetRetries at
// the store level).
func (e *Orchestrator) Retry(ctx context.Context, id uint) error {
	inv, err := e.store.InvoiceByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != model.StatusError || inv.RetryCount >= e.maxRetries {
		return ErrNotEligible
	}
	return e.Certify(ctx, id)
}

// BatchResult summarizes one certification batch.
type BatchResult struct {
	Processed int
	Certified int
	Failed    int
	Skipped   int
}

// RunAuto runs one automatic pass over every eligible invoice. If a batch
// is already running the scan is skipped, not queued.
func (e *Orchestrator) RunAuto(ctx context.Context) (BatchResult, error) {
	if !e.batchActive.CompareAndSwap(false, true) {
		return BatchResult{}, ErrBatchRunning
	}
	defer e.batchActive.Store(false)

	invoices, err := e.store.ListCertifiable(ctx, e.maxRetries)
	if err != nil {
		return BatchResult{}, err
	}
	return e.runBatch(ctx, invoiceIDs(invoices)), nil
}

// CertifyBatch runs a manual operator-selected batch. It holds the same
// gate as automatic scans so the two never overlap.
func (e *Orchestrator) CertifyBatch(ctx context.Context, ids []uint) (BatchResult, error) {
	if !e.batchActive.CompareAndSwap(false, true) {
		return BatchResult{}, ErrBatchRunning
	}
	defer e.batchActive.Store(false)

	return e.runBatch(ctx, ids), nil
}

// runBatch processes ids in their given (stable) order through a bounded
// worker pool.
func (e *Orchestrator) runBatch(ctx context.Context, ids []uint) BatchResult {
	var (
		result BatchResult
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, e.concurrency)
	)

	result.Processed = len(ids)
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id uint) {
			defer wg.Done()
			defer func() { <-sem }()

			err := e.Certify(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Certified++
			case errors.Is(err, ErrInFlight), errors.Is(err, ErrNotEligible):
				result.Skipped++
			default:
				result.Failed++
			}
		}(id)
	}
	wg.Wait()
	return result
}

func (e *Orchestrator) acquire(id uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Orchestrator) release(id uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, id)
}

func invoiceIDs(invoices []model.Invoice) []uint {
	ids := make([]uint, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}
