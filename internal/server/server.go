// Package server exposes the import and certification operations over HTTP
// for the presentation layer. The core stays plain data; this is just an
// adapter.
package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mikaelarth/fnev4/internal/certify"
	"github.com/mikaelarth/fnev4/internal/importer"
	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/store"
)

// Config holds server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server is the HTTP API server.
type Server struct {
	config   *Config
	router   *gin.Engine
	importer *importer.Importer
	orch     *certify.Orchestrator
	store    *store.Store
	log      *logrus.Logger
}

// NewServer creates the API server over already-wired components.
func NewServer(config *Config, im *importer.Importer, orch *certify.Orchestrator, st *store.Store, log *logrus.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:   config,
		router:   router,
		importer: im,
		orch:     orch,
		store:    st,
		log:      log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/import", s.handleImport)
		v1.POST("/certify", s.handleCertify)
		v1.POST("/invoices/:id/retry", s.handleRetry)
		v1.GET("/invoices", s.handleListInvoices)
		v1.GET("/invoices/:id", s.handleInvoice)
		v1.GET("/sessions/:id/report", s.handleSessionReport)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleImport accepts a multipart workbook upload and returns the import
// report. Per-sheet failures are part of the report, not HTTP errors.
func (s *Server) handleImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing multipart field 'file'"})
		return
	}
	defer file.Close()

	report, err := s.importer.ImportReader(c.Request.Context(), file, header.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleCertify triggers a manual batch, either over explicit ids or over
// every eligible invoice.
func (s *Server) handleCertify(c *gin.Context) {
	// An absent body means the same as {}: scan everything eligible.
	var req CertifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	var (
		result certify.BatchResult
		err    error
	)
	if len(req.IDs) > 0 {
		result, err = s.orch.CertifyBatch(c.Request.Context(), req.IDs)
	} else {
		result, err = s.orch.RunAuto(c.Request.Context())
	}
	if errors.Is(err, certify.ErrBatchRunning) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, CertifyResponse{
		Processed: result.Processed,
		Certified: result.Certified,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
}

func (s *Server) handleRetry(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice id"})
		return
	}

	err = s.orch.Retry(c.Request.Context(), id)
	switch {
	case errors.Is(err, certify.ErrNotEligible):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, certify.ErrInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case err != nil:
		// The attempt itself failed; state and audit log already reflect it.
		c.JSON(http.StatusOK, gin.H{"status": "error", "detail": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "certified"})
	}
}

func (s *Server) handleListInvoices(c *gin.Context) {
	var statuses []model.Status
	if raw := c.Query("status"); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status " + raw})
			return
		}
		statuses = append(statuses, status)
	}

	invoices, err := s.store.ListInvoices(c.Request.Context(), statuses...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

func (s *Server) handleInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice id"})
		return
	}

	inv, err := s.store.InvoiceByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "invoice not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	logs, err := s.store.ApiLogsForInvoice(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": inv, "api_logs": logs})
}

func (s *Server) handleSessionReport(c *gin.Context) {
	session, err := s.store.SessionByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	invoices, err := s.store.SessionInvoices(c.Request.Context(), session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session, "invoices": invoices})
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	return uint(n), err
}
