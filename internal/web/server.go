// Package web serves the HTTP API, the SSE streams and a small status page.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

const internalErrorDetail = "Internal Server Error"

type cardService interface {
	UseCard(ctx context.Context, req domain.TransactionRequest) (domain.TransactionResult, error)
	TopUp(ctx context.Context, targetFiat decimal.Decimal) (domain.TopUpResult, error)
	Status(ctx context.Context, walletAddress string) (domain.StatusReport, error)
}

type balanceSource interface {
	Subscribe() chan domain.BalanceSnapshot
	Unsubscribe(ch chan domain.BalanceSnapshot)
	Latest() (domain.BalanceSnapshot, bool)
}

type journalReader interface {
	EventsAfter(index uint64, kinds ...domain.JournalKind) (domain.JournalPage, error)
}

// Server exposes the card API, the HTML page and the SSE streams.
type Server struct {
	Addr     string
	Service  cardService
	Balances balanceSource
	Journal  journalReader
	Metrics  http.Handler

	logger *zap.Logger
}

// NewServer creates a new web server instance. balances, journal and metrics may be nil.
func NewServer(addr string, svc cardService, balances balanceSource, journal journalReader, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	return &Server{
		Addr:     addr,
		Service:  svc,
		Balances: balances,
		Journal:  journal,
		Metrics:  metrics,
		logger:   logger.With(zap.String("component", "web")),
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))

	router.GET("/", s.handleIndex)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.Metrics))
	router.GET("/status", s.handleStatus)
	router.POST("/use-card", s.handleUseCard)
	router.POST("/top-up", s.handleTopUp)
	router.GET("/balance/stream", s.handleBalanceStream)
	router.GET("/journal/stream", s.handleJournalStream)

	return router
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves HTTPS with certificates obtained over ACME. A second
// listener on :80 answers the HTTP-01 challenges and redirects everything else.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("acme listener shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme listener", zap.Error(err))
		}
	}()

	s.logger.Info("https server listening", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	report, err := s.Service.Status(c.Request.Context(), c.Query("wallet_address"))
	if err != nil {
		s.writeError(c, "status", err)
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(report))
}

func (s *Server) handleUseCard(c *gin.Context) {
	var req useCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}

	result, err := s.Service.UseCard(c.Request.Context(), domain.TransactionRequest{
		Amount:        req.Amount,
		Currency:      domain.Currency(req.Currency),
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		s.writeError(c, "use-card", err)
		return
	}

	c.JSON(http.StatusOK, toUseCardResponse(result))
}

func (s *Server) handleTopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}

	result, err := s.Service.TopUp(c.Request.Context(), req.Amount)
	if err != nil {
		s.writeError(c, "top-up", err)
		return
	}

	c.JSON(http.StatusOK, toTopUpResponse(result))
}

// writeError maps error kinds to status codes. Internal errors are logged in full
// and answered with a generic message.
func (s *Server) writeError(c *gin.Context, op string, err error) {
	var partial *domain.PartialReplenishmentFailure
	if errors.As(err, &partial) {
		s.logger.Warn("partial replenishment", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusConflict, partialFailureResponse{
			Detail:     err.Error(),
			TxHash:     partial.WithdrawalTxHash,
			NewBalance: partial.CardBalance.InexactFloat64(),
		})
		return
	}

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindBusinessRule:
		c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
	default:
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
