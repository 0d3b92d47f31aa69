package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

// Pinger reports whether the backing store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr         string
	Stats        *services.StatsService
	Transactions *services.TransactionService
	Resolver     *identity.Resolver
	// Ready backs /readyz. Nil means always ready.
	Ready Pinger
	// RateLimit is the per-client budget for writes per minute.
	RateLimit int
	// RecentWindow is the default for ?recent= and ?n=.
	RecentWindow int
	Logger       *log.Logger
}

type Server struct {
	http.Server
	stats        *services.StatsService
	txs          *services.TransactionService
	ready        Pinger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	recentWindow int
	logger       *log.Logger
	now          func() time.Time
}

// NewServer wires routes and middleware, returning a server ready to Run.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	window := opts.RecentWindow
	if window <= 0 {
		window = core.DefaultRecentWindow
	}

	s := &Server{
		stats:        opts.Stats,
		txs:          opts.Transactions,
		ready:        opts.Ready,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		detector:     security.NewDetector(),
		recentWindow: window,
		logger:       logger,
		now:          time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	auth := opts.Resolver.Middleware
	limit := s.limiter.Middleware(s.detector.ExtractClientIP)

	mux.Handle("GET /api/stats", auth(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /api/charts/categories", auth(http.HandlerFunc(s.handleCategoryChart)))
	mux.Handle("GET /api/charts/income-expense", auth(http.HandlerFunc(s.handleIncomeExpenseChart)))
	mux.Handle("GET /api/transactions/recent", auth(http.HandlerFunc(s.handleRecent)))
	mux.Handle("GET /api/transactions/export.csv", auth(http.HandlerFunc(s.handleExportCSV)))
	mux.Handle("POST /transactions", limit(auth(http.HandlerFunc(s.handleCreateTransaction))))
	mux.Handle("DELETE /transactions/{id}", auth(http.HandlerFunc(s.handleDeleteTransaction)))

	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
// The rate limiter's cleanup loop lives and dies with the server.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go s.limiter.Run(limiterCtx, 5*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).Warn("Readiness check failed", log.FieldError, err)
			writeError(w, r, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// fail maps service errors to statuses. Validation errors are the caller's
// fault; anything unrecognised is logged and reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "transaction not found")
	case isValidationError(err):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		log.FromContext(r.Context()).Error("Request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidType, core.ErrInvalidAmount, core.ErrInvalidDate,
		core.ErrEmptyCategory, core.ErrDescriptionLong, core.ErrEmptyUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func userFrom(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id
}
