package http

import (
	"errors"
	"io"
	"net/http"

	"gauntlet-service/internal/app"
	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 300 << 10

// Options configure the HTTP surface.
type Options struct {
	AllowedOrigins   []string
	TrustedProxyHops int
	MaxBodyBytes     int64
}

// Handler serves the public JSON API.
type Handler struct {
	service *app.SubmissionService
	log     *logger.Logger
	opts    Options
}

func NewHandler(service *app.SubmissionService, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{service: service, log: log, opts: opts}
}

// Router wires the middleware chain and the /api routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)
	r.Use(securityHeaders)
	r.Use(corsAllowList(h.opts.AllowedOrigins))
	r.Use(limitBody(h.opts.MaxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/stats", h.stats)
		r.Get("/peers", h.peers)
		r.Post("/submissions", h.submit)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"totalSubmissions": h.service.TotalSubmissions(r.Context())})
}

func (h *Handler) peers(w http.ResponseWriter, r *http.Request) {
	peers, err := h.service.Peers(r.Context(), r.URL.Query().Get("archetype"))
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.requestLog(r).Error("peers lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch peers.")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Peer{"peers": peers})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid payload.")
		return
	}

	reqID := RequestIDFrom(r.Context())
	result, err := h.service.Submit(r.Context(), app.Submission{
		Body:      body,
		ClientIP:  clientIP(r, h.opts.TrustedProxyHops),
		UserAgent: r.UserAgent(),
		RequestID: reqID,
	})
	if err != nil {
		status, msg := statusFor(err)
		log := h.requestLog(r)
		if status == http.StatusInternalServerError {
			log.Error("submission failed", "error", err)
		} else {
			log.Debug("submission rejected", "status", status, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]domain.ClassificationResult{"results": result})
}

func (h *Handler) requestLog(r *http.Request) *logger.Logger {
	return h.log.With("request_id", RequestIDFrom(r.Context()))
}

// statusFor maps pipeline errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Reason
	case errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusForbidden, "Security check failed. Please retry."
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many submissions. Please try again later."
	case errors.Is(err, domain.ErrBudgetExhausted), errors.Is(err, domain.ErrCapacityExhausted):
		return http.StatusServiceUnavailable, "Analysis is at capacity right now. Please try again shortly."
	case errors.Is(err, domain.ErrClassifierTimeout):
		return http.StatusGatewayTimeout, "Analysis took too long. Please try again."
	default:
		return http.StatusInternalServerError, "Failed to process submission."
	}
}
