package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/engine"
	"github.com/Simplici0/studio-quotes/internal/logger"
	"github.com/Simplici0/studio-quotes/internal/metrics"
	"github.com/Simplici0/studio-quotes/internal/store"
)

const maxBodyBytes = 1 << 20

type server struct {
	svc    *engine.Service
	logger logger.Logger
	ping   func(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

type featuresRequest struct {
	MustHaveFeatures []string `json:"mustHaveFeatures"`
}

type emailRequest struct {
	SpecialNotes string `json:"specialNotes"`
	Suggest      bool   `json:"suggest"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/features", s.handleUpdateFeatures)
			r.Get("/pricing", s.handlePricing)
			r.Get("/comparison", s.handleComparison)
			r.Get("/proposal", s.handleProposal)
			r.Get("/proposal.txt", s.handleProposalText)
			r.Get("/proposal.html", s.handleProposalHTML)
			r.Get("/proposal.pdf", s.handleProposalPDF)
			r.Post("/proposal/email", s.handleEmailProposal)
			r.Get("/admin.txt", s.handleAdminText)
		})
	})
	return r
}

// observe records request latency by route pattern and logs server errors.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())

		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", map[string]interface{}{
				"method":    r.Method,
				"route":     route,
				"status":    status,
				"requestId": middleware.GetReqID(r.Context()),
			})
		}
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "catalogVersion": s.svc.Catalog().Version})
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := assessment.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var answers assessment.Answers
	if err := json.Unmarshal(raw, &answers); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.svc.Submit(r.Context(), answers)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	q := store.Query{Text: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	rows, err := s.svc.List(r.Context(), q)
	if err != nil {
		s.fail(w, err)
		return
	}
	if rows == nil {
		rows = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleUpdateFeatures(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := assessment.ValidateFeatureUpdate(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req featuresRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.svc.UpdateFeatures(r.Context(), chi.URLParam(r, "id"), req.MustHaveFeatures)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handlePricing(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Pricing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleComparison(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.svc.Comparison(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *server) handleComparisonText(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.ComparisonText(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func (s *server) handleProposal(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Proposal(r.Context(), chi.URLParam(r, "id"), proposalOptions(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleProposalText(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.ProposalText(r.Context(), chi.URLParam(r, "id"), proposalOptions(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func (s *server) handleProposalHTML(w http.ResponseWriter, r *http.Request) {
	html, err := s.svc.ProposalHTML(r.Context(), chi.URLParam(r, "id"), proposalOptions(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *server) handleProposalPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pdf, err := s.svc.ProposalPDF(r.Context(), id, proposalOptions(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="proposal-`+id+`.pdf"`)
	_, _ = w.Write(pdf)
}

func (s *server) handleEmailProposal(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	msgID, err := s.svc.EmailProposal(r.Context(), chi.URLParam(r, "id"), engine.ProposalOptions{
		SpecialNotes: req.SpecialNotes,
		Suggest:      req.Suggest,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"messageId": msgID})
}

func (s *server) handleAdminText(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.AdminText(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func proposalOptions(r *http.Request) engine.ProposalOptions {
	q := r.URL.Query()
	suggest, _ := strconv.ParseBool(q.Get("suggest"))
	return engine.ProposalOptions{SpecialNotes: q.Get("notes"), Suggest: suggest}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New("request body too large or unreadable")
	}
	return raw, nil
}

// fail maps service errors to status codes.
func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNoRecipient), errors.Is(err, assessment.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithError(err).Error("request error", nil)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
