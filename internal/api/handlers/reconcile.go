package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/sitelens/internal/api/problem"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/go-playground/validator/v10"
)

// MaxBatchURLs caps the number of pages one batch request may reconcile.
const MaxBatchURLs = reconcile.MaxBatchURLs

// ReconcileHandler serves per-page reports.
type ReconcileHandler struct {
	service     *reconcile.Service
	search      probe.Adapter
	behavior    probe.Adapter
	env         string
	concurrency int
	validate    *validator.Validate
}

func NewReconcileHandler(service *reconcile.Service, search, behavior probe.Adapter, env string, concurrency int) *ReconcileHandler {
	return &ReconcileHandler{
		service:     service,
		search:      search,
		behavior:    behavior,
		env:         env,
		concurrency: concurrency,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Get handles GET /api/v1/reconcile?url=<canonical>.
func (h *ReconcileHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if err := reconcile.CheckURL(raw); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithErrors(map[string]any{"url": err.Message}))
		return
	}

	report := h.service.Reconcile(r.Context(), raw, h.search, h.behavior)
	writeJSON(w, http.StatusOK, report)
}

type batchRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,max=50"`
}

type batchResponse struct {
	Reports []reconcile.Report `json:"reports"`
}

// Batch handles POST /api/v1/reconcile/batch with a {"urls": [...]} body.
// Reports come back in request order.
func (h *ReconcileHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request too large", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid JSON", err, h.env)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithDetail(fmt.Sprintf("urls must hold between 1 and %d entries", MaxBatchURLs)))
		return
	}

	urls := make([]string, len(req.URLs))
	fieldErrs := map[string]any{}
	for i, raw := range req.URLs {
		urls[i] = strings.TrimSpace(raw)
		if err := reconcile.CheckURL(urls[i]); err != nil {
			fieldErrs[fmt.Sprintf("urls[%d]", i)] = err.Message
		}
	}
	if len(fieldErrs) > 0 {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", errors.New("invalid urls"), h.env,
			problem.WithErrors(fieldErrs))
		return
	}

	reports := h.service.ReconcileAll(r.Context(), urls, h.search, h.behavior, h.concurrency)
	writeJSON(w, http.StatusOK, batchResponse{Reports: reports})
}
