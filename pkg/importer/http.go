package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/common/models"
	"github.com/synaptica-ai/hospital-import/pkg/institution"
	"github.com/synaptica-ai/hospital-import/pkg/record"
)

// Runner executes one import request.
type Runner func(ctx context.Context, req models.ImportRequest) (*models.ImportSummary, error)

type HTTPHandler struct {
	registry *institution.Registry
	run      Runner
	maxBody  int64
}

func NewHTTPHandler(registry *institution.Registry, run Runner, maxBody int64) *HTTPHandler {
	return &HTTPHandler{registry: registry, run: run, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/institutions", h.handleInstitutions).Methods(http.MethodGet)
	router.HandleFunc("/institutions/{institution}/normalize/{kind}", h.handleNormalize).Methods(http.MethodPost)
	router.HandleFunc("/imports", h.handleImport).Methods(http.MethodPost)
}

type normalizeRequest struct {
	Row map[string]interface{} `json:"row"`
}

type normalizeResponse struct {
	Document   record.Document    `json:"document,omitempty"`
	Violations []record.Violation `json:"violations,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (h *HTTPHandler) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"institutions": h.registry.Names()})
}

// handleNormalize previews the document a row would produce without persisting it.
func (h *HTTPHandler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	adapter, err := h.registry.Lookup(vars["institution"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	kind, err := record.ParseKind(vars["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req normalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Row == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := institution.Normalize(adapter, kind, record.Row(req.Row))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, normalizeResponse{
			Violations: Violations(err),
			Error:      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, normalizeResponse{Document: doc})
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req models.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Institution == "" || req.PatientsFile == "" || req.TreatmentsFile == "" {
		http.Error(w, "institution, patients_file and treatments_file are required", http.StatusBadRequest)
		return
	}

	summary, err := h.run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrLocked):
			status = http.StatusConflict
		case errors.Is(err, ErrPathNotAllowed):
			status = http.StatusForbidden
		case errors.Is(err, record.ErrSchemaViolation), errors.Is(err, ErrUnlinkedTreatment):
			status = http.StatusUnprocessableEntity
		}
		logger.Log.WithError(err).WithField("institution", req.Institution).Error("import request failed")
		if summary == nil {
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, status, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
