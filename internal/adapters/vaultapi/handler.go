package vaultapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"oraclevault/internal/core"
	"oraclevault/pkg/domain"
)

// CallerHeader carries the caller identity on owner-scoped endpoints. The
// deployment's edge proxy is expected to authenticate and set it.
const CallerHeader = "X-Vault-Caller"

// Handler provides HTTP access to record lifecycles and oracle callbacks.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs a vault HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "vault service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/records":
		h.handleRecords(w, r)
	case strings.HasPrefix(path, "/api/v1/records/"):
		h.handleRecord(w, r, strings.TrimPrefix(path, "/api/v1/records/"))
	case r.Method == http.MethodPost && path == "/api/v1/oracle/callbacks":
		h.handleCallback(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/events":
		h.handleEvents(w, r)
	default:
		http.NotFound(w, r)
	}
}

type createRequest struct {
	Payload string `json:"payload"`
}

type recordResponse struct {
	Record core.Record `json:"record"`
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		caller := callerIdentity(r)
		if caller == "" {
			writeError(w, http.StatusUnauthorized, "caller identity required")
			return
		}
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid create request payload")
			return
		}
		payload, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "payload must be base64")
			return
		}
		if len(payload) == 0 {
			writeError(w, http.StatusBadRequest, "payload required")
			return
		}
		record, _, err := h.Service.CreateRecord(r.Context(), caller, payload)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordResponse{Record: record})
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner != "" {
			writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "record_ids": h.Service.ListOwned(r.Context(), owner)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": h.Service.ListRecords(r.Context())})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "record id must be an unsigned integer")
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		record, err := h.Service.GetRecord(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordResponse{Record: record})
		return
	}

	if len(segments) != 2 {
		http.NotFound(w, r)
		return
	}

	caller := callerIdentity(r)
	switch segments[1] {
	case "reconstruction":
		switch r.Method {
		case http.MethodPost:
			binding, _, err := h.Service.RequestReconstruction(r.Context(), id, caller)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"binding": binding})
		case http.MethodDelete:
			record, _, err := h.Service.CancelRequest(r.Context(), id, caller)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, recordResponse{Record: record})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "result":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		result, handle, err := h.Service.ReadResult(r.Context(), id, caller)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result": result,
			"handle": base64.StdEncoding.EncodeToString(handle),
		})
	default:
		http.NotFound(w, r)
	}
}

type callbackRequest struct {
	CorrelationID uint64 `json:"correlation_id"`
	Cleartext     string `json:"cleartext"`
	Proof         string `json:"proof"`
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}
	cleartext, err := base64.StdEncoding.DecodeString(req.Cleartext)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cleartext must be base64")
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "proof must be base64")
		return
	}
	record, _, err := h.Service.HandleCallback(r.Context(), req.CorrelationID, cleartext, proof)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Record: record})
}

func (h *Handler) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": h.Service.Events()})
}

func callerIdentity(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerHeader))
}

// statusForError maps domain errors onto HTTP statuses. Unknown errors are
// internal.
func statusForError(err error) int {
	var (
		notFound   domain.ErrNotFound
		noOwner    domain.ErrOwnerRequired
		denied     domain.ErrNotAuthorized
		processed  domain.ErrAlreadyProcessed
		requested  domain.ErrAlreadyRequested
		unknownReq domain.ErrUnknownRequest
		invalid    domain.ErrInvalidProof
		notReady   domain.ErrNotReady
		noRequest  domain.ErrNoRequestInFlight
		violation  domain.RuleViolationError
	)
	switch {
	case errors.As(err, &noOwner):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &unknownReq):
		return http.StatusNotFound
	case errors.As(err, &denied):
		return http.StatusForbidden
	case errors.As(err, &processed), errors.As(err, &requested), errors.As(err, &notReady), errors.As(err, &noRequest):
		return http.StatusConflict
	case errors.As(err, &invalid), errors.As(err, &violation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
