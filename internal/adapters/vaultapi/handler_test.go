package vaultapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"oraclevault/internal/core"
	"oraclevault/internal/oracle"
	"oraclevault/pkg/domain"
)

func newTestHandler(t *testing.T) (*Handler, *oracle.Loopback) {
	t.Helper()
	lo := oracle.NewLoopback([]byte("api-secret"))
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(),
		core.WithOracleGateway(lo),
		core.WithVerifier(lo),
	)
	return NewHandler(svc), lo
}

func doJSON(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) core.Record {
	t.Helper()
	var resp recordResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode record response: %v", err)
	}
	return resp.Record
}

func createRecordHTTP(t *testing.T, h http.Handler, owner string, payload []byte) core.Record {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/records", owner, map[string]string{
		"payload": base64.StdEncoding.EncodeToString(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeRecord(t, rec)
}

func TestCreateRecordEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	record := createRecordHTTP(t, h, "alice", []byte("ciphertext"))
	if record.ID != 1 || record.Owner != "alice" || record.State != core.StateCreated {
		t.Fatalf("unexpected record: %+v", record)
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records", "", map[string]string{"payload": "eA=="}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing caller: expected 401, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records", "alice", map[string]string{"payload": "not-base64!"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad base64: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records", "alice", map[string]string{"payload": ""}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty payload: expected 400, got %d", rec.Code)
	}
}

func TestGetAndListEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecordHTTP(t, h, "alice", []byte("one"))
	createRecordHTTP(t, h, "bob", []byte("two"))
	createRecordHTTP(t, h, "alice", []byte("three"))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/records/2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if got := decodeRecord(t, rec); got.Owner != "bob" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/records/99", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing record: expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/records/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/records?owner=alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list owned: expected 200, got %d", rec.Code)
	}
	var owned struct {
		Owner     string   `json:"owner"`
		RecordIDs []uint64 `json:"record_ids"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&owned); err != nil {
		t.Fatalf("decode owned: %v", err)
	}
	if len(owned.RecordIDs) != 2 || owned.RecordIDs[0] != 1 || owned.RecordIDs[1] != 3 {
		t.Fatalf("unexpected owned ids: %+v", owned)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/records", "", nil)
	var all struct {
		Records []core.Record `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all.Records))
	}
}

func TestReconstructionFlowOverHTTP(t *testing.T) {
	h, lo := newTestHandler(t)
	record := createRecordHTTP(t, h, "alice", []byte("ciphertext"))
	base := fmt.Sprintf("/api/v1/records/%d", record.ID)

	if rec := doJSON(t, h, http.MethodPost, base+"/reconstruction", "mallory", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner request: expected 403, got %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, base+"/reconstruction", "alice", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("request: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var issued struct {
		Binding core.CorrelationBinding `json:"binding"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode binding: %v", err)
	}
	if issued.Binding.RecordID != record.ID {
		t.Fatalf("unexpected binding: %+v", issued.Binding)
	}

	if rec := doJSON(t, h, http.MethodPost, base+"/reconstruction", "alice", nil); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate request: expected 409, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, base+"/result", "alice", nil); rec.Code != http.StatusConflict {
		t.Fatalf("early result read: expected 409, got %d", rec.Code)
	}

	cleartext, proof, ok := lo.Answer(issued.Binding.CorrelationID)
	if !ok {
		t.Fatalf("loopback lost the submission")
	}

	callback := func(correlationID uint64, cleartext, proof []byte) *httptest.ResponseRecorder {
		return doJSON(t, h, http.MethodPost, "/api/v1/oracle/callbacks", "", map[string]any{
			"correlation_id": correlationID,
			"cleartext":      base64.StdEncoding.EncodeToString(cleartext),
			"proof":          base64.StdEncoding.EncodeToString(proof),
		})
	}

	if rec := callback(issued.Binding.CorrelationID+5, cleartext, proof); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown correlation: expected 404, got %d", rec.Code)
	}
	if rec := callback(issued.Binding.CorrelationID, cleartext, []byte("wrong")); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid proof: expected 422, got %d", rec.Code)
	}
	rec = callback(issued.Binding.CorrelationID, cleartext, proof)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeRecord(t, rec); got.State != core.StateCompleted {
		t.Fatalf("expected completed record, got %+v", got)
	}

	if rec := doJSON(t, h, http.MethodGet, base+"/result", "mallory", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner result read: expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, base+"/result", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result read: expected 200, got %d", rec.Code)
	}
	var result struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	handle, err := base64.StdEncoding.DecodeString(result.Handle)
	if err != nil {
		t.Fatalf("handle base64: %v", err)
	}
	unwrapped, err := core.UnwrapResult(handle)
	if err != nil || string(unwrapped) != "ciphertext" {
		t.Fatalf("unexpected unwrapped result: %q err=%v", unwrapped, err)
	}
}

func TestCancelReconstructionOverHTTP(t *testing.T) {
	h, _ := newTestHandler(t)
	record := createRecordHTTP(t, h, "alice", []byte("ciphertext"))
	base := fmt.Sprintf("/api/v1/records/%d", record.ID)

	if rec := doJSON(t, h, http.MethodDelete, base+"/reconstruction", "alice", nil); rec.Code != http.StatusConflict {
		t.Fatalf("cancel without request: expected 409, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, base+"/reconstruction", "alice", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("request: got %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodDelete, base+"/reconstruction", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeRecord(t, rec); got.State != core.StateCreated {
		t.Fatalf("expected created state after cancel, got %+v", got)
	}
}

func TestEventsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	createRecordHTTP(t, h, "alice", []byte("x"))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Events []core.Event `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Kind != core.EventRecordCreated {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}
}

func TestStatusForErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrOwnerRequired{}, http.StatusBadRequest},
		{domain.ErrNotFound{Entity: domain.EntityRecord, ID: 1}, http.StatusNotFound},
		{domain.ErrUnknownRequest{CorrelationID: 9}, http.StatusNotFound},
		{domain.ErrNotAuthorized{RecordID: 1, Caller: "mallory"}, http.StatusForbidden},
		{domain.ErrAlreadyProcessed{RecordID: 1}, http.StatusConflict},
		{domain.ErrAlreadyRequested{RecordID: 1, CorrelationID: 2}, http.StatusConflict},
		{domain.ErrNotReady{RecordID: 1}, http.StatusConflict},
		{domain.ErrNoRequestInFlight{RecordID: 1}, http.StatusConflict},
		{domain.ErrInvalidProof{CorrelationID: 2}, http.StatusUnprocessableEntity},
		{domain.RuleViolationError{}, http.StatusUnprocessableEntity},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	h, _ := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/unknown", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/records", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad method: expected 405, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/api/v1/records/1", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad record method: expected 405, got %d", rec.Code)
	}
	unconfigured := &Handler{}
	if rec := doJSON(t, unconfigured, http.MethodGet, "/api/v1/records", "", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured handler: expected 500, got %d", rec.Code)
	}
}
