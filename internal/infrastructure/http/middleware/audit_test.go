package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sasp-edomex/scil-auditoria/internal/testutil"
)

func TestAuditLogger_Disabled_PassesThrough(t *testing.T) {
	logger := testutil.NewTestLogger()
	mw := AuditLogger(logger, AuditConfig{Enabled: false})

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/solventacion", strings.NewReader(`{"rfc":"X"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected downstream handler to run when auditing is disabled")
	}
}

func TestAuditLogger_SkipsReadOnlyMethods(t *testing.T) {
	logger := testutil.NewTestLogger()
	mw := AuditLogger(logger, AuditConfig{Enabled: true, LogRequestBody: true, MaxBodySize: 1024})

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/entidades", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected GET requests to reach the handler")
	}
}

func TestAuditLogger_PreservesRequestBodyForDownstreamHandler(t *testing.T) {
	logger := testutil.NewTestLogger()
	mw := AuditLogger(logger, AuditConfig{Enabled: true, LogRequestBody: true, MaxBodySize: 1024})

	payload := `{"rfc":"CUPU800825569","estado":"SOLVENTADO"}`
	var gotBody string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, len(payload))
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/solventacion", strings.NewReader(payload))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotBody != payload {
		t.Errorf("expected downstream handler to still see the full body, got %q", gotBody)
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAuditLogger_CapturesResponseStatus(t *testing.T) {
	logger := testutil.NewTestLogger()
	mw := AuditLogger(logger, AuditConfig{Enabled: true, LogResponseBody: true, MaxBodySize: 1024})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("x"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestAuditResponseWriter_DefaultsToOKWithoutExplicitWriteHeader(t *testing.T) {
	base := httptest.NewRecorder()
	rw := &auditResponseWriter{ResponseWriter: base, captureBody: true, maxBodySize: 16}

	rw.Write([]byte("hello"))

	if rw.statusCode != http.StatusOK {
		t.Errorf("expected default status %d, got %d", http.StatusOK, rw.statusCode)
	}
	if string(rw.captured) != "hello" {
		t.Errorf("expected captured body %q, got %q", "hello", rw.captured)
	}
}

func TestAuditResponseWriter_CapTruncatesCapturedBody(t *testing.T) {
	base := httptest.NewRecorder()
	rw := &auditResponseWriter{ResponseWriter: base, captureBody: true, maxBodySize: 4}

	rw.Write([]byte("abcdefgh"))

	if len(rw.captured) != 4 {
		t.Errorf("expected captured body capped at 4 bytes, got %d (%q)", len(rw.captured), rw.captured)
	}
}
