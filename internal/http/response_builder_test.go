package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body
}

func TestJSONResponseBuilder_Success(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Field("inserted", 3).
		Field("success", false).
		Header("X-Custom", "value").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	body := decodeEnvelope(t, w)
	if body["success"] != true || body["inserted"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		b    *JSONResponseBuilder
		code int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"bad gateway", BadGatewayError("upstream down"), http.StatusBadGateway},
		{"not implemented", NotImplementedError("read-only"), http.StatusNotImplemented},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
		{"not found", NotFoundError("nope"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.b.Write(w)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != false || body["error"] == "" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("status = %d, Allow = %q", w.Code, w.Header().Get("Allow"))
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Data(func() {}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if decodeEnvelope(t, w)["success"] != false {
		t.Error("expected failed envelope")
	}
}
