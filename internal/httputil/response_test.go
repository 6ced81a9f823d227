package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "bad stage")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "bad stage" {
		t.Errorf("error = %s, want 'bad stage'", resp["error"])
	}
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"fires": 3})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["fires"] != 3 {
		t.Errorf("fires = %d, want 3", resp["fires"])
	}
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		want  int
	}{
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "x") }, http.StatusBadRequest},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "x") }, http.StatusInternalServerError},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x") }, http.StatusNotFound},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "x") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireGET(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := httptest.NewRecorder()
		if !RequireGET(rec, httptest.NewRequest(method, "/", nil)) {
			t.Errorf("%s rejected", method)
		}
	}

	rec := httptest.NewRecorder()
	if RequireGET(rec, httptest.NewRequest(http.MethodPost, "/", nil)) {
		t.Fatal("POST accepted")
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Errorf("Allow = %q", allow)
	}
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/?stage=2&duration=12.5&bad=x", nil)

	if v, err := QueryInt(r, "stage", 1); err != nil || v != 2 {
		t.Errorf("QueryInt(stage) = %d, %v", v, err)
	}
	if v, err := QueryInt(r, "missing", 7); err != nil || v != 7 {
		t.Errorf("QueryInt(missing) = %d, %v", v, err)
	}
	if _, err := QueryInt(r, "bad", 0); err == nil {
		t.Error("QueryInt(bad) should fail")
	}
	if v, err := QueryFloat(r, "duration", 300); err != nil || v != 12.5 {
		t.Errorf("QueryFloat(duration) = %v, %v", v, err)
	}
	if v, err := QueryFloat(r, "missing", 300); err != nil || v != 300 {
		t.Errorf("QueryFloat(missing) = %v, %v", v, err)
	}
}
