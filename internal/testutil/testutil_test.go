package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{name: "matching status codes", expected: 200, actual: 200},
		{name: "different status codes", expected: 200, actual: 404, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")

			if tt.shouldFail != mockT.failed {
				t.Errorf("failed = %v, want %v (%s)", mockT.failed, tt.shouldFail, mockT.errorMsg)
			}
			if !mockT.helper {
				t.Error("helper should mark itself with Helper()")
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name           string
		jsonBody       string
		expectedStatus string
		shouldFail     bool
		fatal          bool
	}{
		{name: "matching status", jsonBody: `{"status":"ok","result":{"a":1}}`, expectedStatus: "ok"},
		{name: "different status", jsonBody: `{"status":"error","message":"boom"}`, expectedStatus: "ok", shouldFail: true},
		{name: "invalid JSON", jsonBody: `{"status":}`, expectedStatus: "ok", shouldFail: true, fatal: true},
		{name: "missing status field", jsonBody: `{"result":"x"}`, expectedStatus: "ok", shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.jsonBody)

			env := DecodeEnvelope(mockT, rr, tt.expectedStatus)

			if tt.shouldFail != mockT.failed {
				t.Errorf("failed = %v, want %v (%s)", mockT.failed, tt.shouldFail, mockT.errorMsg)
			}
			if tt.fatal != mockT.fatal {
				t.Errorf("fatal = %v, want %v", mockT.fatal, tt.fatal)
			}
			if !tt.shouldFail && len(env.Result) == 0 {
				t.Error("expected the raw result to be kept")
			}
		})
	}
}

func TestDecodeResult(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"sessionId":"abc","phase":3}}`)

	var got struct {
		SessionID string `json:"sessionId"`
		Phase     int    `json:"phase"`
	}
	DecodeResult(t, rr, "ok", &got)
	if got.SessionID != "abc" || got.Phase != 3 {
		t.Errorf("unexpected result %+v", got)
	}

	mockT := &mockTestingT{}
	empty := httptest.NewRecorder()
	empty.Body.WriteString(`{"status":"ok"}`)
	DecodeResult(mockT, empty, "ok", &got)
	if !mockT.fatal {
		t.Error("a missing result should be fatal")
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{name: "GET request with no body", method: http.MethodGet, url: "/sessions/abc"},
		{name: "POST request with JSON body", method: http.MethodPost, url: "/sessions/abc/chat", body: map[string]string{"message": "hola"}},
		{name: "DELETE request", method: http.MethodDelete, url: "/sessions/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, tt.url, tt.body)
			if req == nil {
				t.Fatal("Expected request to be created, got nil")
			}
			if req.Method != tt.method {
				t.Errorf("Expected method %s, got %s", tt.method, req.Method)
			}
			if req.URL.Path != tt.url {
				t.Errorf("Expected URL %s, got %s", tt.url, req.URL.Path)
			}

			data, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if tt.body == nil {
				if len(data) != 0 {
					t.Errorf("expected empty body, got %q", data)
				}
				return
			}
			if req.Header.Get("Content-Type") != "application/json" {
				t.Error("JSON bodies should set Content-Type")
			}
			var decoded map[string]string
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
		})
	}
}

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr := Serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	AssertHTTPStatus(t, http.StatusTeapot, rr.Code, "serve")
}

func TestMustMarshalJSON(t *testing.T) {
	result := MustMarshalJSON(t, map[string]interface{}{"key1": "value1", "key2": 123})
	if len(result) == 0 {
		t.Error("Expected non-empty JSON data")
	}

	mockT := &mockTestingT{}
	MustMarshalJSON(mockT, make(chan int))
	if !mockT.fatal {
		t.Error("marshalling a channel should be fatal")
	}
}

func TestMustUnmarshalJSON(t *testing.T) {
	var target map[string]interface{}
	MustUnmarshalJSON(t, []byte(`{"key":"value","number":123}`), &target)

	if target["key"] != "value" {
		t.Errorf("Expected key to be 'value', got %v", target["key"])
	}
	if target["number"].(float64) != 123 {
		t.Errorf("Expected number to be 123, got %v", target["number"])
	}
}

// mockTestingT records failures instead of stopping the goroutine.
type mockTestingT struct {
	failed   bool
	fatal    bool
	errorMsg string
	helper   bool
}

func (m *mockTestingT) Helper() {
	m.helper = true
}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.fatal = true
	m.errorMsg = fmt.Sprintf(format, args...)
}
