package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auction", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	id := rec.Header().Get(RequestIDHeader)
	if len(id) != 36 {
		t.Errorf("X-Request-ID = %q, ожидался UUID", id)
	}

	logLine := buf.String()
	if !strings.Contains(logLine, `"request_id":"`+id+`"`) {
		t.Errorf("request_id не попал в лог: %s", logLine)
	}
	if !strings.Contains(logLine, `"status":418`) || !strings.Contains(logLine, `"level":"WARN"`) {
		t.Errorf("ожидался WARN со статусом 418: %s", logLine)
	}
}

func TestRequestLogger_KeepsClientRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, ожидался client-id-1", got)
	}
}

func TestRoutePattern(t *testing.T) {
	var got string

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			got = routePattern(req)
		})
	})
	r.Get("/public/*", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/public/uploads/profile/a.png", nil))
	if got != "/public/*" {
		t.Errorf("routePattern = %q, ожидался /public/*", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); p != "unmatched" {
		t.Errorf("без chi контекста: %q", p)
	}
}

func TestMetricsMiddleware_PassesStatus(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("статус %d, ожидался 201", rec.Code)
	}
}

func TestMetricsMiddleware_ObservesResponseSize(t *testing.T) {
	body := strings.Repeat("x", 1500)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/api/v1/size-check", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/size-check", nil))
	if rec.Body.Len() != len(body) {
		t.Fatalf("тело ответа %d байт, ожидалось %d", rec.Body.Len(), len(body))
	}

	observer := httpResponseSize.WithLabelValues(http.MethodGet, "/api/v1/size-check")
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T не реализует prometheus.Metric", observer)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("count = %d, ожидалось 1", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got != float64(len(body)) {
		t.Errorf("sum = %v, ожидалось %d", got, len(body))
	}
}
