// metrics.go — Prometheus метрики сервиса загрузок.
// HTTP метрики: upl_http_requests_total, upl_http_request_duration_seconds,
// upl_http_response_size_bytes, upl_http_requests_in_flight. Бизнес-метрики экспортируются и обновляются
// из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upl_http_requests_total",
			Help: "Общее количество HTTP-запросов к сервису загрузок",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upl_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpResponseSize — гистограмма размера тела ответа.
	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upl_http_response_size_bytes",
			Help:    "Размер тела HTTP-ответа в байтах",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	// httpRequestsInFlight — запросы в обработке.
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upl_http_requests_in_flight",
			Help: "Количество HTTP-запросов в обработке",
		},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// UploadsTotal — загрузки по результату
	// (success, unsupported_media_type, payload_too_large, storage_unavailable, invalid_path).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upl_uploads_total",
			Help: "Общее количество загрузок по результату",
		},
		[]string{"result"},
	)

	// UploadedBytesTotal — суммарный объём принятых файлов.
	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upl_uploaded_bytes_total",
			Help: "Суммарный объём успешно сохранённых файлов в байтах",
		},
	)

	// UploadDuration — длительность приёма файла от проверки типа до rename.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upl_upload_duration_seconds",
			Help:    "Длительность приёма файла в секундах",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ContentTypeMismatchTotal — объявленный тип не совпал с сигнатурой содержимого.
	ContentTypeMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upl_content_type_mismatch_total",
			Help: "Количество сохранённых файлов, чья сигнатура не является изображением",
		},
	)

	// MirrorTotal — копирование во внешнее хранилище по результату (success, error).
	MirrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upl_mirror_total",
			Help: "Количество копирований во внешнее объектное хранилище",
		},
		[]string{"result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Лейбл path — шаблон маршрута chi, а не фактический URL,
// чтобы имена файлов не раздували кардинальность.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(wrapped.written))
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода и размера ответа.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routePattern возвращает шаблон сработавшего маршрута chi.
// /public/uploads/profile/a.png → /public/*
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
