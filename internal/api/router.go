package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"go-fea-pipeline/internal/api/docs"
	"go-fea-pipeline/internal/api/handler"
	"go-fea-pipeline/internal/pipeline"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/healthz", h.Health)
	r.POST("/api/v1/extractions", h.CreateExtraction)
	r.GET("/api/v1/extractions", h.ListExtractions)
	// More specific routes first
	r.GET("/api/v1/extractions/*/errors", h.GetExtractionErrors)
	r.GET("/api/v1/extractions/*/outputs", h.GetExtractionOutputs)
	r.GET("/api/v1/extractions/*/series", h.GetExtractionSeries)
	r.POST("/api/v1/extractions/*/retry", h.RetryExtraction)
	// Generic run routes last
	r.GET("/api/v1/extractions/*", h.GetExtraction)
	r.DELETE("/api/v1/extractions/*", h.DeleteExtraction)
}

// NewMetricsRegistry returns a registry holding the pipeline collectors and
// the Go runtime collectors
func NewMetricsRegistry() (*prometheus.Registry, *pipeline.Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return nil, nil, err
	}
	return reg, metrics, nil
}

// NewRouter wires the API, the Swagger UI and the metrics endpoint
func NewRouter(h *handler.Handler, reg *prometheus.Registry, log *logger.Logger) *router.Router {
	if log == nil {
		log = logger.Nop()
	}
	r := router.New(log)
	RegisterRoutes(r, h)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	log.Debug("api documentation registered", "title", docs.SwaggerInfo.Title, "base_path", docs.SwaggerInfo.BasePath)
	return r
}
