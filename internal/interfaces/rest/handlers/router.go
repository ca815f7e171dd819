package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest/docs"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest/middleware"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

type RouterConfig struct {
	Doc            *openapi3.T
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, cfg RouterConfig) (http.Handler, error) {
	validate, err := middleware.ValidateRequests(cfg.Doc, h.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestLogger(h.logger, cfg.Metrics))

	r.Get("/healthz", h.Health)
	r.Get("/openapi.json", serveOpenAPI(cfg.Doc))
	r.Get("/docs/swagger.json", serveSwagger)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.Identity)
		api.Use(validate)
		api.Post("/payments", h.CreatePayment)
	})

	return r, nil
}

func serveOpenAPI(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

func serveSwagger(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
