package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Harshitk-cp/credo/internal/api/handlers"
	mw "github.com/Harshitk-cp/credo/internal/api/middleware"
	"github.com/Harshitk-cp/credo/internal/buildconfig"
	"github.com/Harshitk-cp/credo/internal/config"
	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/embedding"
	"github.com/Harshitk-cp/credo/internal/memindex"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/Harshitk-cp/credo/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router          *chi.Mux
	Memory          *service.MemoryService
	EmbeddingWorker *service.EmbeddingWorker
	IndexFlusher    *service.IndexFlusher
	Registry        *prometheus.Registry
	startTime       time.Time
}

func NewApp(backend Backend, logger *zap.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// External clients via provider factory
	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, embeddingModel, err := embedding.NewClient(embedding.Options{
		Provider:   embeddingProvider,
		APIKey:     config.EmbeddingAPIKey(),
		BaseURL:    config.OpenAIBaseURL(),
		Dimensions: config.EmbeddingDimensions(),
	})
	if err != nil {
		logger.Warn("Embedding client initialization failed; only client-supplied vectors will be accepted",
			zap.String("provider", embeddingProvider), zap.Error(err))
		embeddingClient = nil
	} else if embeddingClient != nil {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider), zap.String("model", embeddingModel))
	}

	minSeverity := domain.EvidenceStrength(config.ConflictMinSeverity())
	if !domain.ValidEvidenceStrength(string(minSeverity)) {
		logger.Warn("invalid CONFLICT_MIN_SEVERITY; using moderate", zap.String("value", string(minSeverity)))
		minSeverity = domain.StrengthModerate
	}

	// Services
	index := memindex.NewManager(config.IndexDir(), logger)
	memorySvc := service.NewMemoryService(backend.Personas, backend.Interactions, index, embeddingClient, service.MemoryConfig{
		EmbeddingModel:   embeddingModel,
		EmbeddingTimeout: config.EmbeddingTimeout(),
		EmbedOnIngest:    config.EmbedOnIngest(),
	}, m, logger)
	personaSvc := service.NewPersonaService(backend.Personas, memorySvc, logger)
	beliefSvc := service.NewBeliefService(backend.Personas, backend.Beliefs, backend.Stances, backend.Evidence, logger)
	engine := service.NewStanceEngine(backend.Beliefs, backend.Stances, m, logger)
	evidenceSvc := service.NewEvidenceService(backend.Beliefs, backend.Evidence, m, logger)
	consistencySvc := service.NewConsistencyService(beliefSvc, backend.Stances, engine, evidenceSvc, minSeverity, m, logger)

	embedWorker := service.NewEmbeddingWorker(memorySvc, logger)
	embedWorker.SetInterval(config.EmbeddingWorkerInterval())
	embedWorker.SetBatchSize(config.EmbeddingBatchSize())
	flusher := service.NewIndexFlusher(memorySvc, logger)
	flusher.SetInterval(config.IndexFlushInterval())

	// Handlers
	personaHandler := handlers.NewPersonaHandler(personaSvc, logger)
	beliefHandler := handlers.NewBeliefHandler(beliefSvc, engine, evidenceSvc, logger)
	memoryHandler := handlers.NewMemoryHandler(memorySvc, logger)
	consistencyHandler := handlers.NewConsistencyHandler(consistencySvc, logger)

	r := chi.NewRouter()

	app := &App{
		Router:          r,
		Memory:          memorySvc,
		EmbeddingWorker: embedWorker,
		IndexFlusher:    flusher,
		Registry:        reg,
		startTime:       time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(mw.Tracing())                                                 // Span per request
	r.Use(mw.Metrics(m))                                                // Prometheus request metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health and metrics (no auth)
	r.Get("/health", app.healthHandler(backend))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/personas", func(r chi.Router) {
			r.Post("/", personaHandler.Create)
			r.Get("/", personaHandler.List)

			r.Route("/{personaID}", func(r chi.Router) {
				r.Get("/", personaHandler.Get)
				r.Delete("/", personaHandler.Delete)
				r.Put("/config", personaHandler.UpdateConfig)

				// Belief graph
				r.Get("/graph", beliefHandler.Graph)
				r.Post("/beliefs", beliefHandler.Create)
				r.Route("/beliefs/{beliefID}", func(r chi.Router) {
					r.Get("/", beliefHandler.Get)
					r.Patch("/", beliefHandler.Patch)
					r.Delete("/", beliefHandler.Delete)
					r.Get("/audit", beliefHandler.Audit)
					r.Post("/stance", beliefHandler.UpdateStance)
					r.Post("/stance/override", beliefHandler.OverrideStance)
					r.Get("/evidence", beliefHandler.ListEvidence)
					r.Post("/evidence", beliefHandler.AppendEvidence)
				})
				r.Post("/edges", beliefHandler.CreateEdge)
				r.Patch("/edges/{edgeID}", beliefHandler.PatchEdge)
				r.Delete("/edges/{edgeID}", beliefHandler.DeleteEdge)

				// Episodic memory
				r.Post("/interactions", memoryHandler.LogInteraction)
				r.Put("/interactions/{interactionID}/embedding", memoryHandler.AddEmbedding)
				r.Post("/memory/search", memoryHandler.Search)
				r.Post("/memory/rebuild", memoryHandler.Rebuild)

				// Consistency checker integration
				r.Get("/consistency/snapshot", consistencyHandler.Snapshot)
				r.Post("/consistency/verdicts", consistencyHandler.Verdict)
			})
		})
	})

	return app
}

func (app *App) healthHandler(backend Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":         "ok",
			"store":          backend.Driver,
			"version":        buildconfig.Version(),
			"commit":         buildconfig.Commit(),
			"uptime_seconds": time.Since(app.startTime).Seconds(),
		}
		status := http.StatusOK
		if err := backend.Ping(r.Context()); err != nil {
			body["status"] = "error"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
