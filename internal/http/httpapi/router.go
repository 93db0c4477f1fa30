package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JasonHongGG/TravelPlanner/internal/http/handlers"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
	"github.com/JasonHongGG/TravelPlanner/internal/middleware"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	JWTSecret       string
	DefaultLocale   string
	AllowedOrigins  []string
	RateLimitPerMin int
	Logger          infra.Logger
	Gatherer        prometheus.Gatherer
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/healthz", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Get("/config", app.Config)
	r.Get("/packages", app.Packages)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(opts.JWTSecret),
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
		)
		r.Route("/generation-jobs", func(r chi.Router) {
			r.Post("/", app.CreateGenerationJob)
			r.Get("/{jobId}", app.GetGenerationJob)
			r.Post("/{jobId}/claim", app.ClaimGenerationJob)
			r.Post("/{jobId}/ack", app.AckGenerationJob)
		})
	})

	return r
}
