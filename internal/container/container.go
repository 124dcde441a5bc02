package container

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/admission-go/internal/handlers"
	"github.com/serroba/admission-go/internal/middleware"
	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

// Options configures the server process. humacli populates it from command
// line flags and SERVICE_* environment variables; library code never reads
// the environment itself.
type Options struct {
	Port          int    `default:"8888"           help:"Port to listen on"            short:"p"`
	RedisAddr     string `default:"localhost:6379" help:"Redis server address"         short:"r"`
	DefaultLimit  int64  `default:"60"             help:"Requests admitted per window" short:"l"`
	WindowSeconds int64  `default:"60"             help:"Admission window in seconds"  short:"w"`
	LogFormat     string `default:"console"        help:"Log format: console or json"`
}

// LoggerPackage provides the process logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the shared store client. Nothing connects here; the
// limiter verifies the connection lazily on first use.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{
			Addr: options.RedisAddr,
		}), nil
	})
}

// RateLimitPackage provides the admission limiter. The injector shuts it
// down with the rest of the container.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.RedisLimiter, error) {
		options := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return ratelimit.NewRedisLimiter(client,
			ratelimit.WithDefaults(options.DefaultLimit, time.Duration(options.WindowSeconds)*time.Second),
			ratelimit.WithLogger(logger),
		)
	})
}

// HTTPPackage provides the router and the API with middleware and routes
// wired.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		limiter := do.MustInvoke[*ratelimit.RedisLimiter](i)
		client := do.MustInvoke[*redis.Client](i)

		api := humachi.New(router, huma.DefaultConfig("Admission Control", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.RateLimit(limiter, logger),
		)

		quota := handlers.NewQuotaHandler(limiter, logger)
		health := handlers.NewHealthHandler(handlers.NewRedisHealthChecker(client))
		handlers.RegisterRoutes(api, quota, health)

		return api, nil
	})
}
