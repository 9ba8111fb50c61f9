package app

import (
	"context"
	"fmt"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/allisson/caresync/internal/http"
	replicationHTTP "github.com/allisson/caresync/internal/replication/http"
)

// HTTPServer returns the HTTP server hosting the sync API.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		store, err := c.DocumentStore()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get document store for http server: %w", err)
			return
		}

		db, err := c.DB()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get database for http server: %w", err)
			return
		}

		syncHandler := replicationHTTP.NewSyncHandler(store, c.Merger(), c.Logger())

		var meterProvider otelmetric.MeterProvider
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get metrics provider for http server: %w", err)
			return
		}
		if provider != nil {
			meterProvider = provider.MeterProvider()
		}

		c.httpServer = http.NewServer(
			http.ServerConfig{
				Host:                    c.config.ServerHost,
				Port:                    c.config.ServerPort,
				GinMode:                 c.config.GetGinMode(),
				CORSEnabled:             c.config.CORSEnabled,
				CORSAllowOrigins:        c.config.CORSAllowOrigins,
				RateLimitEnabled:        c.config.RateLimitEnabled,
				RateLimitRequestsPerSec: c.config.RateLimitRequestsPerSec,
				RateLimitBurst:          c.config.RateLimitBurst,
				MetricsNamespace:        c.config.MetricsNamespace,
			},
			syncHandler,
			func(ctx context.Context) error {
				return db.PingContext(ctx)
			},
			meterProvider,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
			return
		}
		if provider == nil {
			return
		}

		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}
