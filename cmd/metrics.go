package cmd

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloudidian/mailsort/internal/instrumentation"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/server"
)

// startMetricsServer runs the metrics listener in the background.
// Returns nil when instrumentation is disabled.
func startMetricsServer(provider *instrumentation.Provider, addr string, health *server.HealthChecker, logger *slog.Logger) *server.MetricsServer {
	if !provider.Enabled() {
		return nil
	}
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Health:                  health,
	})
	if err != nil {
		logger.Error("metrics server disabled", logging.Err(err))
		return nil
	}
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	return metricsServer
}
