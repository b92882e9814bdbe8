package cloudmetrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// RegisterInstrumentation serves the process-wide /metrics endpoint on a side port.
func RegisterInstrumentation(lc fx.Lifecycle) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":2112", Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				_ = server.ListenAndServe()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
