package metrics

import (
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"go.opencensus.io/stats/view"

	"github.com/launchdarkly/ld-sync/config"
)

var prometheusExporterType exporterType = prometheusExporterTypeImpl{} //nolint:gochecknoglobals

type prometheusExporterTypeImpl struct{}

type prometheusExporterImpl struct {
	exporter *prometheus.Exporter
	server   *http.Server
	loggers  ldlog.Loggers
}

func (p prometheusExporterTypeImpl) getName() string {
	return "Prometheus"
}

func (p prometheusExporterTypeImpl) createExporterIfEnabled(
	mc config.MetricsConfig,
	loggers ldlog.Loggers,
) (exporter, error) {
	if !mc.Prometheus.Enabled {
		return nil, nil
	}

	port := mc.Prometheus.Port.GetOrElse(config.DefaultPrometheusPort)

	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: getPrefix(mc.Prometheus.Prefix),
		OnError: func(e error) {
			loggers.Errorf("Prometheus exporter error: %s", e)
		},
	})
	if err != nil {
		return nil, err
	}

	exporterMux := http.NewServeMux()
	exporterMux.Handle("/metrics", exporter)

	return &prometheusExporterImpl{
		exporter: exporter,
		server: &http.Server{ //nolint:gosec
			Addr:    fmt.Sprintf(":%d", port),
			Handler: exporterMux,
		},
		loggers: loggers,
	}, nil
}

func (p *prometheusExporterImpl) register() error {
	go func() {
		if err := p.server.ListenAndServe(); err != http.ErrServerClosed {
			p.loggers.Errorf("Failed to start Prometheus listener: %s", err)
		}
	}()

	// Prometheus scrapes our endpoint, so there is no trace exporter to register.
	view.RegisterExporter(p.exporter)
	return nil
}

func (p *prometheusExporterImpl) close() error {
	view.UnregisterExporter(p.exporter)
	return p.server.Close()
}
