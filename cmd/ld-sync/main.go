package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/kardianos/minwinsvc"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/config"
	"github.com/launchdarkly/ld-sync/internal/application"
	"github.com/launchdarkly/ld-sync/internal/logging"
	"github.com/launchdarkly/ld-sync/internal/version"
	"github.com/launchdarkly/ld-sync/replica"
)

const shutdownTimeout = 5 * time.Second

func main() {
	loggers := logging.MakeDefaultLoggers()

	opts, err := application.ReadOptions(os.Args, os.Stderr)
	if err != nil {
		loggers.Errorf("Error: %s", err)
		os.Exit(1)
	}

	loggers.Infof("Starting ld-sync version %s with %s",
		application.DescribeVersion(version.Version), opts.DescribeConfigSource())

	c := config.DefaultConfig
	if opts.ConfigFile != "" {
		if err := config.LoadConfigFile(&c, opts.ConfigFile, loggers); err != nil {
			loggers.Errorf("Error loading config file: %s", err)
			os.Exit(1)
		}
	}
	if opts.UseEnvironment {
		if err := config.LoadConfigFromEnvironment(&c, loggers); err != nil {
			loggers.Errorf("Configuration error: %s", err)
			os.Exit(1)
		}
	}
	if opts.ConfigFile == "" && !opts.UseEnvironment {
		if err := config.ValidateConfig(&c, loggers); err != nil {
			loggers.Errorf("Configuration error: %s", err)
			os.Exit(1)
		}
	}

	os.Exit(run(c, logging.MakeLoggers(c.Main.LogLevel.GetOrElse(ldlog.Info))))
}

func run(c config.Config, loggers ldlog.Loggers) int {
	r, err := replica.NewReplica(c, replica.Options{}, loggers)
	if err != nil {
		loggers.Errorf("Unable to create ld-sync: %s", err)
		return 1
	}
	defer r.Close() //nolint:errcheck

	port := c.Main.Port.GetOrElse(config.DefaultPort)
	srv, errCh := application.StartHTTPServer(port, r, loggers)

	if r.WaitForReady(c.Main.StartWaitTime.GetOrElse(config.DefaultStartWaitTime)) {
		loggers.Info("Flag data is initialized")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		loggers.Errorf("Error starting HTTP listener on port %d: %s", port, err)
		return 1
	case sig := <-signals:
		loggers.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		loggers.Warnf("HTTP server did not shut down cleanly: %s", err)
	}
	return 0
}
