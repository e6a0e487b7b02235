// Command ircserv runs the IRC server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/relaycore/ircd/internal/ircd"
)

func main() {
	configPath := flag.String("config", "ircd.toml", "path to the server's TOML config file")
	adminAddr := flag.String("admin-addr", ":8080", "listen address for the admin HTTP surface")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := ircd.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %s", err)
	}

	srv := ircd.NewServer(cfg, logger)

	reg := prometheus.NewRegistry()
	srv.EnableMetrics(reg)

	admin := ircd.NewAdminServer(*adminAddr, srv, reg, logger)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := admin.ListenAndServe(ctx); err != nil {
			logger.WithError(err).Warn("admin server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
		srv.Stop()
	}()

	if err := srv.Run(cfg.Port); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}
