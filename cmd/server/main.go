// Package main is the entry point for the notecompare API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/notecompare/internal/logger"
	"github.com/james-see/notecompare/pkg/api"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dev := flag.Bool("log-dev", false, "Human-readable log output")
	tolerance := flag.Float64("tolerance", api.DefaultSettings().TimeTolerance, "Default time tolerance in seconds")
	flag.Parse()

	log, err := logger.New(*level, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	settings := api.DefaultSettings()
	settings.TimeTolerance = *tolerance

	fmt.Printf("Starting notecompare API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, api.NewServer(settings, log)); err != nil {
		log.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
