package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"bbscraper/config"
	"bbscraper/log"
	"bbscraper/mirror"
	"bbscraper/scraper"
	"bbscraper/server"
)

var version = "dev"

func main() {
	configPath := flag.String("c", "", "path to an optional yaml config file; the environment always applies on top")
	printVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log.InitializeDefaultLogger()

	if err := cfg.Validate(); err != nil {
		// not fatal: the boundary answers 400 until the deployment is
		// fixed, matching how callers probe a misconfigured instance
		slog.Warn("configuration incomplete", slog.String("err", err.Error()))
	}

	// the mirror capability is resolved once at start-up and read-only
	// afterwards; when absent, resource links degrade to raw hrefs
	var m mirror.Mirror
	drive, err := mirror.NewDriveMirror(context.Background(), cfg.GoogleServiceAccountJSON, cfg.DriveFolderID)
	if err != nil {
		slog.Error("failed to initialize drive mirror, continuing without it", slog.String("err", err.Error()))
	} else if drive != nil {
		m = drive
		slog.Info("drive mirror configured", slog.String("folder_id", cfg.DriveFolderID))
	} else {
		slog.Info("no drive credentials configured, resources will keep raw links")
	}

	sc := scraper.New(cfg, m)
	srv := server.New(cfg, sc.Scrape)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("listening", slog.String("addr", addr), slog.String("version", version))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		slog.Error("server stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
