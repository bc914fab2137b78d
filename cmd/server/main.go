package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/alanbato/ursaproxy/internal/api/handlers/admin"
	"github.com/alanbato/ursaproxy/internal/api/routes"
	"github.com/alanbato/ursaproxy/internal/config"
	"github.com/alanbato/ursaproxy/internal/core/blog"
	"github.com/alanbato/ursaproxy/internal/core/cache"
	"github.com/alanbato/ursaproxy/internal/gemini"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.String("config", config.DefaultPath, "path to the TOML settings file")
	logLevel := pflag.String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	adminAddr := pflag.String("admin-addr", "", "admin HTTP listen address; overrides ADMIN_ADDR")
	pflag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load settings: ", err)
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}
	if *adminAddr != "" {
		settings.AdminAddr = *adminAddr
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.SlogLevel(),
	})))

	// Upstream and content pipeline
	fetcher, err := blog.NewHTTPFetcher(settings.BearblogURL,
		blog.WithFetchTimeout(settings.FetchTimeoutDuration()),
	)
	if err != nil {
		log.Fatal("Failed to create upstream fetcher: ", err)
	}

	store := cache.New[blog.Cached](settings.CacheMaxSize)
	blogService, err := blog.NewService(fetcher, store, blog.Config{
		FeedTTL:    settings.FeedTTL(),
		ContentTTL: settings.PostTTL(),
	})
	if err != nil {
		log.Fatal("Failed to create blog service: ", err)
	}

	templates, err := gemini.NewTemplates()
	if err != nil {
		log.Fatal("Failed to parse templates: ", err)
	}

	pages := make([]gemini.Page, 0, len(settings.Pages))
	for _, p := range settings.SortedPages() {
		pages = append(pages, gemini.Page{Slug: p.Slug, Title: p.Title})
	}
	handler, err := gemini.NewHandler(blogService, templates, gemini.Site{
		BlogName:    settings.BlogName,
		BearblogURL: settings.BearblogURL,
		GeminiHost:  settings.GeminiHost,
		Pages:       pages,
	})
	if err != nil {
		log.Fatal("Failed to create capsule handler: ", err)
	}

	// TLS
	var certs gemini.CertificateFunc
	if settings.CertFile != "" {
		certs, err = gemini.StaticCertificate(settings.CertFile, settings.KeyFile)
	} else {
		certs, err = gemini.SelfSignedCertificates(settings.CertDir, settings.Host, settings.GeminiHost)
	}
	if err != nil {
		log.Fatal("Failed to set up TLS: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capsule := gemini.NewServer(settings.Addr(), handler, certs)
	errCh := make(chan error, 2)
	go func() {
		slog.Info("[GEMINI] capsule starting",
			"addr", settings.Addr(),
			"upstream", settings.BearblogURL,
			"blog", settings.BlogName,
		)
		errCh <- capsule.ListenAndServe(ctx)
	}()

	var adminServer *http.Server
	if settings.AdminAddr != "" {
		adminServer = &http.Server{
			Addr:              settings.AdminAddr,
			Handler:           routes.AdminRouter(admin.NewHandler(blogService, fetcher)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("[ADMIN] admin server starting", "addr", settings.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("[GEMINI] shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("[GEMINI] server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := capsule.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[GEMINI] shutdown incomplete", "error", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("[ADMIN] shutdown incomplete", "error", err)
		}
	}
}
