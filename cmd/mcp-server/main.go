package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "监听地址")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	fetcher := NewIMAPFetcher(map[string]OAuthClient{
		"gmail":   {ClientID: os.Getenv("GMAIL_CLIENT_ID"), ClientSecret: os.Getenv("GMAIL_CLIENT_SECRET")},
		"outlook": {ClientID: os.Getenv("OUTLOOK_CLIENT_ID"), ClientSecret: os.Getenv("OUTLOOK_CLIENT_SECRET")},
		"yahoo":   {ClientID: os.Getenv("YAHOO_CLIENT_ID"), ClientSecret: os.Getenv("YAHOO_CLIENT_SECRET")},
	}, 30*time.Second, log.Named("imap"))

	mux := http.NewServeMux()
	mux.Handle("/mcp", NewMCPServer(fetcher, os.Getenv("MCP_API_KEY"), log.Named("mcp")))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("MCP server listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("MCP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("MCP server shutdown failed", zap.Error(err))
	}
}
