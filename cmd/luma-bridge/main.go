package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"

	"github.com/mithun50/luma-cli/internal/adapters/cdp"
	"github.com/mithun50/luma-cli/internal/adapters/scripts"
	"github.com/mithun50/luma-cli/internal/adapters/storage/memory"
	"github.com/mithun50/luma-cli/internal/domain"
	cfgpkg "github.com/mithun50/luma-cli/internal/infrastructure/config"
	httpapi "github.com/mithun50/luma-cli/internal/infrastructure/httpapi"
	obs "github.com/mithun50/luma-cli/internal/infrastructure/observability"
	"github.com/mithun50/luma-cli/internal/usecase"
)

func main() {
	cfg, err := cfgpkg.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("addr", cfg.Addr).Ints("cdpPorts", cfg.CDPPorts).Str("commit", obs.Commit).Msg("starting luma-bridge")

	metrics := obs.NewMetrics()
	session := usecase.NewSession()
	lib := usecase.Scripts{
		Capture:    scripts.Capture(),
		Generation: scripts.GenerationDetect(),
		AppState:   scripts.AppState(),
		Stop:       scripts.StopGeneration(),
		Inject:     scripts.InjectMessage,
		SetMode:    scripts.SetMode,
		SetModel:   scripts.SetModel,
		Click:      scripts.Click,
		Scroll:     scripts.Scroll,
	}

	hub := httpapi.NewHub(logger.With().Str("component", "ws").Logger(), func(n int) { metrics.SetSubscribers("ws", n) })
	sio := httpapi.NewSocketIOHub(logger.With().Str("component", "socketio").Logger(), func(n int) { metrics.SetSubscribers("socketio", n) })
	sio.Start()
	events := memory.NewEventLog(cfg.EventLogSize, cfg.EventLogTTL)
	out := usecase.NewFanout(*logger, hub, sio, events)

	cdpLog := logger.With().Str("component", "cdp").Logger()
	discoverer := cdp.NewDiscoverer(cfg.CDPHost, cfg.CDPPorts, cfg.TargetMatch, cfg.DiscoveryTimeout, &cdpLog)
	dial := func(ctx context.Context, ep domain.Endpoint) (usecase.Connection, error) {
		conn, err := cdp.Dial(ctx, ep.WebSocketURL, cdp.Options{
			CallTimeout: cfg.CallTimeout,
			SettleDelay: cfg.SettleDelay,
			Logger:      &cdpLog,
			Observer:    metrics,
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	loop := usecase.NewLoop(session, discoverer, dial, out, usecase.LoopConfig{
		PollInterval:      cfg.PollInterval,
		ReconnectInterval: cfg.ReconnectInterval,
		ErrorLogWindow:    cfg.ErrorLogWindow,
		Scripts:           lib,
	}, logger.With().Str("component", "loop").Logger(), usecase.WithObserver(metrics))

	deps := &httpapi.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		Session:  session,
		Loop:     loop,
		Chat:     usecase.NewChatService(session, lib, logger.With().Str("component", "chat").Logger()),
		Events:   events,
		Hub:      hub,
		SocketIO: sio,
		Ports:    discoverer,
		HTTPS:    cfg.TLSEnabled(),
		Started:  time.Now(),
	}
	handler := httpapi.NewRouterWithDeps(deps)

	// No WriteTimeout: /api/events/stream is long-lived.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var tlsSrv *http.Server
	if cfg.TLSEnabled() {
		tlsAddr := cfg.TLSAddr
		if tlsAddr == "" {
			tlsAddr = ":3443"
		}
		tlsSrv = &http.Server{
			Addr:              tlsAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := http2.ConfigureServer(tlsSrv, &http2.Server{IdleTimeout: 60 * time.Second}); err != nil {
			logger.Fatal().Err(err).Msg("http2 setup failed")
		}
		go func() {
			logger.Info().Str("addr", tlsAddr).Msg("starting TLS server (HTTP/2 enabled)")
			if err := tlsSrv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("tls server error")
				os.Exit(1)
			}
		}()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()
	logAccessURLs(logger, cfg.Addr, cfg.TLSEnabled())

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	if err := loop.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("capture loop start failed")
	}
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	loop.Stop()
	hub.Close()
	_ = sio.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if tlsSrv != nil {
		if err := tlsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tls server shutdown error")
		}
	}
	logger.Info().Msg("luma-bridge stopped")
}

// logAccessURLs prints the LAN addresses a phone on the same network can use.
func logAccessURLs(logger *zerolog.Logger, addr string, https bool) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	scheme := "http"
	if https {
		scheme = "https"
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	var urls []string
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || ipn.IP.To4() == nil {
			continue
		}
		urls = append(urls, fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(ipn.IP.String(), port)))
	}
	if len(urls) > 0 {
		logger.Info().Str("urls", strings.Join(urls, ", ")).Msg("open on your phone")
	}
}
