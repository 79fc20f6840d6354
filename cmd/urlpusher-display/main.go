package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/agent"
	"github.com/gaspardpetit/urlpusher/internal/config"
	"github.com/gaspardpetit/urlpusher/internal/display"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
	"github.com/gaspardpetit/urlpusher/internal/status"
	"github.com/gaspardpetit/urlpusher/internal/surface"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.DisplayConfig
	cfg.BindFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "urlpusher-display version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("urlpusher-display version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	logx.Configure(cfg.LogLevel)

	url, err := cfg.PushURL()
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("push endpoint")
	}
	loader, err := surface.NewLoader(cfg.Loader, nil)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("loader")
	}
	transition, err := surface.ParseTransition(cfg.Transition, cfg.CrossfadeDuration)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("transition")
	}

	board := status.NewBoard()
	board.SetBuildInfo(version, buildSHA, buildDate)
	metrics.SetBuildInfo("display", version, buildSHA, buildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Warn().Msg("termination requested")
		cancel()
	}()

	newClient := func() *display.Client {
		return display.New(display.Options{
			URL:                url,
			ClientID:           cfg.ClientID,
			ClientName:         cfg.ClientName,
			ReconnectDelay:     cfg.ReconnectDelay,
			DialTimeout:        cfg.DialTimeout,
			Slots:              cfg.Slots,
			Loader:             surface.WithTimeout(loader, cfg.LoadTimeout),
			Transition:         transition,
			OverlayDelay:       cfg.OverlayDelay,
			AnnounceConnection: cfg.AnnounceConn,
			Board:              board,
		})
	}
	var current atomic.Pointer[display.Client]
	current.Store(newClient())

	if cfg.MetricsAddr != "" {
		addr, err := agent.StartMetricsServer(ctx, agent.MetricsAddr(cfg.MetricsAddr), agent.NewRegistry())
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("metrics server")
		}
		logx.Log.Info().Str("addr", addr).Msg("metrics listening")
	}
	if cfg.StatusAddr != "" {
		addr, err := status.Start(ctx, cfg.StatusAddr, status.ServerOptions{
			Board:       board,
			TokenPath:   status.TokenPath(cfg.ConfigFile, "display"),
			CORSOrigins: cfg.CORSOrigins,
			Controls: status.Controls{
				Reconnect: func() error { return current.Load().Controls().Reconnect() },
				Reload:    func() error { return current.Load().Controls().Reload() },
				Announce: func(text string, d time.Duration) error {
					return current.Load().Controls().Announce(text, d)
				},
			},
		})
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("status server")
		}
		logx.Log.Info().Str("addr", addr).Msg("status listening")
	}

	for {
		err := current.Load().Run(ctx)
		if errors.Is(err, display.ErrReload) && ctx.Err() == nil {
			logx.Log.Info().Msg("reloading")
			current.Store(newClient())
			continue
		}
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("display exited")
		}
		return
	}
}
