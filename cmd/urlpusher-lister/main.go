package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/agent"
	"github.com/gaspardpetit/urlpusher/internal/config"
	"github.com/gaspardpetit/urlpusher/internal/lister"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
	"github.com/gaspardpetit/urlpusher/internal/status"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.ListerConfig
	cfg.BindFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "urlpusher-lister version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("urlpusher-lister version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
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

	board := status.NewBoard()
	board.SetBuildInfo(version, buildSHA, buildDate)
	metrics.SetBuildInfo("lister", version, buildSHA, buildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Warn().Msg("termination requested")
		cancel()
	}()

	cl := lister.New(lister.Options{
		URL:            url,
		ClientID:       cfg.ClientID,
		ClientName:     cfg.ClientName,
		ReconnectDelay: cfg.ReconnectDelay,
		DialTimeout:    cfg.DialTimeout,
		Board:          board,
	})

	if cfg.MetricsAddr != "" {
		addr, err := agent.StartMetricsServer(ctx, agent.MetricsAddr(cfg.MetricsAddr), agent.NewRegistry())
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("metrics server")
		}
		logx.Log.Info().Str("addr", addr).Msg("metrics listening")
	}
	addr, err := lister.StartAPI(ctx, cfg.APIAddr, cl, lister.APIOptions{Board: board, CORSOrigins: cfg.CORSOrigins})
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("api server")
	}
	logx.Log.Info().Str("addr", addr).Msg("api listening")

	if err := cl.Run(ctx); err != nil {
		logx.Log.Fatal().Err(err).Msg("lister exited")
	}
}
