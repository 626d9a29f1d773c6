package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/config"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/logger"
	"github.com/buckleypaul/dct/internal/metrics"
	"github.com/buckleypaul/dct/internal/pages"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/serial"
	"github.com/buckleypaul/dct/internal/testdef"
)

type deviceStatus struct {
	state, port string
}

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(cwd)

	port := flag.String("port", cfg.SerialPort, "Serial port to open on start")
	baud := flag.Int("baud", cfg.SerialBaudRate, "Serial baud rate")
	define := flag.String("define", "", "YAML test definition to upload after connecting")
	metricsAddr := flag.String("metrics", cfg.MetricsAddr, "Serve /metrics and /health on this address")
	flag.Parse()

	cfg.SerialPort = *port
	cfg.SerialBaudRate = *baud
	cfg.MetricsAddr = *metricsAddr

	logPath := cfg.LogFile
	if logPath != "" && !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cwd, logPath)
	}
	log, err := logger.New(cfg.LogLevel, logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var def *protocol.TestDefinition
	if *define != "" {
		d, err := testdef.Load(*define)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		def = &d
	}

	link := serial.NewLink(
		serial.WithTimeouts(cfg.ReadTimeout(), cfg.WriteTimeout()),
		serial.WithSettle(cfg.Settle()),
		serial.WithLogger(log.Named("serial")),
	)
	eng := engine.New(link, engine.Options{
		DrainLimit:     cfg.DrainLimit,
		SampleCapacity: cfg.SampleCapacity,
		Logger:         log.Named("engine"),
	})

	if cfg.MetricsAddr != "" {
		var status atomic.Pointer[deviceStatus]
		status.Store(&deviceStatus{state: engine.Disconnected.String()})
		eng.Subscribe(func(n engine.Notification) {
			if n.Kind == engine.NoteConnection || n.Kind == engine.NoteError {
				status.Store(&deviceStatus{state: eng.State().String(), port: eng.Port()})
			}
		})

		srv := metrics.NewServer(cfg.MetricsAddr, func() (string, string) {
			s := status.Load()
			return s.state, s.port
		}, log.Named("metrics"))
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	pageMap := map[app.PageID]app.Page{
		app.ConnectionPage: pages.NewConnectionPage(eng, &cfg, serial.ListPorts),
		app.LogicPage:      pages.NewLogicPage(eng),
		app.OpampPage:      pages.NewOpampPage(eng),
		app.LogPage:        pages.NewLogPage(),
		app.SettingsPage:   pages.NewSettingsPage(&cfg, cwd),
	}

	model := app.New(pageMap, eng, app.Options{
		Config:      &cfg,
		Root:        cwd,
		Definition:  def,
		AutoConnect: cfg.SerialPort != "",
		Logger:      log.Named("app"),
	})

	log.Info("starting", zap.String("port", cfg.SerialPort), zap.Int("baud", cfg.SerialBaudRate))

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("ui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	eng.Disconnect()
}
