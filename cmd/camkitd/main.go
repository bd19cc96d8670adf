// camkitd drives one capture device: it opens the device, configures a
// session against the preview and reader surfaces, starts the repeating
// preview, and exposes the manual-control surface over HTTP. Runs against
// the mock driver by default; pass -backend webcam for real hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-camkit/internal/config"
	"github.com/teslashibe/go-camkit/internal/log"
	"github.com/teslashibe/go-camkit/pkg/capture"
	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
	"github.com/teslashibe/go-camkit/pkg/device/webcam"
	"github.com/teslashibe/go-camkit/pkg/persist"
	"github.com/teslashibe/go-camkit/pkg/session"
	"github.com/teslashibe/go-camkit/pkg/web"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file")
	backend := flag.String("backend", "", "Driver backend: mock or webcam (overrides config)")
	deviceID := flag.String("device", "", "Device ID to open (overrides config)")
	addr := flag.String("addr", "", "Control server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camkitd: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	log.Init(cfg.LogLevel)
	logger := log.With("component", "camkitd")
	logger.Info("starting", "backend", cfg.Backend, "device", cfg.DeviceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// Backend selection: both drivers expose the same reader and session
	// surfaces; only construction differs.
	var (
		driver device.Driver
		reader device.Reader
	)
	switch cfg.Backend {
	case "webcam":
		d := webcam.NewDriver(log.With("component", "webcam"))
		defer d.Close()
		driver, reader = d, d.Reader()
	default:
		d := device.NewMockDriver()
		defer d.Close()
		driver, reader = d, d.Reader()
	}

	fatal := make(chan error, 1)
	ctrl := session.NewController(driver,
		session.WithLogger(log.With("component", "session")),
		session.WithOnFatal(func(err error) {
			select {
			case fatal <- err:
			default:
			}
		}))
	defer ctrl.Close()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := ctrl.Open(openCtx, device.ID(cfg.DeviceID)); err != nil {
		return err
	}

	targets := []device.Target{
		{Name: "viewfinder", Kind: device.TargetPreview},
		{Name: "stills", Kind: device.TargetReader},
	}
	if err := ctrl.Configure(openCtx, targets); err != nil {
		return err
	}
	if err := ctrl.StartPreview(); err != nil {
		return err
	}

	mapperOpts := []controls.Option{
		controls.WithLogger(log.With("component", "controls")),
		controls.WithRangeFilter(cfg.FilterTables),
	}
	if cfg.Debounce() > 0 {
		mapperOpts = append(mapperOpts, controls.WithDebounce(cfg.Debounce()))
	}
	if cfg.FocusRangeMultiplier > 0 {
		mapperOpts = append(mapperOpts, controls.WithFocusRangeMultiplier(cfg.FocusRangeMultiplier))
	}
	mapper := controls.NewMapper(ctrl.Characteristics(), ctrl.ApplySettings, mapperOpts...)
	defer mapper.Close()

	syncOpts := []capture.SyncOption{
		capture.WithLogger(log.With("component", "capture")),
		capture.WithDisplayRotation(cfg.DisplayRotation),
	}
	if cfg.CaptureTimeout() > 0 {
		syncOpts = append(syncOpts, capture.WithTimeout(cfg.CaptureTimeout()))
	}
	syncer := capture.NewSynchronizer(ctrl, reader, syncOpts...)
	defer syncer.Close()

	writer, err := persist.NewWriter(cfg.OutputDir)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg.ListenAddr, mapper, ctrl.Characteristics(), log.With("component", "web"))
	server.OnCapture = func(kind string) (string, error) {
		res, err := syncer.Capture(ctx, mapper.Snapshot())
		if err != nil {
			return "", err
		}
		defer res.Release()
		k := persist.KindConverted
		if kind == "raw" {
			k = persist.KindRawContainer
		}
		return writer.Save(res, k)
	}

	wirePreview(driver, server)

	logger.Info("control server listening", "addr", cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	defer server.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return err
	case err := <-errCh:
		return err
	}
}

// wirePreview points the driver's preview output at the websocket hub.
func wirePreview(driver device.Driver, server *web.Server) {
	switch d := driver.(type) {
	case *device.MockDriver:
		d.SetPreviewSink(server.PushPreviewFrame)
	case *webcam.Driver:
		d.SetPreviewSink(server.PushPreviewFrame)
	}
}
