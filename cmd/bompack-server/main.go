// bompack-server exposes the nesting engine over HTTP.
//
// Routes:
//   GET  /health/live
//   GET  /health/ready
//   POST /nest     {"settings": {...}, "rectangles": [{"width": w, "height": h}]}
//   POST /compare  same body, runs every algorithm
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"k8s.io/klog/v2"

	"github.com/piwi3910/bompack/internal/project"
	"github.com/piwi3910/bompack/internal/server"
)

func main() {
	var (
		configPath    = flag.String("config", project.DefaultConfigPath(), "Configuration file (.json or .yaml)")
		addr          = flag.String("addr", "", "Listen address, overrides listen_addr from the config")
		timeout       = flag.Duration("timeout", 2*time.Minute, "Maximum duration of one nest or compare request")
		maxRectangles = flag.Int("max-rectangles", 10000, "Maximum rectangles per request, 0 disables the limit")
	)
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := project.LoadConfig(*configPath)
	if err != nil {
		klog.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Nesting.Validate(); err != nil {
		klog.Fatalf("Invalid nesting defaults in %s: %v", *configPath, err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	srv := server.New(server.Config{
		Defaults:      cfg.Nesting,
		Timeout:       *timeout,
		MaxRectangles: *maxRectangles,
	})
	app := srv.App()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		klog.Info("Shutting down")
		srv.SetReady(false)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			klog.Errorf("Shutdown: %v", err)
		}
	}()

	klog.Infof("Starting bompack server on %s (default algorithm %s)", cfg.ListenAddr, cfg.Nesting.Algorithm)
	if err := app.Listen(cfg.ListenAddr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		klog.Fatalf("Failed to start server: %v", err)
	}
}
