package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/depthscan/internal/api"
	"github.com/banshee-data/depthscan/internal/config"
	"github.com/banshee-data/depthscan/internal/db"
	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/rpc"
	"github.com/banshee-data/depthscan/internal/depthcam/viewer"
	"github.com/banshee-data/depthscan/internal/monitoring"
	"github.com/banshee-data/depthscan/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to JSON config (defaults to "+config.DefaultConfigPath+" when present)")
	listen        = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen    = flag.String("grpc-listen", "", "gRPC listen address (overrides config; \"off\" disables)")
	dbPath        = flag.String("db", "", "SQLite database path (overrides config)")
	devMode       = flag.Bool("dev", false, "Use the synthetic camera instead of hardware")
	disableCamera = flag.Bool("disable-camera", false, "Do not start acquisition at startup; start it over the API")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads path, or the default config file when path is empty and
// the file exists, or the built-in defaults otherwise.
func loadConfig(path string) (*config.CameraConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.DefaultCameraConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadCameraConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with any non-empty flags.
func applyFlags(cfg *config.CameraConfig) {
	if *listen != "" {
		cfg.ListenAddr = listen
	}
	if *grpcListen != "" {
		cfg.GRPCAddr = grpcListen
	}
	if *dbPath != "" {
		cfg.DatabasePath = dbPath
	}
}

// newDevice returns the synthetic camera in dev mode. Without hardware
// support compiled in, nil selects the camera's degraded mode.
func newDevice(dev bool) device.Device {
	if dev {
		return device.NewSynthetic(device.DefaultSyntheticConfig())
	}
	return nil
}

// configureCamera applies the configured features, resolutions and scan
// settings to a stopped camera.
func configureCamera(cam *depthcam.Camera, cfg *config.CameraConfig) error {
	if err := cam.EnableFeatures(cfg.GetFeatures()); err != nil {
		return fmt.Errorf("enable features: %w", err)
	}
	if err := cam.SetColorResolution(cfg.GetColorResolution()); err != nil {
		return err
	}
	if err := cam.SetDepthResolution(cfg.GetDepthResolution()); err != nil {
		return err
	}
	if !cfg.GetFeatures().Has(depthcam.FeatureScan3D) || !cam.HasDevice() {
		return nil
	}
	if err := cam.ConfigureScanning(cfg.GetScanMode(), cfg.GetScanSolidify(), cfg.GetScanTexture()); err != nil {
		return fmt.Errorf("configure scanning: %w", err)
	}
	if err := cam.SetScanningVolume(cfg.GetScanVolume(), cfg.GetScanVoxelResolution()); err != nil {
		return fmt.Errorf("set scanning volume: %w", err)
	}
	return nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	cam := depthcam.New(newDevice(*devMode), depthcam.Config{
		StopTimeout: cfg.GetStopTimeout(),
		Reporter:    monitoring.LogReporter{},
	})
	if err := configureCamera(cam, cfg); err != nil {
		log.Fatalf("failed to configure camera: %v", err)
	}
	info := cam.Info()
	log.Printf("camera %s model=%s firmware=%s features=%s", info.Name, cam.GetCameraModel(), cam.CameraFirmware(), cam.Features())

	database, err := db.NewDB(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// record events until the subscription is closed after the final Stop,
	// so the camera_stopped event is not lost
	_, events := cam.Subscribe()
	recorder := db.NewRecorder(database)
	wg.Add(1)
	go func() {
		defer wg.Done()
		recorder.Run(context.Background(), events)
		log.Print("recorder routine terminated")
	}()

	v := viewer.New(cam, cfg.GetViewerFPS(), nil)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := v.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("viewer stopped: %v", err)
		}
		log.Print("viewer routine terminated")
	}()

	if !*disableCamera {
		if err := cam.Start(ctx); err != nil {
			log.Printf("failed to start camera: %v", err)
		}
	}

	var grpcL *rpc.Listener
	if addr := cfg.GetGRPCAddr(); addr != "off" {
		grpcL = rpc.NewListener(addr, rpc.NewServer(cam, cfg.GetOutputDir(), cfg.GetScanFormat()))
		if err := grpcL.Start(); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(ctx, cam, v, db.NewScanStore(database), api.Config{
			OutputDir:     cfg.GetOutputDir(),
			DefaultFormat: cfg.GetScanFormat(),
		}).ServeMux()
		cam.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.GetListenAddr(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP server listening on %s", cfg.GetListenAddr())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	<-ctx.Done()
	if grpcL != nil {
		grpcL.Stop()
	}
	if err := cam.Stop(); err != nil {
		log.Printf("camera stop: %v", err)
	}
	cam.CloseSubscriptions()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
