package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu.tracker/internal/api"
	"github.com/banshee-data/imu.tracker/internal/db"
	"github.com/banshee-data/imu.tracker/internal/monitoring"
	"github.com/banshee-data/imu.tracker/internal/serialmux"
	"github.com/banshee-data/imu.tracker/internal/tracker"
	"github.com/banshee-data/imu.tracker/internal/version"
)

func main() {
	flags := newFlags(flag.CommandLine)
	flag.Parse()
	if *flags.version {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*flags.verbose)
	log.Print(version.String())

	cfg, err := flags.loadConfig(flag.CommandLine)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	source, err := openSource(cfg, *flags.replaySession, *flags.devMode, database)
	if err != nil {
		if ports, perr := serialmux.ListPorts(); perr == nil && len(ports) > 0 {
			log.Printf("available serial ports: %v", ports)
		}
		log.Fatalf("Failed to open sample source: %v", err)
	}
	serialMux := source.mux
	if serialMux == nil {
		serialMux = serialmux.NewDisabledSerialMux()
	}
	defer serialMux.Close()

	if err := serialMux.Initialize(); err != nil {
		log.Fatalf("failed to initialize device: %v", err)
	}

	t, err := tracker.New(tracker.Config{
		Alpha:              cfg.GetAlpha(),
		CalibrationSamples: cfg.GetCalibrationSamples(),
		CalibrationTimeout: cfg.GetCalibrationTimeout(),
		SimulatedDT:        cfg.GetSimulatedDT(),
	}, source.src, nil)
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	if bias, ok := cfg.GetGyroBias(); ok {
		t.SetGyroBias(r3.Vec{X: bias[0], Y: bias[1], Z: bias[2]})
		log.Printf("using configured gyro bias %v", t.GyroBias())
	} else if source.live() {
		c, ok, err := database.LatestCalibration()
		switch {
		case err != nil:
			log.Printf("failed to load stored calibration: %v", err)
		case ok:
			t.SetGyroBias(c.GyrBias)
			log.Printf("using stored calibration from %s: %s", c.Time.Format(time.RFC3339), c)
		}
	}

	session, err := database.StartSession(source.name, cfg.GetAlpha())
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	log.Printf("session %s recording %s", session.Session().SessionID, source.name)

	hub := tracker.NewHub(cfg.GetHistorySize())
	runner := tracker.NewRunner(t, hub, nil, tracker.RunnerConfig{
		TickInterval: cfg.GetTickInterval(),
		RecordEvery:  cfg.GetRecordEvery(),
	}, session)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serialMux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if source.live() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.reader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial reader stopped: %v", err)
			}
			log.Printf("serial reader terminated: %+v", source.reader.Stats())
		}()
	}

	if cfg.GetCalibrateOnStart() {
		log.Printf("calibrating gyro bias over %d samples, keep the device still", cfg.GetCalibrationSamples())
		c, err := t.CalibrateBias(ctx)
		if err != nil {
			log.Printf("calibration failed, continuing with bias %v: %v", t.GyroBias(), err)
		} else if err := session.RecordCalibration(c); err != nil {
			log.Printf("failed to record calibration: %v", err)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tick loop stopped: %v", err)
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only on loopback or over Tailscale)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}
		serialMux.AttachAdminRoutes(mux)

		var commands api.CommandSender
		if source.mux != nil {
			commands = source.mux
		}
		apiMux := api.NewServer(hub, runner, database, commands).ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/charts/", apiMux)
		mux.Handle("/command", apiMux)

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete: %d samples processed, %d idle ticks", runner.Processed(), runner.Idle())
}
