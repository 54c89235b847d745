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

	motion "github.com/banshee-data/motion.report"
	"github.com/banshee-data/motion.report/internal/api"
	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/monitor"
	"github.com/banshee-data/motion.report/internal/notify"
	"github.com/banshee-data/motion.report/internal/pipeline"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode with a replayed gyro fixture")
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port of the IMU board (ignored in dev mode)")
	baud          = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	disableSerial = flag.Bool("disable-serial", false, "Run without a serial sensing loop (HTTP detect only)")
	dbPath        = flag.String("db-path", "motion.db", "Path to the sqlite event store")
	configPath    = flag.String("config", "", "Path to a tuning JSON file (defaults built in)")
	profile       = flag.String("profile", "", "Detector profile for /api/detect: server or embedded (overrides config)")
	mqttBroker    = flag.String("mqtt-broker", "", "MQTT broker address host:port for status notifications")
	plotDir       = flag.String("plot-dir", "", "Directory to save trace plots to on shutdown")
	versionFlag   = flag.Bool("version", false, "Print version information and exit")
)

// loadTuning reads the tuning file when one is given and applies the
// --profile override.
func loadTuning(path, profileOverride string) (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(path); err != nil {
			return nil, err
		}
	}
	if profileOverride != "" {
		cfg.Profile = &profileOverride
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --profile: %w", err)
		}
	}
	return cfg, nil
}

// newSensingLoop builds the serial loop from the tuning file's sensing block
// and calibration length.
func newSensingLoop(tuning *config.TuningConfig, o pipeline.Options) (*pipeline.Loop, error) {
	cfg, err := tuning.SensingDetectorConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.NewLoop(cfg, tuning.GetCalibrationSamples(), o)
}

// devFixture is a resting gyro trace with a step and a jump every few
// seconds, in the board's "<gyro_z>,<micros>" format.
func devFixture() []string {
	var lines []string
	for i := 0; i < 200; i++ {
		v := 0.02 * float64(i%5-2)
		switch i {
		case 60:
			v = -1.5
		case 140:
			v = -12
		}
		lines = append(lines, fmt.Sprintf("%.2f,%d", v, i*20000))
	}
	lines = append(lines, `{"battery":87,"firmware":"dev"}`)
	return lines
}

func openSerial(tuning *config.TuningConfig) (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSerial:
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		m := serialmux.NewMockSerialMux(devFixture(), tuning.GetSampleInterval())
		m.SetSampleInterval(tuning.GetSampleInterval())
		return m, nil
	default:
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			return nil, err
		}
		m.SetSampleInterval(tuning.GetSampleInterval())
		return m, nil
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("motion.report"))
		os.Exit(0)
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning, err := loadTuning(*configPath, *profile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	detectorCfg, err := tuning.DetectorConfig()
	if err != nil {
		log.Fatalf("invalid detector config: %v", err)
	}
	log.Printf("detect endpoint using %q profile: %+v", tuning.GetProfile(), detectorCfg)

	imu, err := openSerial(tuning)
	if err != nil {
		log.Fatalf("failed to open IMU board: %v", err)
	}
	defer imu.Close()

	if err := imu.Initialize(); err != nil {
		log.Fatalf("failed to initialize IMU board: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	sinks := notify.Multi{notify.LogSink{}, hub}
	if *mqttBroker != "" {
		mq, err := notify.DialMQTT(ctx, *mqttBroker, "motion-report", tuning.GetMQTTTopic())
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		defer mq.Close()
		sinks = append(sinks, mq)
		log.Printf("publishing status on %s topic %q", *mqttBroker, mq.Topic())
	}

	serverDetector, err := detector.NewLocked(detectorCfg)
	if err != nil {
		log.Fatalf("failed to create detector: %v", err)
	}

	serialCounter := &pipeline.Counter{}
	apiCounter := &pipeline.Counter{}
	for c, source := range map[*pipeline.Counter]string{serialCounter: db.SourceSerial, apiCounter: db.SourceAPI} {
		counts, err := database.EventCounts(source)
		if err != nil {
			log.Fatalf("failed to load %s counts: %v", source, err)
		}
		c.Seed(counts.Steps, counts.Jumps)
	}

	// one trace per detector
	traces := map[string]*monitor.Trace{
		db.SourceSerial: monitor.NewTrace(monitor.DefaultTraceCapacity),
		db.SourceAPI:    monitor.NewTrace(monitor.DefaultTraceCapacity),
	}

	loop, err := newSensingLoop(tuning, pipeline.Options{
		Sink:    sinks,
		Store:   database,
		Trace:   traces[db.SourceSerial],
		Counter: serialCounter,
	})
	if err != nil {
		log.Fatalf("failed to create sensing loop: %v", err)
	}
	log.Printf("sensing loop using %+v", loop.Config())

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := imu.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// feed serial lines through calibration and classification
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := imu.Subscribe()
		defer imu.Unsubscribe(id)
		if err := loop.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sensing loop stopped: %v", err)
		}
		log.Print("sensing loop terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(serverDetector, database)
		srv.SetSink(sinks)
		srv.SetTrace(traces[db.SourceAPI])
		srv.SetCounter(apiCounter)
		srv.SetSerialMux(imu)
		srv.SetSensingLoop(loop)

		mux := srv.ServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		imu.AttachAdminRoutes(mux)
		database.AttachAdminRoutes(mux)
		for source, trace := range traces {
			trace.AttachAdminRoutes(mux, source)
		}

		// serve ./static from disk in dev so the page can be edited without
		// a rebuild
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(motion.StaticFS()))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
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

	wg.Wait()

	if *plotDir != "" {
		plotter := monitor.NewPlotter(fsutil.OSFileSystem{}, *plotDir)
		stamp := time.Now().UTC().Format("20060102T150405Z")
		for source, trace := range traces {
			if trace.Len() == 0 {
				continue
			}
			path, err := plotter.Save(trace, "trace-"+source+"-"+stamp)
			if err != nil {
				log.Printf("failed to save %s trace plot: %v", source, err)
				continue
			}
			log.Printf("saved %s trace plot to %s", source, path)
		}
	}

	steps, jumps := serialCounter.Snapshot()
	log.Printf("Graceful shutdown complete (serial steps: %d jumps: %d)", steps, jumps)
}
