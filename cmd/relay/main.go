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

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/relay"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/version"
)

var (
	server      = flag.String("server", "http://localhost:8080", "Base URL of the motion.report server")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the IMU board")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	devMode     = flag.Bool("dev", false, "Replay a short gyro fixture instead of opening the port")
	configPath  = flag.String("config", "", "Path to a tuning JSON file (defaults built in)")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

var devLines = []string{
	"0.01,0", "-0.02,20000", "0.00,40000", "0.02,60000", "-0.01,80000",
	"0.01,100000", "0.00,120000", "-0.02,140000", "0.01,160000", "0.00,180000",
	"-1.50,200000", "0.00,220000", "-9.80,240000", "0.01,260000",
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("motion-relay"))
		os.Exit(0)
	}
	if *server == "" {
		log.Fatal("Server URL is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var imu serialmux.SerialMuxInterface
	if *devMode {
		imu = serialmux.NewMockSerialMux(devLines, tuning.GetSampleInterval())
	} else {
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open IMU board: %v", err)
		}
		m.SetSampleInterval(tuning.GetSampleInterval())
		imu = m
	}
	defer imu.Close()

	if err := imu.Initialize(); err != nil {
		log.Fatalf("failed to initialize IMU board: %v", err)
	}

	r := relay.New(httputil.NewStandardClient(&http.Client{}), *server, tuning.GetRelayTimeout())
	log.Printf("forwarding readings to %s", *server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := imu.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := imu.Subscribe()
		defer imu.Unsubscribe(id)
		if err := r.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("relay stopped: %v", err)
		}
		log.Print("relay routine terminated")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
