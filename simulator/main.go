// Command simulator drives the dispatcher with synthetic ride lifecycles. It
// publishes record/old_record status payloads to the broker topic the MQTT
// ingest bridge subscribes to, so a local broker plus this tool exercises the
// whole pipeline without a ride platform.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	cfg := parseFlags()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	if cfg.Seed != 0 {
		simRng = rand.New(rand.NewSource(cfg.Seed))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newMQTTClient(cfg.Broker, fmt.Sprintf("ride-sim-%d", os.Getpid()))
	if err != nil {
		log.Fatalf("connect %s: %v", cfg.Broker, err)
	}
	defer cli.Disconnect(250)

	rides := GenerateRides(RideConfig{
		Count:     cfg.Rides,
		CancelPct: cfg.CancelPct,
		CenterLat: cfg.CenterLat,
		CenterLng: cfg.CenterLng,
	})
	runRides(ctx, rides, &mqttStatusPublisher{cli: cli, topic: cfg.Topic}, cfg.Interval)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.Topic, "topic", "rides/status", "status change topic")
	flag.IntVar(&cfg.Rides, "rides", 10, "number of rides to simulate")
	flag.DurationVar(&cfg.Interval, "interval", 2*time.Second, "delay between lifecycle steps")
	flag.Float64Var(&cfg.CancelPct, "cancel-pct", 0.2, "ratio of rides cancelled mid-lifecycle")
	flag.Float64Var(&cfg.CenterLat, "lat", 48.8566, "pickup area center latitude")
	flag.Float64Var(&cfg.CenterLng, "lng", 2.3522, "pickup area center longitude")
	flag.Int64Var(&cfg.Seed, "seed", 0, "random seed, 0 uses the clock")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	return cfg
}

func runRides(ctx context.Context, rides []SimulatedRide, pub StatusPublisher, interval time.Duration) {
	var wg sync.WaitGroup
	for i := range rides {
		wg.Add(1)
		go func(r *SimulatedRide) {
			defer wg.Done()
			if err := r.Run(ctx, pub, interval); err != nil {
				log.Printf("%s: %v", r.Ride.ID, err)
			}
		}(&rides[i])
	}
	wg.Wait()
}
