package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"stargo/pkg/alpaca"
	"stargo/pkg/drivers/avalon"
	"stargo/pkg/stargo"
	"stargo/templates"
)

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("StarGo Alpaca Server")

	tmpl, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %v", err)
	}

	db, err := bolt.Open(c.String("db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := alpaca.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := stargo.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %v", err)
	}

	telescope, err := avalon.NewDriver(0, db, tmpl, metrics, log.WithField("device", "telescope"))
	if err != nil {
		return fmt.Errorf("failed to create telescope driver: %v", err)
	}
	defer telescope.Close()

	if path := c.String("config"); path != "" {
		cfg, err := avalon.LoadConfigFile(path)
		if err != nil {
			return err
		}
		if err := telescope.SeedConfig(cfg); err != nil {
			return fmt.Errorf("failed to store %s: %v", path, err)
		}
	}

	serverDesc := alpaca.ServerDescription{
		Manufacturer:        "StarGo Alpaca",
		ManufacturerVersion: "1.0",
	}

	var metricsHandler http.Handler
	if c.Bool("metrics") {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	devices := []alpaca.Device{
		telescope,
	}
	server := alpaca.NewServer(serverDesc, devices, store, tmpl, metricsHandler)

	mux := server.AddRoutes()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.Int("port")),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Debugf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", srv.Addr, err)
			stop()
		}
	}()

	if c.Bool("connect") {
		if err := telescope.Connect(); err != nil {
			log.Errorf("Failed to connect telescope: %v", err)
		}
	}

	// Create discovery responder
	discoveryLogger := log.WithField("component", "discovery")
	dr, err := alpaca.NewDiscoveryResponder("0.0.0.0", c.Int("port"), discoveryLogger)
	if err != nil {
		return fmt.Errorf("failed to create discovery responder: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dr.Run(ctx); err != nil {
			log.Errorf("Discovery responder failed: %v", err)
		}
		log.Debug("Discovery responder stopped")
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "stargo-alpaca",
		Usage: "ASCOM Alpaca server for Avalon StarGo mounts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   11111,
				EnvVars: []string{"ALPACA_PORT"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path of the configuration database",
				Value:   "alpaca.db",
				EnvVars: []string{"ALPACA_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML file with the telescope configuration to store on startup",
				EnvVars: []string{"STARGO_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "metrics",
				Usage:   "Serve Prometheus metrics on /metrics",
				Value:   true,
				EnvVars: []string{"ALPACA_METRICS"},
			},
			&cli.BoolFlag{
				Name:  "connect",
				Usage: "Connect the telescope on startup",
				Value: false,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
