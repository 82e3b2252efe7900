// Temper - USB thermometer and hygrometer reader
//
// This is the main entry point for the temper command. It reads
// TEMPer-family USB sensors (raw-HID and serial-TTY variants) and
// reports their readings either as a one-shot console report or via a
// long-running HTTP service with optional MQTT and InfluxDB export.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/temper-core/internal/api"
	"github.com/nerrad567/temper-core/internal/export"
	"github.com/nerrad567/temper-core/internal/infrastructure/config"
	"github.com/nerrad567/temper-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/temper-core/internal/infrastructure/logging"
	"github.com/nerrad567/temper-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/temper-core/internal/sensor"
	"github.com/nerrad567/temper-core/internal/temper"
	"github.com/nerrad567/temper-core/internal/usb"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
)

// options holds the parsed command-line flags.
type options struct {
	list       bool
	useJSON    bool
	force      string
	serverPath string
	verbose    bool
	reqLogging bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.BoolVar(&opts.list, "l", false, "List all USB devices")
	flag.BoolVar(&opts.list, "list", false, "List all USB devices")
	flag.BoolVar(&opts.useJSON, "json", false, "Provide output as JSON")
	flag.StringVar(&opts.force, "force", "", "Force the use of the hex id VENDOR_ID:PRODUCT_ID; ignore other ids")
	flag.StringVar(&opts.serverPath, "server", "", "HTTP server configuration PATH")
	flag.BoolVar(&opts.verbose, "verbose", false, "Output binary data from thermometer")
	flag.BoolVar(&opts.reqLogging, "logging", false, "Log HTTP requests")
	flag.Parse()
	return opts
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	var forced *temper.ID
	if opts.force != "" {
		id, err := temper.ParseID(opts.force)
		if err != nil {
			return err
		}
		forced = &id
	}

	if opts.serverPath != "" {
		return runServer(ctx, opts, forced)
	}
	return runOneShot(opts, forced)
}

// runOneShot performs a single acquisition pass and prints the report.
func runOneShot(opts options, forced *temper.ID) error {
	log := logging.Default()
	if opts.verbose {
		log = logging.New(config.LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stderr",
		}, version)
	}

	tm := temper.New(temper.Options{
		Decoder: &sensor.Decoder{Logger: log},
		Forced:  forced,
		Logger:  log,
	})

	if opts.list {
		return printDeviceList(tm, opts.useJSON)
	}

	results := tm.ReadAll()
	if opts.useJSON {
		return printJSON(results)
	}
	for _, r := range results {
		printResult(r)
	}
	return nil
}

// printDeviceList prints every discovered USB device, recognised or not,
// with recognised ids marked by an asterisk.
func printDeviceList(tm *temper.Temper, useJSON bool) error {
	devices := tm.AllDevices()

	if useJSON {
		byPath := make(map[string]usb.Device, len(devices))
		for _, d := range devices {
			byPath[d.Path] = d
		}
		return printJSON(byPath)
	}

	for _, d := range devices {
		marker := " "
		if tm.IsKnownID(d.VendorID, d.ProductID) {
			marker = "*"
		}
		product := d.Product
		if product == "" {
			product = "???"
		}
		interfaces := ""
		if len(d.Interfaces) > 0 {
			interfaces = fmt.Sprintf("%v", d.Interfaces)
		}
		fmt.Printf("Bus %03d Dev %03d %04x:%04x %s %s %s\n",
			d.BusNum, d.DevNum, d.VendorID, d.ProductID, marker, product, interfaces)
	}
	return nil
}

// printResult prints one reading as a formatted report line.
func printResult(r temper.Result) {
	s := fmt.Sprintf("Bus %03d Dev %03d %04x:%04x %s",
		r.BusNum, r.DevNum, r.VendorID, r.ProductID, r.Firmware)
	if r.Error != "" {
		s += " Error: " + r.Error
	} else {
		s += " " + formatTemperature(r.InternalTemperatureC)
		s += " " + formatHumidity(r.InternalHumidityPct)
		s += " " + formatTemperature(r.ExternalTemperatureC)
		s += " " + formatHumidity(r.ExternalHumidityPct)
	}
	fmt.Println(s)
}

// formatTemperature renders a temperature in both Celsius and Fahrenheit,
// or "- -" when the channel is absent.
func formatTemperature(c *float64) string {
	if c == nil {
		return "- -"
	}
	return fmt.Sprintf("%.2fC %.2fF", *c, *c*1.8+32.0)
}

// formatHumidity renders a humidity percentage, or "-" when absent.
func formatHumidity(pct *float64) string {
	if pct == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", int(*pct))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// runServer starts the long-running HTTP service with the optional MQTT
// and InfluxDB exports, and blocks until the shutdown signal.
func runServer(ctx context.Context, opts options, forced *temper.ID) error {
	log := logging.Default()
	log.Info("starting temper service",
		"version", version,
		"commit", commit,
	)

	cfg, err := config.Load(opts.serverPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.serverPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	decoderLog := log
	if opts.verbose {
		decoderLog = logging.New(config.LoggingConfig{
			Level:  "debug",
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}, version)
	}

	tm := temper.New(temper.Options{
		Decoder: &sensor.Decoder{Logger: decoderLog},
		Forced:  forced,
		Logger:  log,
	})
	log.Info("device registry initialised", "devices", len(tm.AllDevices()))

	server, err := api.New(api.Deps{
		Config:         cfg,
		Logger:         log.With("component", "api"),
		Temper:         tm,
		RequestLogging: opts.reqLogging,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// The WebSocket hub streams every polled batch to connected clients.
	sinks := []export.Sink{server.Hub()}

	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"client_id", cfg.MQTT.ClientID,
		)
		sinks = append(sinks, export.NewMQTTSink(mqttClient, cfg.MQTT.TopicPrefix))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, export.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	poller := &export.Poller{
		Interval: cfg.PollInterval(),
		Temper:   tm,
		BaseURL:  server.BaseURL(),
		Sinks:    sinks,
		Logger:   log.With("component", "export"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	<-gctx.Done()

	log.Info("shutdown signal received, cleaning up")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("background export: %w", err)
	}

	log.Info("temper service stopped")
	return nil
}
