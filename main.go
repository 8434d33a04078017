package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"i4.energy/across/blegw/ble"
	"i4.energy/across/blegw/rn"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the BLE module")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("device-name", "ble-gw", "Serialized device name to advertise")
	flag.String("service-uuid", "", "GATT service UUID (canonical form)")
	flag.String("value-char-uuid", "", "Readable value characteristic UUID (canonical form)")
	flag.String("control-char-uuid", "", "Writable control characteristic UUID (canonical form)")
	flag.Int("adv-interval", 0x0064, "Advertising interval")
	flag.Int("adv-power", 3, "Advertising power level (0-5)")
	flag.String("mqtt-broker", "", "MQTT broker URL (empty disables MQTT)")
	flag.String("mqtt-client-id", "ble-gw-1", "MQTT client identifier")
	flag.String("mqtt-topic", "ble/write", "MQTT topic for characteristic writes")
	flag.String("mqtt-status-topic", "ble/status", "MQTT topic for connection status transitions")
	flag.String("mqtt-username", "", "MQTT username")
	flag.String("mqtt-password", "", "MQTT password")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	profile, err := buildProfile(config)
	if err != nil {
		logger.Error("Invalid GATT profile configuration", "error", err)
		os.Exit(1)
	}

	bleConfig, err := ble.NewConfigBuilder().
		WithLogger(logger.With("component", "ble")).
		WithDialer(ble.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create module config", "error", err)
		os.Exit(1)
	}

	device, err := ble.New(context.Background(), bleConfig)
	if err != nil {
		logger.Error("Failed to open BLE module", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting BLE Gateway", "port", config.SerialPort)

	gateway := &Gateway{
		Logger: logger.With("component", "gateway"),
		Device: device,
	}
	if err := gateway.Provision(profile); err != nil {
		logger.Error("Failed to provision module", "error", err)
		os.Exit(1)
	}
	logger.Info("Module provisioned", "name", profile.DeviceName, "service", profile.ServiceUUID)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Gateway: gateway,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway.StartMQTT(ctx, config)

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)
	cancel()

	logger.Info("Closing module connection")
	if err := device.Close(); err != nil {
		logger.Error("Failed to close module", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}

// buildProfile converts the configured canonical UUIDs into the module's
// 32-hex-digit form and assembles the profile to provision.
func buildProfile(config *Config) (Profile, error) {
	serviceUUID, err := uuid.Parse(config.ServiceUUID)
	if err != nil {
		return Profile{}, fmt.Errorf("service UUID: %w", err)
	}
	valueUUID, err := uuid.Parse(config.ValueCharUUID)
	if err != nil {
		return Profile{}, fmt.Errorf("value characteristic UUID: %w", err)
	}
	controlUUID, err := uuid.Parse(config.ControlCharUUID)
	if err != nil {
		return Profile{}, fmt.Errorf("control characteristic UUID: %w", err)
	}

	return Profile{
		DeviceName:  config.DeviceName,
		ServiceUUID: rn.UUID128(serviceUUID),
		Characteristics: []Characteristic{
			{
				Name:     "value",
				UUID:     rn.UUID128(valueUUID),
				Property: rn.PropRead | rn.PropNotify,
				MaxLen:   0x02,
			},
			{
				Name:     "control",
				UUID:     rn.UUID128(controlUUID),
				Property: rn.PropWrite,
				MaxLen:   0x02,
			},
		},
		AdvInterval: uint16(config.AdvInterval),
		AdvPower:    uint8(config.AdvPower),
	}, nil
}
