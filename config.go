package main

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the BLE module's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the module (e.g. 115200)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// DeviceName is the serialized name advertised by the module
	DeviceName string
	// ServiceUUID is the 128-bit GATT service UUID in canonical form
	ServiceUUID string
	// ValueCharUUID is the readable value characteristic's UUID in canonical form
	ValueCharUUID string
	// ControlCharUUID is the writable control characteristic's UUID in canonical form
	ControlCharUUID string
	// AdvInterval is the advertising interval passed to the module
	AdvInterval int
	// AdvPower is the advertising power level (0-5)
	AdvPower int
	// MqttBroker is the MQTT broker URL; empty disables MQTT
	MqttBroker string
	// MqttClientID identifies this gateway to the broker
	MqttClientID string
	// MqttTopic is the topic carrying characteristic write requests
	MqttTopic string
	// MqttStatusTopic is the topic connection transitions are published on
	MqttStatusTopic string
	// MqttUsername authenticates to the broker (optional)
	MqttUsername string
	// MqttPassword authenticates to the broker (optional)
	MqttPassword string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.DeviceName = "ble-gw"
		c.ServiceUUID = "AD11CF40-063F-11E5-BE3E-0002A5D5C51B"
		c.ValueCharUUID = "AD11CF40-163F-11E5-BE3E-0002A5D5C51B"
		c.ControlCharUUID = "AD11CF40-363F-11E5-BE3E-0002A5D5C51B"
		c.AdvInterval = 0x0064
		c.AdvPower = 3
		c.MqttClientID = "ble-gw-1"
		c.MqttTopic = "ble/write"
		c.MqttStatusTopic = "ble/status"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if name := os.Getenv("DEVICE_NAME"); name != "" {
			c.DeviceName = name
		}

		if uuid := os.Getenv("SERVICE_UUID"); uuid != "" {
			c.ServiceUUID = uuid
		}

		if uuid := os.Getenv("VALUE_CHAR_UUID"); uuid != "" {
			c.ValueCharUUID = uuid
		}

		if uuid := os.Getenv("CONTROL_CHAR_UUID"); uuid != "" {
			c.ControlCharUUID = uuid
		}

		if interval := os.Getenv("ADV_INTERVAL"); interval != "" {
			if i, err := strconv.Atoi(interval); err == nil {
				c.AdvInterval = i
			}
		}

		if power := os.Getenv("ADV_POWER"); power != "" {
			if p, err := strconv.Atoi(power); err == nil {
				c.AdvPower = p
			}
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MqttBroker = broker
		}

		if id := os.Getenv("MQTT_CLIENT_ID"); id != "" {
			c.MqttClientID = id
		}

		if topic := os.Getenv("MQTT_TOPIC"); topic != "" {
			c.MqttTopic = topic
		}

		if topic := os.Getenv("MQTT_STATUS_TOPIC"); topic != "" {
			c.MqttStatusTopic = topic
		}

		if user := os.Getenv("MQTT_USERNAME"); user != "" {
			c.MqttUsername = user
		}

		if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
			c.MqttPassword = pass
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "device-name":
				c.DeviceName = f.Value.String()
			case "service-uuid":
				c.ServiceUUID = f.Value.String()
			case "value-char-uuid":
				c.ValueCharUUID = f.Value.String()
			case "control-char-uuid":
				c.ControlCharUUID = f.Value.String()
			case "adv-interval":
				if i, err := strconv.Atoi(f.Value.String()); err == nil {
					c.AdvInterval = i
				}
			case "adv-power":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.AdvPower = p
				}
			case "mqtt-broker":
				c.MqttBroker = f.Value.String()
			case "mqtt-client-id":
				c.MqttClientID = f.Value.String()
			case "mqtt-topic":
				c.MqttTopic = f.Value.String()
			case "mqtt-status-topic":
				c.MqttStatusTopic = f.Value.String()
			case "mqtt-username":
				c.MqttUsername = f.Value.String()
			case "mqtt-password":
				c.MqttPassword = f.Value.String()
			}
		})
		return nil
	}
}
