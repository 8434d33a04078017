package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// statusPollInterval paces the connection status probes published on the
// status topic. Each probe costs one command exchange on the serial link.
const statusPollInterval = 30 * time.Second

// StartMQTT connects to the configured broker and subscribes to the write
// topic. Returns nil when no broker is configured. Payloads are JSON
// {"characteristic": "...", "value": "..."} and are applied to the
// module's GATT table like a PUT on the HTTP surface.
func (g *Gateway) StartMQTT(ctx context.Context, config *Config) mqtt.Client {
	if config.MqttBroker == "" {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MqttBroker)
	opts.SetClientID(config.MqttClientID)
	if config.MqttUsername != "" {
		opts.SetUsername(config.MqttUsername)
		opts.SetPassword(config.MqttPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		g.Logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		g.Logger.Info("MQTT connected, subscribing", "topic", config.MqttTopic)
		token := c.Subscribe(config.MqttTopic, 0, func(_ mqtt.Client, m mqtt.Message) {
			type WriteRequest struct {
				Characteristic string `json:"characteristic"`
				Value          string `json:"value"`
			}
			var req WriteRequest
			if err := json.Unmarshal(m.Payload(), &req); err != nil {
				g.Logger.Warn("Bad MQTT payload", "error", err)
				return
			}
			if req.Characteristic == "" || req.Value == "" {
				g.Logger.Warn("MQTT payload missing characteristic or value")
				return
			}
			if err := g.WriteCharacteristic(req.Characteristic, req.Value); err != nil {
				g.Logger.Error("MQTT characteristic write failed", "error", err, "characteristic", req.Characteristic)
			}
		})
		if token.Wait() && token.Error() != nil {
			g.Logger.Error("MQTT subscribe failed", "error", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		g.Logger.Error("MQTT connect failed", "error", token.Error())
	}
	go g.publishStatus(ctx, client, config.MqttStatusTopic)
	go func() {
		<-ctx.Done()
		client.Disconnect(500)
	}()
	return client
}

// publishStatus polls the module's connection state and publishes
// transitions on the status topic as retained JSON, so late subscribers see
// the current state immediately.
func (g *Gateway) publishStatus(ctx context.Context, client mqtt.Client, topic string) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	last := -2
	for {
		status := g.Status()
		if status != last {
			payload := fmt.Sprintf(`{"connected":%t,"responding":%t}`, status == 1, status >= 0)
			if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
				g.Logger.Warn("MQTT status publish failed", "error", token.Error())
			} else {
				g.Logger.Info("Connection status changed", "status", status)
				last = status
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
