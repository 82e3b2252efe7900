package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/temper-core/internal/infrastructure/config"
)

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: config.MQTTConfig{QoS: 1}}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "temper/3141/29697", []byte("x"), 3, ErrInvalidQoS},
		{"oversize payload", "temper/3141/29697", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "temper/3141/29697", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusTopic(t *testing.T) {
	if got := statusTopic("temper"); got != "temper/status" {
		t.Errorf("statusTopic() = %q, want temper/status", got)
	}
}

func TestStatusPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"online":  buildOnlinePayload("temper-core"),
		"offline": buildOfflinePayload("temper-core"),
	} {
		t.Run(name, func(t *testing.T) {
			var msg map[string]string
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				t.Fatalf("status payload is not valid JSON: %v", err)
			}
			if msg["status"] != name {
				t.Errorf("status = %q, want %q", msg["status"], name)
			}
			if msg["client_id"] != "temper-core" {
				t.Errorf("client_id = %q, want temper-core", msg["client_id"])
			}
		})
	}

	if !strings.Contains(buildOfflinePayload("x"), "graceful_shutdown") {
		t.Error("graceful offline payload must be distinguishable from the LWT")
	}
}

func TestBuildClientOptionsBrokerScheme(t *testing.T) {
	plain := buildClientOptions(config.MQTTConfig{Host: "broker.local", Port: 1883})
	if got := plain.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("broker url = %q, want tcp://broker.local:1883", got)
	}

	secure := buildClientOptions(config.MQTTConfig{Host: "broker.local", Port: 8883, TLS: true})
	if got := secure.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("broker url = %q, want ssl://broker.local:8883", got)
	}
}
