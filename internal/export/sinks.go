package export

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/temper-core/internal/temper"
)

// retainedPublisher is the slice of the MQTT client the sink needs.
type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// MQTTSink publishes each reading as a retained JSON message under its
// own topic, <prefix>/<vendorid>/<productid> with decimal ids matching
// the HTTP routes.
type MQTTSink struct {
	Client      retainedPublisher
	TopicPrefix string
}

// NewMQTTSink creates an MQTT sink over a connected client.
func NewMQTTSink(client retainedPublisher, topicPrefix string) *MQTTSink {
	return &MQTTSink{Client: client, TopicPrefix: topicPrefix}
}

func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Publish sends one retained message per reading. The first publish
// failure aborts the batch; with the broker down every subsequent
// attempt would fail identically.
func (s *MQTTSink) Publish(readings []temper.Filtered) error {
	for _, r := range readings {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding reading: %w", err)
		}
		topic := fmt.Sprintf("%s/%d/%d", s.TopicPrefix, r.VendorID, r.ProductID)
		if err := s.Client.PublishRetained(topic, payload); err != nil {
			return fmt.Errorf("publishing to %s: %w", topic, err)
		}
	}
	return nil
}

// readingWriter is the slice of the InfluxDB client the sink needs.
type readingWriter interface {
	WriteReadings(readings []temper.Filtered)
}

// InfluxSink records each reading batch as time-series points.
type InfluxSink struct {
	Client readingWriter
}

// NewInfluxSink creates an InfluxDB sink over a connected client.
func NewInfluxSink(client readingWriter) *InfluxSink {
	return &InfluxSink{Client: client}
}

func (s *InfluxSink) Name() string {
	return "influxdb"
}

// Publish hands the batch to the non-blocking write API. Write failures
// surface through the client's async error callback, not here.
func (s *InfluxSink) Publish(readings []temper.Filtered) error {
	s.Client.WriteReadings(readings)
	return nil
}
