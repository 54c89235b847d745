package notify

import (
	"context"
	"fmt"
	"net"

	"github.com/eclipse/paho.golang/paho"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "motion/status"

// MQTTSink publishes the status line at QoS 0.
type MQTTSink struct {
	client *paho.Client
	topic  string
}

// DialMQTT connects to the broker at addr (host:port) as clientID.
func DialMQTT(ctx context.Context, addr, clientID, topic string) (*MQTTSink, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial mqtt broker %s: %w", addr, err)
	}

	c := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
	})

	ack, err := c.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  30,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect failed: %w", err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect refused: reason code %d", ack.ReasonCode)
	}

	return &MQTTSink{client: c, topic: topic}, nil
}

// Topic returns the publish topic.
func (m *MQTTSink) Topic() string { return m.topic }

func (m *MQTTSink) Notify(ctx context.Context, s Status) error {
	_, err := m.client.Publish(ctx, &paho.Publish{
		QoS:     0,
		Topic:   m.topic,
		Payload: []byte(s.String()),
	})
	if err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() error {
	return m.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
