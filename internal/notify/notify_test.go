package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/gorilla/websocket"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/monitoring"
)

func TestStatus_String(t *testing.T) {
	s := Status{Steps: 12, Jumps: 3, LatencyUs: 250}
	assert.Equal(t, "steps: 12 jumps: 3  with response time (us): 250", s.String())
}

type recordingSink struct {
	got []Status
	err error
}

func (r *recordingSink) Notify(_ context.Context, s Status) error {
	r.got = append(r.got, s)
	return r.err
}

func TestMulti(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("b down")}
	c := &recordingSink{err: errors.New("c down")}

	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	s := Status{Source: "api", Signal: detector.SignalStep, Steps: 1}
	err := Multi{a, nil, LogSink{}, b, c}.Notify(context.Background(), s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "b down")
	assert.Contains(t, err.Error(), "c down")
	assert.Equal(t, []Status{s}, a.got)
	assert.Equal(t, []Status{s}, c.got)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[api] step steps: 1 jumps: 0")
}

func TestHub_BroadcastsToClients(t *testing.T) {
	monitoring.SetLogger(nil)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	s := Status{Source: "serial", Signal: detector.SignalJump, Steps: 4, Jumps: 2, LatencyUs: 90}
	require.NoError(t, hub.Notify(ctx, s))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got envelope
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "status", got.Type)
	assert.Equal(t, s.String(), got.Message)
	assert.Equal(t, int64(2), got.Payload.Jumps)
	assert.Equal(t, detector.SignalJump, got.Payload.Signal)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_NotifyAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() { hub.Run(ctx); close(stopped) }()
	cancel()
	<-stopped

	assert.NoError(t, hub.Notify(context.Background(), Status{}))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startBroker(t *testing.T) string {
	t.Helper()
	addr := freeAddr(t)

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })
	return addr
}

func TestMQTTSink_Publishes(t *testing.T) {
	monitoring.SetLogger(nil)
	addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan string, 1)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	require.NoError(t, err)
	sub := paho.NewClient(paho.ClientConfig{
		ClientID: "watcher",
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				received <- pr.Packet.Topic + "|" + string(pr.Packet.Payload)
				return true, nil
			},
		},
	})
	_, err = sub.Connect(ctx, &paho.Connect{ClientID: "watcher", KeepAlive: 5, CleanStart: true})
	require.NoError(t, err)
	_, err = sub.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: "lab/motion", QoS: 0}},
	})
	require.NoError(t, err)

	sink, err := DialMQTT(ctx, addr, "motion-test", "lab/motion")
	require.NoError(t, err)
	defer sink.Close()
	assert.Equal(t, "lab/motion", sink.Topic())

	require.NoError(t, sink.Notify(ctx, Status{Steps: 7, Jumps: 1, LatencyUs: 33}))

	select {
	case msg := <-received:
		assert.Equal(t, "lab/motion|steps: 7 jumps: 1  with response time (us): 33", msg)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestDialMQTT_DefaultTopicAndDialError(t *testing.T) {
	addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink, err := DialMQTT(ctx, addr, "motion-default", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, sink.Topic())
	require.NoError(t, sink.Close())

	_, err = DialMQTT(ctx, freeAddr(t), "nobody", "")
	assert.Error(t, err)
}
