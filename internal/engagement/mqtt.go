package engagement

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Subscriber is the slice of the MQTT client the source needs. The
// mqttclient package satisfies it.
type Subscriber interface {
	SetMessageHandler(func(topic string, payload []byte))
}

// mqttReading is the wire format sensors publish, one reading per message.
// A missing kind falls back to the topic's last segment.
type mqttReading struct {
	Kind  string     `json:"kind"`
	Value float64    `json:"value"`
	At    *time.Time `json:"at"`
}

// MQTTSource adapts the sensor feed to the Source contract so a live
// recording can consume real readings in place of the simulator.
type MQTTSource struct {
	sub Subscriber
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	out      chan Sample
	closed   bool
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewMQTTSource(sub Subscriber, log zerolog.Logger) *MQTTSource {
	return &MQTTSource{
		sub:     sub,
		log:     log,
		now:     time.Now,
		out:     make(chan Sample, 16),
		stopped: make(chan struct{}),
	}
}

func (m *MQTTSource) Samples() <-chan Sample { return m.out }

func (m *MQTTSource) Start(ctx context.Context) {
	m.sub.SetMessageHandler(func(topic string, payload []byte) {
		sample, ok := m.parse(topic, payload)
		if !ok {
			return
		}
		m.mu.Lock()
		if !m.closed {
			select {
			case m.out <- sample:
			default:
				// Consumer is behind; drop rather than block the MQTT callback.
			}
		}
		m.mu.Unlock()
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-m.stopped:
		}
		m.sub.SetMessageHandler(nil)
		m.mu.Lock()
		m.closed = true
		close(m.out)
		m.mu.Unlock()
	}()
}

func (m *MQTTSource) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

func (m *MQTTSource) parse(topic string, payload []byte) (Sample, bool) {
	var r mqttReading
	if err := json.Unmarshal(payload, &r); err != nil {
		m.log.Warn().Err(err).Str("topic", topic).Msg("bad engagement payload")
		return Sample{}, false
	}

	kind := Kind(r.Kind)
	if kind == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 {
			kind = Kind(topic[i+1:])
		}
	}
	if kind != KindAttention && kind != KindUnderstanding {
		m.log.Debug().Str("topic", topic).Str("kind", string(kind)).Msg("unknown metric kind, dropping")
		return Sample{}, false
	}

	at := m.now()
	if r.At != nil {
		at = *r.At
	}
	return Sample{Kind: kind, Value: clamp(r.Value, 0, 100), At: at}, true
}
