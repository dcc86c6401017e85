// Package sensor feeds external motion and environment readings into the
// aggregation loop as messages, keeping all state mutation single-writer.
package sensor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"flighttrack/internal/config"
	"flighttrack/internal/models"
	"flighttrack/internal/services"
	"flighttrack/pkg/logging"
)

// motionMessage is the payload published on the motion subject.
type motionMessage struct {
	TriggeredAt time.Time `json:"triggered_at"`
}

// Feed subscribes to sensor subjects on NATS and forwards decoded events
// to the aggregator's event channel.
type Feed struct {
	conn   *nats.Conn
	cfg    config.SensorConfig
	events chan<- services.SensorEvent
	logger *logging.StructuredLogger
	subs   []*nats.Subscription
}

// NewFeed connects to NATS and returns a sensor feed. Returns (nil, nil)
// when no NATS URL is configured: the tracker runs on the aircraft feed
// alone.
func NewFeed(cfg config.SensorConfig, events chan<- services.SensorEvent, logger *logging.StructuredLogger) (*Feed, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info(context.Background(), "[SENSOR_CONNECT] Connected to NATS", logging.Fields{
		"url":             cfg.NATSURL,
		"motion_subject":  cfg.MotionSubject,
		"env_subject":     cfg.EnvironmentSubject,
	})

	return &Feed{
		conn:   conn,
		cfg:    cfg,
		events: events,
		logger: logger,
	}, nil
}

// Start subscribes to the configured subjects. Malformed payloads are
// logged and dropped; they never reach the aggregator.
func (f *Feed) Start() error {
	motionSub, err := f.conn.Subscribe(f.cfg.MotionSubject, func(msg *nats.Msg) {
		var m motionMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			f.logger.Warn(context.Background(), "[SENSOR_DECODE] Bad motion payload", logging.Fields{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		at := m.TriggeredAt
		if at.IsZero() {
			at = time.Now()
		}
		f.deliver(services.SensorEvent{Kind: services.MotionEvent, Time: at})
	})
	if err != nil {
		return err
	}
	f.subs = append(f.subs, motionSub)

	envSub, err := f.conn.Subscribe(f.cfg.EnvironmentSubject, func(msg *nats.Msg) {
		var reading models.EnvReading
		if err := json.Unmarshal(msg.Data, &reading); err != nil {
			f.logger.Warn(context.Background(), "[SENSOR_DECODE] Bad environment payload", logging.Fields{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		f.deliver(services.SensorEvent{
			Kind:    services.EnvironmentEvent,
			Time:    time.Now(),
			Reading: &reading,
		})
	})
	if err != nil {
		return err
	}
	f.subs = append(f.subs, envSub)

	return nil
}

// deliver hands an event to the loop. Must not block inside the NATS
// callback, so a full channel drops the event.
func (f *Feed) deliver(ev services.SensorEvent) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn(context.Background(), "[SENSOR_DROP] Event channel full, dropping event", logging.Fields{
			"kind": string(ev.Kind),
		})
	}
}

// Close drains the subscriptions and closes the connection.
func (f *Feed) Close() {
	for _, sub := range f.subs {
		_ = sub.Unsubscribe()
	}
	f.conn.Close()
}
