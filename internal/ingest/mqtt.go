package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/metrics"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

const connectTimeout = 10 * time.Second

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// MQTTSubscriber feeds readings published on a topic such as
// fleet/telemetry/{vehicleID} into the ingest service. The last topic
// segment is the vehicle ID and the payload is a JSON reading.
type MQTTSubscriber struct {
	cfg     MQTTConfig
	service *Service
	log     log.FieldLogger

	ctx    context.Context
	client mqtt.Client
}

func NewMQTTSubscriber(cfg MQTTConfig, service *Service, logger log.FieldLogger) *MQTTSubscriber {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &MQTTSubscriber{
		cfg:     cfg,
		service: service,
		log:     logger.WithField("component", "mqtt"),
		ctx:     context.Background(),
	}
}

// Start connects to the broker and subscribes. The subscription is renewed
// on every reconnect. ctx is used for every ingest call.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	s.ctx = ctx
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
			token.Wait()
			if err := token.Error(); err != nil {
				s.log.WithError(err).WithField("topic", s.cfg.Topic).Error("Failed to subscribe")
				return
			}
			s.log.WithField("topic", s.cfg.Topic).Info("Subscribed to telemetry topic")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.log.WithError(err).Warn("MQTT connection lost")
		})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to %s: timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Broker, err)
	}
	return nil
}

// Stop unsubscribes and disconnects, waiting up to 250ms for in-flight work.
func (s *MQTTSubscriber) Stop() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}

func (s *MQTTSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	entry := s.log.WithField("topic", msg.Topic())

	vehicleID, err := vehicleIDFromTopic(msg.Topic())
	if err != nil {
		metrics.MQTTMessages.WithLabelValues(metrics.ResultInvalid).Inc()
		entry.WithError(err).Warn("Dropping telemetry message")
		return
	}

	var in models.TelemetryInput
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		metrics.MQTTMessages.WithLabelValues(metrics.ResultInvalid).Inc()
		entry.WithError(err).WithField("vehicle_id", vehicleID).Warn("Invalid telemetry payload")
		return
	}
	if err := in.Validate(); err != nil {
		metrics.MQTTMessages.WithLabelValues(metrics.ResultInvalid).Inc()
		entry.WithError(err).WithField("vehicle_id", vehicleID).Warn("Rejected telemetry reading")
		return
	}

	if _, err := s.service.Ingest(s.ctx, vehicleID, in); err != nil {
		if errors.Is(err, telemetry.ErrUnknownVehicle) {
			metrics.MQTTMessages.WithLabelValues(metrics.ResultUnknownVehicle).Inc()
			entry.WithField("vehicle_id", vehicleID).Warn("Telemetry for unknown vehicle")
			return
		}
		metrics.MQTTMessages.WithLabelValues(metrics.ResultError).Inc()
		entry.WithError(err).WithField("vehicle_id", vehicleID).Error("Failed to ingest telemetry")
		return
	}
	metrics.MQTTMessages.WithLabelValues(metrics.ResultOK).Inc()
}

func vehicleIDFromTopic(topic string) (string, error) {
	i := strings.LastIndexByte(topic, '/')
	id := strings.TrimSpace(topic[i+1:])
	if id == "" || id == "+" || id == "#" {
		return "", fmt.Errorf("no vehicle id in topic %q", topic)
	}
	return id, nil
}
