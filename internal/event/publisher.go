package event

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/yourorg/maintenance-sync/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types emitted on the maintenance topic
const (
	TypeRecordCompleted = "maintenance.record_completed"
	TypeVehicleDue      = "maintenance.vehicle_due"
)

// Envelope wraps every published event
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VehicleDuePayload describes a vehicle that crossed into a due state
type VehicleDuePayload struct {
	VehicleID        int `json:"vehicle_id"`
	DueItems         int `json:"due_items"`
	UpcomingItems    int `json:"upcoming_items"`
	HealthPercentage int `json:"health_percentage"`
}

// Publisher sends maintenance domain events to Kafka. Publishing is
// best-effort: a broker failure is logged and never propagated to callers.
type Publisher struct {
	mu       sync.Mutex
	writers  map[string]*kafka.Writer
	brokers  []string
	clientID string
	topics   map[string]string
	logger   *zap.Logger
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(brokers []string, clientID string, topics map[string]string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writers:  make(map[string]*kafka.Writer),
		brokers:  brokers,
		clientID: clientID,
		topics:   topics,
		logger:   logger,
	}
}

// getWriter returns a Kafka writer for the specified topic
func (p *Publisher) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: p.clientID,
		},
	}

	p.writers[topic] = writer
	return writer
}

// PublishRecordCompleted emits an event for a newly logged service record
func (p *Publisher) PublishRecordCompleted(ctx context.Context, record *model.MaintenanceRecord) {
	p.publish(ctx, p.topics["maintenanceEvents"], strconv.Itoa(record.VehicleID), Envelope{
		Type:      TypeRecordCompleted,
		Timestamp: time.Now(),
		Payload:   record,
	})
}

// PublishVehicleDue emits an event when a vehicle's schedule carries due items
func (p *Publisher) PublishVehicleDue(ctx context.Context, summary *model.VehicleScheduleSummary) {
	p.publish(ctx, p.topics["maintenanceEvents"], strconv.Itoa(summary.VehicleID), Envelope{
		Type:      TypeVehicleDue,
		Timestamp: time.Now(),
		Payload: VehicleDuePayload{
			VehicleID:        summary.VehicleID,
			DueItems:         summary.DueItems,
			UpcomingItems:    summary.UpcomingItems,
			HealthPercentage: summary.HealthPercentage,
		},
	})
}

func (p *Publisher) publish(ctx context.Context, topic, key string, envelope Envelope) {
	if topic == "" {
		return
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			zap.String("type", envelope.Type),
			zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("topic", topic),
			zap.String("type", envelope.Type),
			zap.Error(err))
		return
	}

	p.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("type", envelope.Type))
}

// Close closes all Kafka writers
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			p.logger.Error("Failed to close Kafka writer",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
	return nil
}
