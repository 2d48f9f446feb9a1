package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger, now: time.Now}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = p.now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserRegistered publishes user.registered events.
func (p *EventPublisher) UserRegistered(ctx context.Context, userID, email string) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "user.registered", userID, occurredAt, domain.UserRegisteredEvent{
		UserID:     userID,
		Email:      email,
		OccurredAt: occurredAt,
	})
}

// EmailVerificationRequested publishes email.verification.requested events.
// The raw token rides in the payload so a mailer consumer can deliver it.
func (p *EventPublisher) EmailVerificationRequested(ctx context.Context, email, token string) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "email.verification.requested", "", occurredAt, domain.EmailVerificationRequestedEvent{
		Email:      email,
		Token:      token,
		OccurredAt: occurredAt,
	})
}

// PasswordResetRequested publishes password.reset.requested events.
func (p *EventPublisher) PasswordResetRequested(ctx context.Context, userID, email, token string) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "password.reset.requested", userID, occurredAt, domain.PasswordResetRequestedEvent{
		UserID:     userID,
		Email:      email,
		Token:      token,
		OccurredAt: occurredAt,
	})
}

// PasswordChanged publishes password.changed events.
func (p *EventPublisher) PasswordChanged(ctx context.Context, userID string) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "password.changed", userID, occurredAt, domain.PasswordChangedEvent{
		UserID:     userID,
		OccurredAt: occurredAt,
	})
}

// TwoFactorStatusChanged publishes two_factor.status.changed events.
func (p *EventPublisher) TwoFactorStatusChanged(ctx context.Context, userID string, enabled bool) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "two_factor.status.changed", userID, occurredAt, domain.TwoFactorStatusChangedEvent{
		UserID:     userID,
		Enabled:    enabled,
		OccurredAt: occurredAt,
	})
}

// SessionsRevoked publishes sessions.revoked events.
func (p *EventPublisher) SessionsRevoked(ctx context.Context, userID string, count int) error {
	occurredAt := p.now().UTC()
	return p.publish(ctx, "sessions.revoked", userID, occurredAt, domain.SessionsRevokedEvent{
		UserID:     userID,
		Count:      count,
		OccurredAt: occurredAt,
	})
}
