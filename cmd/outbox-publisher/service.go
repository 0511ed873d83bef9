package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// permanentError marks rows that can never be published as stored.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

type ServiceParams struct {
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Decoder          payloadDecoder
	Metrics          *metrics.OutboxMetrics
	Topic            string
	Outbox           config.OutboxConfig
	PublisherFactory publisherFactory
}

// Service drains outbox_events onto the billing topic.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	decoder      payloadDecoder
	metrics      *metrics.OutboxMetrics
	publisher    func() publisher
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}
	topic := strings.TrimSpace(params.Topic)
	if topic == "" {
		return nil, errors.New("billing topic is required")
	}

	decoder := params.Decoder
	if decoder == nil {
		decoder = outbox.NewBillingDecoderRegistry()
	}
	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}
	var cached publisher
	resolvePublisher := func() publisher {
		if cached == nil {
			cached = factory(topic)
		}
		return cached
	}

	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		decoder:      decoder,
		metrics:      params.Metrics,
		publisher:    resolvePublisher,
		topic:        topic,
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	return s, nil
}

// Run polls until ctx is cancelled, backing off while batches fail.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tally, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.metrics.IncBatchError()
			s.logg.Error(ctx, "outbox batch rolled back", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
		case tally.retried > 0:
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
		case tally.fetched > 0:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
		}

		if err := s.sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}
	}
}

type outcome string

const (
	outcomeDelivered outcome = metrics.PublishDelivered
	outcomeRetry     outcome = metrics.PublishRetry
	outcomeParked    outcome = metrics.PublishParked
)

type batchTally struct {
	fetched int
	retried int
}

// processBatch publishes one locked batch. A failed ordering key holds the
// rest of that customer's events until the next batch.
func (s *Service) processBatch(ctx context.Context) (batchTally, error) {
	var tally batchTally
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		tally.fetched = len(events)
		if len(events) == 0 {
			return nil
		}

		held := map[string]bool{}
		defer func() {
			if pub := s.publisher(); pub != nil {
				for key := range held {
					pub.ResumePublish(key)
				}
			}
		}()

		for _, event := range events {
			key := event.AggregateID.String()
			if held[key] {
				continue
			}
			result, err := s.handle(ctx, tx, event)
			if err != nil {
				return err
			}
			if result == outcomeRetry {
				held[key] = true
				tally.retried++
			}
			s.metrics.IncEvent(string(event.EventType), string(result))
		}
		return nil
	})
	return tally, err
}

// handle publishes a single row and records the result on it. Only database
// errors are returned.
func (s *Service) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	envelope, err := s.resolve(event)
	fields := s.eventFields(event, envelope)
	if err == nil {
		err = s.publish(ctx, event, envelope)
	}

	var permanent permanentError
	switch {
	case err == nil:
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "billing event published")
		return outcomeDelivered, nil

	case errors.As(err, &permanent):
		return outcomeParked, s.park(ctx, tx, event, err, fields)

	case event.AttemptCount+1 >= s.maxAttempts:
		return outcomeParked, s.park(ctx, tx, event, fmt.Errorf("max publish attempts reached: %w", err), fields)

	default:
		fields["attempt_count"] = event.AttemptCount + 1
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "billing event publish failed, will retry")
		if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return "", fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		return outcomeRetry, nil
	}
}

// resolve validates the stored envelope and its typed payload before anything is published.
func (s *Service) resolve(event models.OutboxEvent) (outbox.PayloadEnvelope, error) {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return outbox.PayloadEnvelope{}, permanentError{fmt.Errorf("decode envelope: %w", err)}
	}
	if _, err := s.decoder.Decode(event.EventType, envelope.Version, envelope.Data); err != nil {
		return envelope, permanentError{fmt.Errorf("decode payload: %w", err)}
	}
	return envelope, nil
}

func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "billing event parked")
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	pub := s.publisher()
	if pub == nil {
		return permanentError{fmt.Errorf("publisher not configured for topic %s", s.topic)}
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return permanentError{fmt.Errorf("publisher returned nil for topic %s", s.topic)}
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"customer_id":   event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         s.topic,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, max)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
