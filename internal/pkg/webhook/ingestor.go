package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/app/models"
	"github.com/ucanapp/melibroker/app/repository"
	"github.com/ucanapp/melibroker/internal/pkg/metrics/counter"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
)

var validate = validator.New()

// InboundNotification is the normalized webhook body sent by the provider.
type InboundNotification struct {
	Topic         string     `json:"topic" validate:"required"`
	UserID        string     `json:"user_id" validate:"required"`
	Resource      string     `json:"resource" validate:"required"`
	ApplicationID string     `json:"application_id"`
	Attempts      int        `json:"attempts"`
	Sent          *time.Time `json:"sent"`
}

// DetailNoToken is the stored failure description for deliveries that arrive
// before the user has authorized.
const DetailNoToken = "user token not found"

// ValidationError rejects a notification missing required fields before
// anything is persisted. Callers map it to a 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid notification: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IngestResult reports the processing outcome of an acknowledged delivery.
// Acknowledged and processed are distinct: the provider gets a 200 once the
// event is durable, whether or not the resource fetch succeeded.
type IngestResult struct {
	Event     *models.WebhookEvent
	Processed bool
	// Detail carries the failure description stored on the event when
	// processing did not complete.
	Detail string
}

// ResourceFetcher is the slice of the provider client the ingestor uses to
// re-fetch the resource a notification points at.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, uri, accessToken string) ([]byte, error)
}

// Ingestor validates, persists and processes inbound notifications. The event
// row is written before any network call so every received delivery survives
// a processing crash.
type Ingestor struct {
	events  repository.WebhookEventRepository
	manager *tokens.Manager
	fetcher ResourceFetcher
	router  *Router
	log     *zap.Logger
}

// NewIngestor creates a webhook ingestor from injected dependencies.
func NewIngestor(
	events repository.WebhookEventRepository,
	manager *tokens.Manager,
	fetcher ResourceFetcher,
	router *Router,
	log *zap.Logger,
) *Ingestor {
	return &Ingestor{
		events:  events,
		manager: manager,
		fetcher: fetcher,
		router:  router,
		log:     log,
	}
}

// Ingest runs the full pipeline for one delivery: validate, persist, fetch
// the referenced resource with a valid token, update the event and dispatch
// the payload. Only validation and the initial persist can fail the call;
// every later failure is recorded on the event and acknowledged.
func (i *Ingestor) Ingest(ctx context.Context, n InboundNotification) (*IngestResult, error) {
	if err := validate.Struct(n); err != nil {
		return nil, &ValidationError{Err: err}
	}

	event := &models.WebhookEvent{
		Topic:         n.Topic,
		UserID:        n.UserID,
		Resource:      n.Resource,
		ApplicationID: n.ApplicationID,
		Attempts:      n.Attempts,
		Sent:          n.Sent,
		Received:      time.Now(),
	}
	if err := i.events.Create(event); err != nil {
		return nil, err
	}

	i.log.Info("webhook received",
		zap.String("topic", n.Topic),
		zap.String("user_id", n.UserID),
		zap.String("resource", n.Resource),
		zap.Int("attempts", n.Attempts),
	)

	var payload []byte
	_, err := i.manager.WithValidToken(ctx, n.UserID, func(ctx context.Context, accessToken string) error {
		body, err := i.fetcher.FetchResource(ctx, n.Resource, accessToken)
		if err != nil {
			return err
		}
		payload = body
		return nil
	})

	switch {
	case err == nil:
		if err := i.events.MarkProcessed(event.ID, string(payload)); err != nil {
			return nil, err
		}
		event.Processed = true
		event.Payload = string(payload)
		event.Error = ""
		_ = counter.AddWebhookProcessed(n.Topic)

		i.router.Dispatch(n.Topic, n.UserID, payload)

		i.log.Info("webhook processed",
			zap.String("topic", n.Topic),
			zap.String("user_id", n.UserID),
		)
		return &IngestResult{Event: event, Processed: true}, nil

	case errors.Is(err, tokens.ErrTokenNotFound):
		// Unauthorized users are a local condition; the provider must not
		// be told to redeliver.
		detail := DetailNoToken
		if err := i.events.MarkFailed(event.ID, detail); err != nil {
			return nil, err
		}
		event.Error = detail

		i.log.Info("webhook stored without processing, user not authenticated",
			zap.String("user_id", n.UserID),
		)
		return &IngestResult{Event: event, Detail: detail}, nil

	default:
		detail := err.Error()
		if err := i.events.MarkFailed(event.ID, detail); err != nil {
			return nil, err
		}
		event.Error = detail
		_ = counter.AddWebhookFailed(n.Topic)

		i.log.Warn("webhook processing failed",
			zap.String("topic", n.Topic),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		return &IngestResult{Event: event, Detail: detail}, nil
	}
}
