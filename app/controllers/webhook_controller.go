package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/app/repository"
	"github.com/ucanapp/melibroker/internal/pkg/metrics/counter"
	"github.com/ucanapp/melibroker/internal/pkg/webhook"
)

const (
	defaultEventsLimit = 50
)

// WebhookController exposes notification ingestion and the stored-event
// listing.
type WebhookController struct {
	ingestor *webhook.Ingestor
	events   repository.WebhookEventRepository
	log      *zap.Logger
}

// NewWebhookController creates a webhook controller from injected dependencies.
func NewWebhookController(ingestor *webhook.Ingestor, events repository.WebhookEventRepository, log *zap.Logger) *WebhookController {
	return &WebhookController{ingestor: ingestor, events: events, log: log}
}

// webhookRequest tolerates the provider sending user_id as number or string.
type webhookRequest struct {
	Topic         string      `json:"topic"`
	UserID        json.Number `json:"user_id"`
	Resource      string      `json:"resource"`
	ApplicationID string      `json:"application_id"`
	Attempts      int         `json:"attempts"`
	Sent          *time.Time  `json:"sent"`
}

// HandlePostWebhook ingests one notification delivery. The response is 200
// whenever the event was persisted, regardless of processing outcome; the
// provider treats anything else as a redelivery request.
func (wc *WebhookController) HandlePostWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := wc.ingestor.Ingest(ctx, webhook.InboundNotification{
		Topic:         req.Topic,
		UserID:        req.UserID.String(),
		Resource:      req.Resource,
		ApplicationID: req.ApplicationID,
		Attempts:      req.Attempts,
		Sent:          req.Sent,
	})
	if err != nil {
		var invalid *webhook.ValidationError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":    "Missing required fields",
				"required": []string{"topic", "user_id", "resource"},
			})
		}
		wc.log.Error("webhook ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}

	if result.Detail == webhook.DetailNoToken {
		return c.JSON(fiber.Map{
			"message": "Webhook received but user not authenticated",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Webhook received and processed",
	})
}

// HandleGetStats reports per-topic processing counters.
func (wc *WebhookController) HandleGetStats(c *fiber.Ctx) error {
	processed, err := counter.Snapshot(true)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read counters",
			"details": err.Error(),
		})
	}
	failed, err := counter.Snapshot(false)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read counters",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"processed": processed,
		"failed":    failed,
	})
}

// HandleListEvents returns a newest-first page of stored events for a user.
func (wc *WebhookController) HandleListEvents(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultEventsLimit)))
	if err != nil || limit <= 0 {
		limit = defaultEventsLimit
	}
	skip, err := strconv.Atoi(c.Query("skip", "0"))
	if err != nil || skip < 0 {
		skip = 0
	}

	events, err := wc.events.ListByUserID(userID, limit, skip)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch webhook events",
			"details": err.Error(),
		})
	}
	total, err := wc.events.CountByUserID(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch webhook events",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"events": events,
		"pagination": fiber.Map{
			"total":   total,
			"limit":   limit,
			"skip":    skip,
			"hasMore": total > int64(skip+limit),
		},
	})
}
