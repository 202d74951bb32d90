package webhook

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Topic is the closed set of notification categories this service handles.
// Unrecognized provider topics map to TopicUnknown and are logged and
// dropped, never treated as errors, so new topics cannot break ingestion.
type Topic string

const (
	TopicOrders    Topic = "orders_v2"
	TopicItems     Topic = "items"
	TopicQuestions Topic = "questions"
	TopicClaims    Topic = "claims"
	TopicUnknown   Topic = ""
)

// ParseTopic maps a provider topic string to a known Topic.
func ParseTopic(s string) Topic {
	switch Topic(s) {
	case TopicOrders, TopicItems, TopicQuestions, TopicClaims:
		return Topic(s)
	default:
		return TopicUnknown
	}
}

// Router dispatches fetched resource payloads to topic-specific handling.
type Router struct {
	log *zap.Logger
}

// NewRouter creates a notification router.
func NewRouter(log *zap.Logger) *Router {
	return &Router{log: log}
}

// Dispatch routes a payload by topic. Routing is fire-and-forget from the
// ingestor's point of view; handler outcomes never affect the stored event.
func (r *Router) Dispatch(topic, userID string, payload []byte) {
	switch ParseTopic(topic) {
	case TopicOrders:
		r.handleOrder(userID, payload)
	case TopicItems:
		r.handleItem(userID, payload)
	case TopicQuestions:
		r.handleQuestion(userID, payload)
	case TopicClaims:
		r.handleClaim(userID, payload)
	default:
		r.log.Info("unhandled notification topic",
			zap.String("topic", topic),
			zap.String("user_id", userID),
		)
	}
}

func (r *Router) handleOrder(userID string, payload []byte) {
	var order struct {
		ID          json.Number `json:"id"`
		Status      string      `json:"status"`
		TotalAmount float64     `json:"total_amount"`
		Buyer       struct {
			ID json.Number `json:"id"`
		} `json:"buyer"`
	}
	if err := json.Unmarshal(payload, &order); err != nil {
		r.log.Warn("malformed order payload", zap.String("user_id", userID), zap.Error(err))
		return
	}
	r.log.Info("new order received",
		zap.String("user_id", userID),
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status),
		zap.Float64("total_amount", order.TotalAmount),
		zap.String("buyer_id", order.Buyer.ID.String()),
	)
}

func (r *Router) handleItem(userID string, payload []byte) {
	var item struct {
		ID                string `json:"id"`
		Title             string `json:"title"`
		Status            string `json:"status"`
		AvailableQuantity int    `json:"available_quantity"`
	}
	if err := json.Unmarshal(payload, &item); err != nil {
		r.log.Warn("malformed item payload", zap.String("user_id", userID), zap.Error(err))
		return
	}
	r.log.Info("item updated",
		zap.String("user_id", userID),
		zap.String("item_id", item.ID),
		zap.String("title", item.Title),
		zap.String("status", item.Status),
		zap.Int("available_quantity", item.AvailableQuantity),
	)
}

func (r *Router) handleQuestion(userID string, payload []byte) {
	var question struct {
		ID     json.Number `json:"id"`
		Text   string      `json:"text"`
		ItemID string      `json:"item_id"`
		From   struct {
			ID json.Number `json:"id"`
		} `json:"from"`
	}
	if err := json.Unmarshal(payload, &question); err != nil {
		r.log.Warn("malformed question payload", zap.String("user_id", userID), zap.Error(err))
		return
	}
	r.log.Info("new question received",
		zap.String("user_id", userID),
		zap.String("question_id", question.ID.String()),
		zap.String("item_id", question.ItemID),
		zap.String("from_id", question.From.ID.String()),
	)
}

func (r *Router) handleClaim(userID string, payload []byte) {
	var claim struct {
		ID      json.Number `json:"id"`
		Type    string      `json:"type"`
		Stage   string      `json:"stage"`
		OrderID json.Number `json:"order_id"`
	}
	if err := json.Unmarshal(payload, &claim); err != nil {
		r.log.Warn("malformed claim payload", zap.String("user_id", userID), zap.Error(err))
		return
	}
	r.log.Info("new claim received",
		zap.String("user_id", userID),
		zap.String("claim_id", claim.ID.String()),
		zap.String("type", claim.Type),
		zap.String("stage", claim.Stage),
		zap.String("order_id", claim.OrderID.String()),
	)
}
