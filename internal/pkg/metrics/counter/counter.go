package counter

import (
	"context"
	"strconv"

	"github.com/ucanapp/melibroker/internal/pkg/cache"
)

const (
	webhookProcessedKey = "webhook:counters:processed"
	webhookFailedKey    = "webhook:counters:failed"
)

// AddWebhookProcessed increments the processed counter for a topic in Redis
func AddWebhookProcessed(topic string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookProcessedKey, topic, 1).Err()
}

// AddWebhookFailed increments the failed counter for a topic in Redis
func AddWebhookFailed(topic string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookFailedKey, topic, 1).Err()
}

// Snapshot returns the current per-topic counters for one outcome key.
func Snapshot(processed bool) (map[string]int64, error) {
	ctx := context.Background()
	key := webhookFailedKey
	if processed {
		key = webhookProcessedKey
	}
	raw, err := cache.GetClient().HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for topic, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		out[topic] = n
	}
	return out, nil
}
