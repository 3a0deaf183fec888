package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/models"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *logrus.Logger) *RedisCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

// Status is the cached view of a message's delivery state.
type Status struct {
	HistoryID    uint         `json:"historyId"`
	CompanyID    uint         `json:"companyId"`
	State        models.State `json:"state"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	DeliveryDate *time.Time   `json:"deliveryDate,omitempty"`
	ReadDate     *time.Time   `json:"readDate,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func key(messageID string) string {
	return fmt.Sprintf("zns:status:%s", messageID)
}

func (c *RedisCache) StoreStatus(ctx context.Context, messageID string, st Status) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(messageID), b, c.ttl).Err()
}

// LookupStatus returns false when nothing is cached for messageID.
func (c *RedisCache) LookupStatus(ctx context.Context, messageID string) (*Status, bool, error) {
	raw, err := c.rdb.Get(ctx, key(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

// HistoryChanged caches the state of rows that carry a BOM message id.
func (c *RedisCache) HistoryChanged(ctx context.Context, h *models.History) {
	messageID := h.RemoteID()
	if messageID == "" {
		return
	}
	st := Status{
		HistoryID:    h.ID,
		CompanyID:    h.CompanyID,
		State:        h.State,
		ErrorMessage: h.ErrorMessage,
		DeliveryDate: h.DeliveryDate,
		ReadDate:     h.ReadDate,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := c.StoreStatus(ctx, messageID, st); err != nil {
		c.log.WithError(err).WithField("message_id", messageID).Warn("failed to cache message status")
	}
}
