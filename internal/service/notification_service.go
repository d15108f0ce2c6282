package service

import (
	"context"
	"encoding/json"
	"fmt"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NewMessageEvent 新消息推送内容
type NewMessageEvent struct {
	ConversationID uint              `json:"conversationId"`
	RecipientIDs   []uint            `json:"recipientIds"`
	Message        model.MessageView `json:"message"`
}

// Notifier 推送投递，失败不影响消息持久化
type Notifier interface {
	NotifyNewMessage(ctx context.Context, event NewMessageEvent) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyNewMessage(ctx context.Context, event NewMessageEvent) error {
	return nil
}

// RedisNotifier 发布到 Redis 频道，由推送进程订阅后投递
type RedisNotifier struct {
	Client  *redis.Client
	Channel string
}

func (n *RedisNotifier) NotifyNewMessage(ctx context.Context, event NewMessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, n.Channel, payload).Err()
}

// HTTPPushNotifier 调用外部推送网关
type HTTPPushNotifier struct {
	Client *resty.Client
	URL    string
}

func NewHTTPPushNotifier(url, apiKey string) *HTTPPushNotifier {
	c := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPPushNotifier{Client: c, URL: url}
}

func (n *HTTPPushNotifier) NotifyNewMessage(ctx context.Context, event NewMessageEvent) error {
	body := event.Message.Content
	if body == "" && event.Message.ImageURL != nil {
		body = "[image]"
	}
	resp, err := n.Client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"recipients": event.RecipientIDs,
			"title":      event.Message.SenderName,
			"body":       body,
			"data": map[string]interface{}{
				"conversationId": event.ConversationID,
				"messageId":      event.Message.ID,
			},
		}).
		Post(n.URL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway returned %s", resp.Status())
	}
	return nil
}

// NewNotifier 按配置选择推送实现，redis 不可用时退化为不推送
func NewNotifier(cfg *config.NotificationConfig, rdb *redis.Client) Notifier {
	switch cfg.Driver {
	case util.NotifierRedis:
		if rdb != nil {
			return &RedisNotifier{Client: rdb, Channel: cfg.Channel}
		}
		logger.Log.Warn("Redis notifier requested but redis is unavailable, push disabled",
			zap.String("driver", cfg.Driver), zap.String("channel", cfg.Channel))
	case util.NotifierHTTP:
		if cfg.PushURL != "" {
			return NewHTTPPushNotifier(cfg.PushURL, cfg.PushAPIKey)
		}
		logger.Log.Warn("HTTP notifier requested without push_url, push disabled", zap.String("driver", cfg.Driver))
	case util.NotifierNone, "":
	default:
		logger.Log.Warn("Unknown notification driver, push disabled", zap.String("driver", cfg.Driver))
	}
	return NopNotifier{}
}
