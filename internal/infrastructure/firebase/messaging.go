package firebase

import (
	"context"
	"fmt"
	"log"
	"slices"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// fcmBatchLimit is the most tokens one multicast request accepts.
const fcmBatchLimit = 500

// budgetsCategory matches notification.CategoryBudgets. Budget warnings are
// delivered at high priority so they arrive while the purchase is fresh.
const budgetsCategory = "budgets"

// TokenDeactivator marks a token that can never deliver again.
type TokenDeactivator func(ctx context.Context, token string) error

// sender is the subset of *messaging.Client the Client uses.
type sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements notification.Messenger on Firebase Cloud Messaging.
type Client struct {
	fcm         sender
	deactivator TokenDeactivator
	isDead      func(error) bool
}

// NewClient returns an FCM client for app. deactivator may be nil.
func NewClient(ctx context.Context, app *firebase.App, deactivator TokenDeactivator) (*Client, error) {
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}
	return &Client{fcm: msgClient, deactivator: deactivator, isDead: isDeadToken}, nil
}

func (c *Client) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	msg := &messaging.Message{Token: token, Data: data}
	msg.Notification, msg.Android, msg.APNS = payload(title, body, data)

	if _, err := c.fcm.Send(ctx, msg); err != nil {
		if c.isDead(err) {
			c.deactivate(ctx, token, err)
			return fmt.Errorf("invalid token: %w", err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	return nil
}

// SendMulticast fans one notification out in batches of fcmBatchLimit.
// Per-token failures are logged and dead tokens deactivated; only a failed
// request is returned as an error.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	notif, android, apns := payload(title, body, data)
	var delivered, failed int
	for batch := range slices.Chunk(tokens, fcmBatchLimit) {
		resp, err := c.fcm.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: notif,
			Data:         data,
			Android:      android,
			APNS:         apns,
		})
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		delivered += resp.SuccessCount
		failed += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Error == nil {
				continue
			}
			if c.isDead(r.Error) {
				c.deactivate(ctx, batch[i], r.Error)
			} else {
				log.Printf("FCM send to %s failed: %v", shortToken(batch[i]), r.Error)
			}
		}
	}

	log.Printf("FCM multicast %q: %d delivered, %d failed", data["category"], delivered, failed)
	return nil
}

// payload builds the platform blocks for a notification. The data map's
// category picks the delivery priority.
func payload(title, body string, data map[string]string) (*messaging.Notification, *messaging.AndroidConfig, *messaging.APNSConfig) {
	priority, apnsPriority := "normal", "5"
	if data["category"] == budgetsCategory {
		priority, apnsPriority = "high", "10"
	}
	return &messaging.Notification{Title: title, Body: body},
		&messaging.AndroidConfig{Priority: priority},
		&messaging.APNSConfig{Headers: map[string]string{"apns-priority": apnsPriority}}
}

func (c *Client) deactivate(ctx context.Context, token string, cause error) {
	log.Printf("FCM token %s is no longer valid, deactivating: %v", shortToken(token), cause)
	if c.deactivator == nil {
		return
	}
	if err := c.deactivator(ctx, token); err != nil {
		log.Printf("Failed to deactivate FCM token %s: %v", shortToken(token), err)
	}
}

// shortToken keeps device tokens out of logs in full.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

// isDeadToken reports errors after which a token will never deliver again.
func isDeadToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}
