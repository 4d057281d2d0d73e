// Package notifications publishes lifecycle events into redis channels for
// the presentation layer (chat bridge, dashboards) to deliver.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stashkeeper/internal/models"
)

// StaffChannel is where approval-gate and fulfillment events land.
const StaffChannel = "notifications:staff"

// UserChannel returns the channel for one user's notifications.
func UserChannel(userID string) string {
	return fmt.Sprintf("notifications:user:%s", userID)
}

// Event is the plain structured payload published for every notification. No
// platform markup; the bridge renders it.
type Event struct {
	Type          string    `json:"type"`
	RequestID     string    `json:"request_id"`
	UserID        string    `json:"user_id"`
	ResourceKey   string    `json:"resource_key"`
	ResourceClass string    `json:"resource_class"`
	QueuePosition int       `json:"queue_position"`
	Issued        int       `json:"issued"`
	Remaining     int       `json:"remaining"`
	Status        string    `json:"status"`
	At            time.Time `json:"at"`
}

// Notifier publishes events into redis channels. A nil client makes every
// publish a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier returns a Notifier over rdb.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func eventFor(eventType string, req *models.Request) Event {
	return Event{
		Type:          eventType,
		RequestID:     req.ID,
		UserID:        req.RequesterID,
		ResourceKey:   req.ResourceKey,
		ResourceClass: string(req.ResourceClass),
		QueuePosition: req.QueuePosition,
		Issued:        req.QuantityIssued,
		Remaining:     req.QuantityRemaining,
		Status:        string(req.Status),
		At:            time.Now().UTC(),
	}
}

// NotifyUser publishes an event to the user's channel.
func (n *Notifier) NotifyUser(ctx context.Context, userID, eventType string, req *models.Request) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(eventFor(eventType, req))
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// NotifyStaff publishes an event to the staff channel.
func (n *Notifier) NotifyStaff(ctx context.Context, eventType string, req *models.Request) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(eventFor(eventType, req))
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, StaffChannel, payload).Err()
}

// StartUserSubscriber subscribes to every user channel and calls onEvent for
// each incoming message until ctx is cancelled. Used by the bridge process.
func (n *Notifier) StartUserSubscriber(ctx context.Context, onEvent func(channel string, event Event)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				onEvent(msg.Channel, event)
			}
		}
	}()
	return nil
}
