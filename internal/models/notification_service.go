package models

import "context"

// NotificationService delivers alerts to one destination.
type NotificationService interface {
	Name() string
	SendNotification(ctx context.Context, alert *Alert) error
}
