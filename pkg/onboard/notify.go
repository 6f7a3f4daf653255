package onboard

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier is the welcome-notification collaborator (SNS stand-in).
type Notifier interface {
	Notify(ctx context.Context, rec CustomerRecord) error
}

// LogNotifier writes the notification to the log instead of a real channel.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, rec CustomerRecord) error {
	logrus.WithFields(logrus.Fields{
		"customer_id":    rec.CustomerID,
		"customer_email": rec.Email,
	}).Info("welcome notification sent")
	return nil
}
