// Package notification sends order confirmations. Failures are logged and
// swallowed: settlement is never undone by a notification fault.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

// Sender delivers a message to a recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender records notifications in the log. Real email delivery is an
// external collaborator; this keeps the contract exercised in development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	slog.Info("Notification sent", "to", to, "subject", subject)
	return nil
}

// Dispatcher turns OrderConfirmed events from the broker into confirmation
// notifications.
type Dispatcher struct {
	sender Sender
	users  repository.UserRepository
}

func NewDispatcher(sender Sender, users repository.UserRepository) *Dispatcher {
	return &Dispatcher{sender: sender, users: users}
}

// HandleOrderConfirmed is the consumer handler for the orders.confirmed
// topic. Errors are returned for logging by the consumer loop but carry no
// retry semantics.
func (d *Dispatcher) HandleOrderConfirmed(ctx context.Context, payload []byte) error {
	var event entity.OrderConfirmed
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderConfirmed event: %w", err)
	}

	user, err := d.users.FindByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve user for confirmation: %w", err)
	}

	subject := fmt.Sprintf("Order %s confirmed", event.OrderID)
	body := fmt.Sprintf("Hi %s, your order %s for %s has been confirmed. Thank you for shopping with us!",
		user.FullName, event.OrderID, event.TotalAmount.StringFixed(2))

	if err := d.sender.Send(ctx, user.Email, subject, body); err != nil {
		// Best effort only.
		slog.Error("Failed to send confirmation", "order_id", event.OrderID, "err", err)
	}
	return nil
}
