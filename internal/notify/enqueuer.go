package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/reginor/backend-reginor/internal/events"
)

// RecipientSource resolves the email address an event should reach.
type RecipientSource interface {
	EmailFor(ctx context.Context, org, userID string) (string, error)
}

// TaskEnqueuer is the slice of asynq.Client the notifier uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer implements events.Notifier by queueing one email task per
// notifiable event. Events without a template or recipient are skipped
// silently; notification is best-effort by design of the event bus.
type Enqueuer struct {
	Tasks      TaskEnqueuer
	Recipients RecipientSource
	Log        zerolog.Logger
}

type eventEnvelope struct {
	OrderID    string `json:"orderId"`
	UserID     string `json:"userId"`
	TotalCents int64  `json:"totalCents"`
	Currency   string `json:"currency"`
}

// Notify queues the email for an emitted event.
func (e *Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if _, ok := emailTemplates[ev.Topic]; !ok {
		return nil
	}
	var payload eventEnvelope
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode event payload: %w", err)
	}
	if payload.UserID == "" {
		return nil
	}
	to, err := e.Recipients.EmailFor(ctx, ev.Org, payload.UserID)
	if err != nil {
		if errors.Is(err, ErrNoRecipient) {
			e.Log.Warn().Str("org", ev.Org).Str("topic", ev.Topic).Msg("event user has no email")
			return nil
		}
		return fmt.Errorf("notify: resolve recipient: %w", err)
	}

	task, err := NewEmailTask(EmailTask{
		Org:        ev.Org,
		Topic:      ev.Topic,
		To:         to,
		OrderID:    payload.OrderID,
		TotalCents: payload.TotalCents,
		Currency:   payload.Currency,
	})
	if err != nil {
		return err
	}
	if _, err := e.Tasks.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}

// ErrNoRecipient is returned when the user exists without an email address.
var ErrNoRecipient = errors.New("notify: no recipient")

// PGRecipients looks up user email addresses.
type PGRecipients struct {
	Pool *pgxpool.Pool
}

// EmailFor returns the address of the user within the org.
func (r PGRecipients) EmailFor(ctx context.Context, org, userID string) (string, error) {
	const q = `
		SELECT u.email
		FROM users u
		JOIN organizations o ON o.id = u.org_id
		WHERE o.slug = $1 AND u.id = $2`
	var email string
	err := r.Pool.QueryRow(ctx, q, org, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && email == "") {
		return "", ErrNoRecipient
	}
	return email, err
}
