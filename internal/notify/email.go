package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/store"
)

// EmailNotifier turns selected domain events into confirmation emails.
// Delivery is fire-and-forget: the message is handed to the task queue and
// a failure to enqueue is logged, never propagated into the request path.
type EmailNotifier struct {
	Queue   Enqueuer
	Enabled bool
	From    string
	Logger  zerolog.Logger
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	if !n.Enabled || n.Queue == nil {
		return nil
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to, _ := payload["email"].(string)
	if strings.TrimSpace(to) == "" {
		return nil
	}
	subject, body := messageFor(event.Topic, payload)
	if subject == "" {
		return nil
	}
	task, err := NewEmailTask(EmailTask{To: to, Subject: subject, HTML: body})
	if err != nil {
		return err
	}
	if _, err := n.Queue.Enqueue(task); err != nil {
		n.Logger.Error().Err(err).Str("topic", event.Topic).Str("to", to).Msg("enqueue confirmation email")
	}
	return nil
}

func messageFor(topic string, payload map[string]any) (subject, body string) {
	name, _ := payload["name"].(string)
	if name == "" {
		name = "viðskiptavinur"
	}
	switch topic {
	case events.TopicOrderCreated:
		return "Pöntun móttekin",
			fmt.Sprintf("<p>Hæ %s,</p><p>Pöntunin þín er móttekin. Við látum vita þegar greiðslan hefur borist.</p>", name)
	case events.TopicOrderPaid:
		return "Greiðsla staðfest",
			fmt.Sprintf("<p>Hæ %s,</p><p>Takk fyrir! Greiðslan þín er staðfest og pöntunin er á leiðinni.</p>", name)
	case events.TopicTicketIssued:
		title, _ := payload["eventTitle"].(string)
		return "Miðinn þinn er klár",
			fmt.Sprintf("<p>Hæ %s,</p><p>Miðinn þinn á %s er staðfestur. Sjáumst!</p>", name, title)
	case events.TopicTourBooked:
		return "Bókun staðfest",
			fmt.Sprintf("<p>Hæ %s,</p><p>Bókunin þín er staðfest. Hlökkum til að sjá þig.</p>", name)
	default:
		return "", ""
	}
}
