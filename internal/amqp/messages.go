package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
)

// AlertEventMessage is the wire form of a core.AlertEvent published to
// the alert queue. The alert worker consumes these and dispatches the
// user-facing notification.
type AlertEventMessage struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id"`
	Category    string    `json:"category"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Percent     float64   `json:"percent,omitempty"`
	RecurringID string    `json:"recurring_id,omitempty"`
	Name        string    `json:"name,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAlertEventMessage converts a domain event into its wire form.
func NewAlertEventMessage(ev core.AlertEvent) *AlertEventMessage {
	return &AlertEventMessage{
		Kind:        string(ev.Kind),
		UserID:      ev.UserID,
		Category:    ev.Category,
		From:        string(ev.From),
		To:          string(ev.To),
		Percent:     ev.Percent,
		RecurringID: ev.RecurringID,
		Name:        ev.Name,
		AmountCents: ev.Amount.Cents,
		Timestamp:   time.Now(),
	}
}

// Event converts the message back into its domain form.
func (m *AlertEventMessage) Event() core.AlertEvent {
	return core.AlertEvent{
		Kind:        core.AlertKind(m.Kind),
		UserID:      m.UserID,
		Category:    m.Category,
		From:        core.BudgetClassification(m.From),
		To:          core.BudgetClassification(m.To),
		Percent:     m.Percent,
		RecurringID: m.RecurringID,
		Name:        m.Name,
		Amount:      core.Money{Cents: m.AmountCents},
	}
}

// ToJSON converts the message to JSON bytes.
func (m *AlertEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertEventMessageFromJSON creates a message from JSON bytes.
func AlertEventMessageFromJSON(data []byte) (*AlertEventMessage, error) {
	var msg AlertEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
