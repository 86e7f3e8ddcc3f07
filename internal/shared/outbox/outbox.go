package outbox

import "time"

// Statuses an outbox row moves through.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Message is an outbox row persisted inside the same DB transaction as the
// relay journal change it announces. The relay worker reads pending rows and
// publishes them to the message bus.
type Message struct {
	OutboxID  string
	EventType string
	Payload   []byte
	Status    string
	CreatedAt time.Time
	SentAt    *time.Time
}
