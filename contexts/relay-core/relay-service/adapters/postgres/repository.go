package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
	sharedevents "baton/internal/shared/events"
	"baton/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository persists the relay journal and its outbox. The journal is
// observational (the ledger stays the source of truth), but the intent-digest
// unique constraint is what makes concurrent duplicate submissions collapse
// to one job, so Insert must go through the database even in degraded modes.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Models lists the tables this repository owns, for boot-time migration.
func Models() []any {
	return []any{&journalModel{}, &outboxModel{}}
}

func (r *Repository) Insert(ctx context.Context, entry entities.JournalEntry) error {
	row, err := journalModelFromEntity(entry)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) && constraintName(err) == "relay_journal_unique_intent" {
			return fmt.Errorf("%w: intent digest already journaled", domainerrors.ErrIntentInFlight)
		}
		return fmt.Errorf("insert journal row: %w", err)
	}
	return nil
}

func (r *Repository) RecordOutcomeWithOutbox(ctx context.Context, entry entities.JournalEntry, event ports.OutcomeEvent) error {
	envelope, err := buildOutcomeEnvelope(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	row, err := journalModelFromEntity(entry)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&journalModel{}).
			Where("job_id = ?", entry.JobID).
			Updates(map[string]any{
				"status":     row.Status,
				"outcome":    row.Outcome,
				"mirrors":    row.Mirrors,
				"attempts":   row.Attempts,
				"updated_at": row.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domainerrors.ErrJobNotFound, entry.JobID)
		}

		outboxRow := outboxModel{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       outbox.StatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			return fmt.Errorf("insert outbox row: %w", err)
		}
		return nil
	})
}

func (r *Repository) Get(ctx context.Context, jobID string) (entities.JournalEntry, error) {
	var row journalModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.JournalEntry{}, fmt.Errorf("%w: %s", domainerrors.ErrJobNotFound, jobID)
		}
		return entities.JournalEntry{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListStalePartials(ctx context.Context, before time.Time, limit int) ([]entities.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []journalModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(entities.JobPartial), before.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	entries := make([]entities.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntity()
		if err != nil {
			r.logger.Error("skip undecodable journal row",
				"event", "relay_journal_row_corrupt",
				"module", "relay-core/relay-service",
				"layer", "adapter",
				"job_id", row.JobID,
				"error", err.Error(),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Repository) BumpAttempt(ctx context.Context, jobID string, lastError string, stuck bool, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row journalModel
		if err := tx.Where("job_id = ?", jobID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domainerrors.ErrJobNotFound, jobID)
			}
			return err
		}

		var outcome entities.Outcome
		if len(row.Outcome) > 0 {
			if err := json.Unmarshal(row.Outcome, &outcome); err != nil {
				return fmt.Errorf("decode journal outcome: %w", err)
			}
		}
		outcome.Error = lastError
		encoded, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("encode journal outcome: %w", err)
		}

		updates := map[string]any{
			"attempts":   row.Attempts + 1,
			"outcome":    encoded,
			"updated_at": now.UTC(),
		}
		if stuck {
			updates["status"] = string(entities.JobStuck)
		}
		return tx.Model(&journalModel{}).
			Where("job_id = ?", jobID).
			Updates(updates).
			Error
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outbox.StatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("outbox message %s not found", outboxID)
	}
	return nil
}

var _ ports.JournalRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)

type journalModel struct {
	JobID        string    `gorm:"column:job_id;primaryKey"`
	Operation    string    `gorm:"column:operation"`
	Actor        string    `gorm:"column:actor"`
	IntentDigest string    `gorm:"column:intent_digest;uniqueIndex:relay_journal_unique_intent"`
	Status       string    `gorm:"column:status"`
	Outcome      []byte    `gorm:"column:outcome"`
	Mirrors      []byte    `gorm:"column:mirrors"`
	Attempts     int       `gorm:"column:attempts"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (journalModel) TableName() string {
	return "relay_journal"
}

func journalModelFromEntity(entry entities.JournalEntry) (journalModel, error) {
	outcome, err := json.Marshal(entry.Outcome)
	if err != nil {
		return journalModel{}, fmt.Errorf("encode journal outcome: %w", err)
	}
	var mirrors []byte
	if len(entry.MirrorEntries) > 0 {
		mirrors, err = json.Marshal(entry.MirrorEntries)
		if err != nil {
			return journalModel{}, fmt.Errorf("encode mirror entries: %w", err)
		}
	}
	return journalModel{
		JobID:        entry.JobID,
		Operation:    entry.Operation,
		Actor:        entry.Actor,
		IntentDigest: entry.IntentDigest,
		Status:       string(entry.Status),
		Outcome:      outcome,
		Mirrors:      mirrors,
		Attempts:     entry.Attempts,
		CreatedAt:    entry.CreatedAt.UTC(),
		UpdatedAt:    entry.UpdatedAt.UTC(),
	}, nil
}

func (m journalModel) toEntity() (entities.JournalEntry, error) {
	entry := entities.JournalEntry{
		JobID:        m.JobID,
		Operation:    m.Operation,
		Actor:        m.Actor,
		IntentDigest: m.IntentDigest,
		Status:       entities.JobStatus(m.Status),
		Attempts:     m.Attempts,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if len(m.Outcome) > 0 {
		if err := json.Unmarshal(m.Outcome, &entry.Outcome); err != nil {
			return entities.JournalEntry{}, fmt.Errorf("decode journal outcome: %w", err)
		}
	}
	if len(m.Mirrors) > 0 {
		if err := json.Unmarshal(m.Mirrors, &entry.MirrorEntries); err != nil {
			return entities.JournalEntry{}, fmt.Errorf("decode mirror entries: %w", err)
		}
	}
	return entry, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "relay_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:  m.OutboxID,
		EventType: m.EventType,
		Payload:   append([]byte(nil), m.Payload...),
		Status:    m.Status,
		CreatedAt: m.CreatedAt.UTC(),
		SentAt:    m.SentAt,
	}
}

type outcomeEventData struct {
	JobID     string           `json:"job_id"`
	Operation string           `json:"operation"`
	Actor     string           `json:"actor"`
	Status    string           `json:"status"`
	Outcome   entities.Outcome `json:"outcome"`
}

func buildOutcomeEnvelope(event ports.OutcomeEvent) (ports.EventEnvelope, error) {
	return sharedevents.New(
		event.EventID,
		event.EventType,
		"relay-service",
		event.JobID,
		event.PartitionKey,
		event.OccurredAt,
		outcomeEventData{
			JobID:     event.JobID,
			Operation: event.Operation,
			Actor:     event.Actor,
			Status:    event.Status,
			Outcome:   event.Outcome,
		},
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
