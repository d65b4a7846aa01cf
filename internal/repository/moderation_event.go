package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"momoguard/internal/models"
)

const maxListLimit = 500

type ModerationEventRepository interface {
	SaveEvent(event *models.ModerationEvent) error
	ListRecent(limit int) ([]*models.ModerationEvent, error)
	CountByAction() (map[string]int64, error)
}

type moderationEventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModerationEventRepository(db *sqlx.DB, logger *zap.Logger) ModerationEventRepository {
	return &moderationEventRepository{db: db, logger: logger}
}

func (r *moderationEventRepository) SaveEvent(event *models.ModerationEvent) error {
	query := `INSERT INTO moderation_events (chat_id, user_id, message_id, action, until)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	if err := r.db.QueryRowx(query, event.ChatID, event.UserID, event.MessageID, event.Action, event.Until).
		Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("insert moderation event: %w", err)
	}
	r.logger.Debug("Moderation event saved", zap.Int64("id", event.ID), zap.String("action", event.Action))
	return nil
}

// ListRecent returns up to limit events, newest first. A non-positive limit
// falls back to 50.
func (r *moderationEventRepository) ListRecent(limit int) ([]*models.ModerationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	events := []*models.ModerationEvent{}
	query := `SELECT id, chat_id, user_id, message_id, action, until, created_at
	          FROM moderation_events ORDER BY created_at DESC, id DESC LIMIT $1`
	if err := r.db.Select(&events, query, limit); err != nil {
		return nil, fmt.Errorf("list moderation events: %w", err)
	}
	return events, nil
}

func (r *moderationEventRepository) CountByAction() (map[string]int64, error) {
	rows, err := r.db.Queryx(`SELECT action, COUNT(*) FROM moderation_events GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("count moderation events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			action string
			count  int64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan moderation event count: %w", err)
		}
		counts[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation event counts: %w", err)
	}
	return counts, nil
}
