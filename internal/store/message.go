package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driverhub/internal/utils"
	"driverhub/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageTableName = "driverhub.messages"

var messageColumns = utils.StructTagValues(types.Message{})

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Append(ctx context.Context, msg *types.Message) error {
	if msg.ID == "" {
		msg.ID = utils.NanoID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Body = strings.TrimSpace(msg.Body)
	msg.IsRead = false
	msg.ReadAt = nil

	query, args, err := psql().
		Insert(messageTableName).
		SetMap(utils.StructToMap(msg)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate append message query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to append message")
}

// Conversation returns the full exchange for one application, oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, applicationID string) ([]*types.Message, error) {
	query, args, err := psql().
		Select(messageColumns...).
		From(messageTableName).
		Where(sq.Eq{"application_id": applicationID}).
		OrderBy("timestamp ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate conversation query: %w", err)
	}

	msgs := make([]*types.Message, 0)
	err = pgxscan.Select(ctx, r.pool, &msgs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return msgs, nil
}

// MarkConversationRead flips is_read on every unread message the other
// party sent. The flag only ever moves false to true.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, applicationID string, recipient types.MessageSender) error {
	query, args, err := psql().
		Update(messageTableName).
		Set("is_read", true).
		Set("read_at", time.Now()).
		Where(sq.Eq{
			"application_id": applicationID,
			"sender_type":    recipient.Other(),
			"is_read":        false,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate mark read query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to mark conversation read")
}

// UnreadCount counts messages sent by the other party that the recipient
// has not read yet.
func (r *MessageRepository) UnreadCount(ctx context.Context, applicationID string, recipient types.MessageSender) (int, error) {
	query, args, err := psql().
		Select("COUNT(*)").
		From(messageTableName).
		Where(sq.Eq{
			"application_id": applicationID,
			"sender_type":    recipient.Other(),
			"is_read":        false,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate unread count query: %w", err)
	}

	var count int
	err = pgxscan.Get(ctx, r.pool, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return count, nil
}
