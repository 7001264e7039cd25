package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecosense/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// ListByUser returns the user's conversation, oldest message first.
func (r *MessageRepo) ListByUser(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT role, content FROM messages WHERE user_id = $1 ORDER BY created_at ASC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (r *MessageRepo) Append(ctx context.Context, userID int64, role, content string) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO messages (id, user_id, role, content) VALUES ($1, $2, $3, $4)",
		uuid.New(), userID, role, content,
	)
	return err
}

func (r *MessageRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM messages WHERE user_id = $1", userID)
	return err
}
