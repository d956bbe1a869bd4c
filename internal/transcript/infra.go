package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type pgRepo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &pgRepo{db: db}
}

func (r *pgRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS exchanges (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			channel    TEXT NOT NULL,
			user_text  TEXT NOT NULL,
			model_text TEXT NOT NULL,
			model      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS exchanges_user_created_idx ON exchanges (user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate exchanges: %w", err)
	}
	return nil
}

func (r *pgRepo) Create(ctx context.Context, ex Exchange) (int64, error) {
	createdAt := ex.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO exchanges (user_id, channel, user_text, model_text, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, ex.UserID, ex.Channel, ex.UserText, ex.ModelText, ex.Model, createdAt).Scan(&id)
	return id, err
}

func (r *pgRepo) GetHistory(ctx context.Context, userID string, limit int) ([]Exchange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, channel, user_text, model_text, model, created_at
		FROM (
			SELECT id, user_id, channel, user_text, model_text, model, created_at
			FROM exchanges
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(
			&ex.ID,
			&ex.UserID,
			&ex.Channel,
			&ex.UserText,
			&ex.ModelText,
			&ex.Model,
			&ex.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgRepo) ListUsers(ctx context.Context) ([]UserChannels, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, array_agg(DISTINCT channel) AS channels
		FROM exchanges
		GROUP BY user_id
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UserChannels
	for rows.Next() {
		var u UserChannels
		if err := rows.Scan(&u.UserID, pq.Array(&u.Channels)); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
