// Package repository persists conversation state in Postgres as one JSONB
// row per identity.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/intake/domain"
	"github.com/lawjfmiranda/jurbot1/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the pgx-backed conversation store.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a Postgres conversation store.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get loads the conversation for an identity. Returns (nil, nil) when no
// conversation exists yet.
func (r *Postgres) Get(ctx context.Context, identity string) (*domain.Conversation, error) {
	var state []byte
	err := r.pool.QueryRow(ctx,
		`SELECT state FROM conversations WHERE identity = $1`,
		identity,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "conversation store unavailable", err).WithOp("repository.Get")
	}

	var conv domain.Conversation
	if err := json.Unmarshal(state, &conv); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "corrupt conversation state", err).WithOp("repository.Get")
	}
	return &conv, nil
}

// Put upserts the conversation state.
func (r *Postgres) Put(ctx context.Context, conv *domain.Conversation) error {
	state, err := json.Marshal(conv)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode conversation state", err).WithOp("repository.Put")
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO conversations (identity, state, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		conv.Identity, state, time.Now(),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "conversation store unavailable", err).WithOp("repository.Put")
	}
	return nil
}
