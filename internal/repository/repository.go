// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"
	"time"

	"github.com/sakif/code-debugger/internal/model"
)

// SessionRepository persists quiz sessions.
//
// Update uses optimistic concurrency: it only succeeds if the stored
// session still has the Version the caller read, and bumps Version on
// success. A stale write returns an apperror.ErrConflict error.
//
// DeleteStartedBefore removes every session started before cutoff and
// returns how many were removed.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, session *model.Session) error
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
