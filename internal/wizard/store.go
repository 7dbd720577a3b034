package wizard

import (
	"context"
	"time"
)

// Store persists wizard sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error

	// DeleteIdle removes sessions not touched since the cutoff and
	// returns how many were removed. Sessions with a verified payment
	// are kept regardless.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}
