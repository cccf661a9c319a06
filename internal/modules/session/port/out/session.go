package out

import (
	"context"
	"time"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/session/domain"
)

type SessionStore interface {
	Save(ctx context.Context, session domain.Session) (string, error)
	List(ctx context.Context) ([]StoredSession, error)
}

type StoredSession struct {
	Session domain.Session
	Path    string
}

type SessionIndex interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, session domain.Session, path string) error
	// Range returns sessions whose start lies in [from, to].
	Range(ctx context.Context, from, to time.Time) ([]domain.Session, error)
}

type ActiveSessionStore interface {
	SaveActive(ctx context.Context, snapshot domain.ActiveSnapshot) error
	LoadActive(ctx context.Context) (domain.ActiveSnapshot, error)
	ClearActive(ctx context.Context) error
}

type RoutineCatalog interface {
	Load(ctx context.Context) ([]routine.Routine, error)
}
