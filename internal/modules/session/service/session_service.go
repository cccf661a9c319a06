package service

import (
	"context"
	"fmt"
	"time"

	"mccall/internal/modules/session/domain"
	sessionout "mccall/internal/modules/session/port/out"
	apperrors "mccall/internal/platform/errors"
	"mccall/internal/platform/tx"
)

// SessionService persists finished sessions as notes and keeps the query
// index in sync with them.
type SessionService struct {
	store sessionout.SessionStore
	index sessionout.SessionIndex
	tx    tx.Manager
}

func NewSessionService(store sessionout.SessionStore, index sessionout.SessionIndex, txManager tx.Manager) *SessionService {
	if txManager == nil {
		txManager = tx.NoopManager{}
	}
	return &SessionService{store: store, index: index, tx: txManager}
}

func (s *SessionService) Archive(ctx context.Context, session domain.Session) (string, error) {
	path, err := s.store.Save(ctx, session)
	if err != nil {
		return "", err
	}
	if s.index != nil {
		if err := s.index.Upsert(ctx, session, path); err != nil {
			return path, fmt.Errorf("index session %s: %w", session.ID, err)
		}
	}
	return path, nil
}

func (s *SessionService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("session index is not configured")
	}
	stored, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.index.Reset(ctx); err != nil {
			return err
		}
		for _, item := range stored {
			if err := s.index.Upsert(ctx, item.Session, item.Path); err != nil {
				return fmt.Errorf("index session %s: %w", item.Session.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stored), nil
}

func (s *SessionService) Stats(ctx context.Context, from, to time.Time) (domain.Stats, error) {
	if to.Before(from) {
		return domain.Stats{}, fmt.Errorf("%w: range end is before its start", apperrors.ErrInvalidInput)
	}
	if s.index == nil {
		return domain.Stats{}, fmt.Errorf("session index is not configured")
	}
	sessions, err := s.index.Range(ctx, from, to)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.AggregateStats(sessions), nil
}
