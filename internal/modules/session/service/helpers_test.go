package service

import (
	"context"
	"sync"
	"time"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/session/domain"
	sessionout "mccall/internal/modules/session/port/out"
	apperrors "mccall/internal/platform/errors"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedID string

func (f fixedID) New() string { return string(f) }

type memoryActiveStore struct {
	snapshot *domain.ActiveSnapshot
	saves    int
}

func (s *memoryActiveStore) SaveActive(_ context.Context, snapshot domain.ActiveSnapshot) error {
	s.snapshot = &snapshot
	s.saves++
	return nil
}

func (s *memoryActiveStore) LoadActive(context.Context) (domain.ActiveSnapshot, error) {
	if s.snapshot == nil {
		return domain.ActiveSnapshot{}, apperrors.ErrNoActiveSession
	}
	return *s.snapshot, nil
}

func (s *memoryActiveStore) ClearActive(context.Context) error {
	s.snapshot = nil
	return nil
}

type memorySessionStore struct {
	saved []domain.Session
}

func (s *memorySessionStore) Save(_ context.Context, session domain.Session) (string, error) {
	s.saved = append(s.saved, session)
	return "sessions/" + session.ID + ".md", nil
}

func (s *memorySessionStore) List(context.Context) ([]sessionout.StoredSession, error) {
	out := make([]sessionout.StoredSession, 0, len(s.saved))
	for _, session := range s.saved {
		out = append(out, sessionout.StoredSession{Session: session, Path: "sessions/" + session.ID + ".md"})
	}
	return out, nil
}

type memoryIndex struct {
	rows map[string]domain.Session
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{rows: map[string]domain.Session{}}
}

func (i *memoryIndex) Reset(context.Context) error {
	i.rows = map[string]domain.Session{}
	return nil
}

func (i *memoryIndex) Upsert(_ context.Context, session domain.Session, _ string) error {
	i.rows[session.ID] = session
	return nil
}

func (i *memoryIndex) Range(_ context.Context, from, to time.Time) ([]domain.Session, error) {
	out := []domain.Session{}
	for _, session := range i.rows {
		if !session.StartedAt.Before(from) && !session.StartedAt.After(to) {
			out = append(out, session)
		}
	}
	return out, nil
}

type staticCatalog []routine.Routine

func (c staticCatalog) Load(context.Context) ([]routine.Routine, error) {
	return c, nil
}

func focusRoutine() routine.Routine {
	return routine.Routine{
		ID:   "focus",
		Name: "Focus",
		Steps: []routine.Step{
			{ID: "work", Label: "Work", DurationSeconds: 1500, CheckIn: routine.CheckInConfig{Mode: routine.CheckInPrompt, PromptTimeoutSeconds: 60}},
			{ID: "break", Label: "Break", DurationSeconds: 300, CountAsBreak: true},
		},
		Repeat: routine.Count(2),
	}
}
