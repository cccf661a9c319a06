package out

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mccall/internal/modules/session/domain"
	sessionout "mccall/internal/modules/session/port/out"
	"mccall/internal/platform/markdown"
	"mccall/internal/platform/slug"
)

// VaultSessionStore writes one markdown note per finished session under
// sessions/YYYY/MM/DD. The frontmatter carries the full record.
type VaultSessionStore struct {
	dir string
}

type sessionNote struct {
	SchemaVersion  int `yaml:"schema_version"`
	domain.Session `yaml:",inline"`
}

func NewVaultSessionStore(dir string) sessionout.SessionStore {
	return &VaultSessionStore{dir: dir}
}

func (s *VaultSessionStore) Save(_ context.Context, session domain.Session) (string, error) {
	date := session.StartedAt.Local()
	dir := filepath.Join(s.dir, date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(session.RoutineName))
	path := filepath.Join(dir, name)

	rendered, err := markdown.RenderFrontmatter(sessionNote{SchemaVersion: domain.SchemaVersion, Session: session}, renderBody(session))
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace session note: %w", err)
	}
	return path, nil
}

// List parses every session note, oldest first.
func (s *VaultSessionStore) List(_ context.Context) ([]sessionout.StoredSession, error) {
	stored := []sessionout.StoredSession{}
	err := filepath.WalkDir(s.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return filepath.SkipDir
			}
			return err
		}
		if entry.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read session note: %w", err)
		}
		note := sessionNote{}
		if _, err := markdown.DecodeFrontmatter(string(raw), &note); err != nil {
			return fmt.Errorf("parse session note %s: %w", path, err)
		}
		if note.ID == "" {
			return nil
		}
		stored = append(stored, sessionout.StoredSession{Session: note.Session, Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Session.StartedAt.Before(stored[j].Session.StartedAt)
	})
	return stored, nil
}

func renderBody(session domain.Session) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "# %s\n\n", session.RoutineName)
	fmt.Fprintf(&b, "- Started: %s\n", session.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Duration: %s\n", formatSeconds(session.Totals.TotalSeconds))
	fmt.Fprintf(&b, "- Cycles: %d\n", session.Totals.Cycles)
	if session.Recovered {
		b.WriteString("- Recovered after an unexpected exit\n")
	}
	b.WriteString("\n## Steps\n\n")
	for _, run := range session.StepRuns {
		fmt.Fprintf(&b, "- %s: %s of %s (%s)", run.StepID, formatSeconds(run.ActualSeconds), formatSeconds(run.PlannedSeconds), run.Result)
		if run.CheckIn != nil {
			switch {
			case run.CheckIn.Choice != "":
				fmt.Fprintf(&b, ", check-in %s", run.CheckIn.Choice)
			case run.CheckIn.TimedOut:
				b.WriteString(", check-in timed out")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatSeconds(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
