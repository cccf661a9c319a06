package domain

import (
	"time"

	routine "mccall/internal/modules/routine/domain"
)

const SchemaVersion = 1

type StepRunResult string

const (
	ResultCompleted StepRunResult = "completed"
	ResultSkipped   StepRunResult = "skipped"
	ResultAborted   StepRunResult = "aborted"
)

// CheckInResult records how a check-in ended. Choice is empty and RespondedAt
// zero until someone answers.
type CheckInResult struct {
	Mode        routine.CheckInMode   `yaml:"mode" json:"mode"`
	RespondedAt time.Time             `yaml:"responded_at,omitempty" json:"respondedAt,omitempty"`
	Choice      routine.CheckInChoice `yaml:"choice,omitempty" json:"choice,omitempty"`
	ResponseMS  int64                 `yaml:"response_ms,omitempty" json:"responseTimeMs,omitempty"`
	TimedOut    bool                  `yaml:"timed_out" json:"timedOut"`
}

type StepRun struct {
	StepID         string         `yaml:"step_id" json:"stepId"`
	PlannedSeconds int            `yaml:"planned_seconds" json:"plannedDurationSeconds"`
	ActualSeconds  int            `yaml:"actual_seconds" json:"actualDurationSeconds"`
	StartedAt      time.Time      `yaml:"started_at" json:"startedAt"`
	EndedAt        time.Time      `yaml:"ended_at" json:"endedAt"`
	Result         StepRunResult  `yaml:"result" json:"result"`
	CheckIn        *CheckInResult `yaml:"check_in,omitempty" json:"checkInResult,omitempty"`
	SoundPlayed    bool           `yaml:"sound_played" json:"soundPlayed"`
}

type Totals struct {
	TotalSeconds int `yaml:"total_seconds" json:"totalSeconds"`
	WorkSeconds  int `yaml:"work_seconds" json:"workSeconds"`
	BreakSeconds int `yaml:"break_seconds" json:"breakSeconds"`
	Cycles       int `yaml:"cycles" json:"cyclesCount"`
	CheckInDone  int `yaml:"check_in_done" json:"checkInDoneCount"`
	CheckInSkip  int `yaml:"check_in_skip" json:"checkInSkipCount"`
}

type Session struct {
	ID                 string    `yaml:"id"`
	RoutineID          string    `yaml:"routine_id"`
	RoutineName        string    `yaml:"routine_name"`
	StartedAt          time.Time `yaml:"started_at"`
	EndedAt            time.Time `yaml:"ended_at"`
	StepRuns           []StepRun `yaml:"step_runs"`
	Totals             Totals    `yaml:"totals"`
	MutedDuringSession bool      `yaml:"muted_during_session"`
	Recovered          bool      `yaml:"recovered,omitempty"`
}

// ComputeTotals sums the runs of a session. Steps are looked up in r for the
// break flag; a cycle is counted for every non-aborted run of the last step.
func ComputeTotals(r routine.Routine, runs []StepRun) Totals {
	totals := Totals{}
	lastStepID := r.LastStepID()
	for _, run := range runs {
		totals.TotalSeconds += run.ActualSeconds
		if step, ok := r.StepByID(run.StepID); ok && step.CountAsBreak {
			totals.BreakSeconds += run.ActualSeconds
		} else {
			totals.WorkSeconds += run.ActualSeconds
		}
		if run.StepID == lastStepID && run.Result != ResultAborted {
			totals.Cycles++
		}
		if run.CheckIn == nil {
			continue
		}
		switch run.CheckIn.Choice {
		case routine.ChoiceDone:
			totals.CheckInDone++
		case routine.ChoiceSkip:
			totals.CheckInSkip++
		default:
			if run.CheckIn.TimedOut {
				totals.CheckInSkip++
			}
		}
	}
	return totals
}

type Stats struct {
	Sessions     int
	Cycles       int
	TotalSeconds int
	WorkSeconds  int
	BreakSeconds int
	CheckInDone  int
	CheckInSkip  int
	MuteRate     float64
}

func AggregateStats(sessions []Session) Stats {
	stats := Stats{Sessions: len(sessions)}
	muted := 0
	for _, session := range sessions {
		stats.Cycles += session.Totals.Cycles
		stats.TotalSeconds += session.Totals.TotalSeconds
		stats.WorkSeconds += session.Totals.WorkSeconds
		stats.BreakSeconds += session.Totals.BreakSeconds
		stats.CheckInDone += session.Totals.CheckInDone
		stats.CheckInSkip += session.Totals.CheckInSkip
		if session.MutedDuringSession {
			muted++
		}
	}
	if stats.Sessions > 0 {
		stats.MuteRate = float64(muted) / float64(stats.Sessions)
	}
	return stats
}

// Seconds converts a duration to whole seconds, clamping negatives to zero.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
