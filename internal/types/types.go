// Package types holds the shared data model for the Nexus agent server:
// channels, log entries, departments, and the oracle wire types that the
// agent loop, router, and gateway all exchange.
package types

import (
	"strings"
	"time"
)

// Department identifies a persona. The set is closed and pre-seeded in the
// reputation store at startup.
type Department string

const (
	DeptCentral Department = "CENTRAL"
	DeptDev     Department = "DEV"
	DeptTrading Department = "TRADING"
	DeptInfra   Department = "INFRA"
)

// AllDepartments lists every known department in seed order.
var AllDepartments = []Department{DeptCentral, DeptDev, DeptTrading, DeptInfra}

// ParseDepartment resolves a raw classifier response to a department.
// Matching is case-insensitive and substring-tolerant so that answers like
// "Department: TRADING." still resolve. Unknown input yields DeptCentral.
func ParseDepartment(raw string) (Department, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	for _, d := range AllDepartments {
		if strings.Contains(upper, string(d)) {
			return d, true
		}
	}
	return DeptCentral, false
}

// LogKind classifies a log entry. The values mirror the wire payload "type"
// field consumed by the frontend terminal.
type LogKind string

const (
	KindUser     LogKind = "user"    // inbound operator command
	KindGemini   LogKind = "gemini"  // oracle output
	KindSystem   LogKind = "sys"     // server-side notices
	KindThinking LogKind = "think"   // tool-dispatch notices
	KindBrowser  LogKind = "browser" // browser evidence (may carry an image)
	KindError    LogKind = "error"
)

// LogEntry is one durable, append-only history row for a channel.
type LogEntry struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channelId"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"msg"`
	Kind      LogKind   `json:"type"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

// Reputation is the per-department KPI row. Score is clamped to [0,100] on
// every update; Streak counts consecutive positive deltas.
type Reputation struct {
	Department Department `json:"dept"`
	Score      int        `json:"score"`
	Streak     int        `json:"streak"`
	LastEval   time.Time  `json:"lastEval"`
}

// MoodTier buckets a reputation score into the persona tone used when
// composing system instructions.
type MoodTier string

const (
	MoodAggressive MoodTier = "aggressive" // score >= 80
	MoodNeutral    MoodTier = "neutral"
	MoodDefensive  MoodTier = "defensive" // score <= 30
)

// Mood maps a score to its tier.
func Mood(score int) MoodTier {
	switch {
	case score >= 80:
		return MoodAggressive
	case score <= 30:
		return MoodDefensive
	default:
		return MoodNeutral
	}
}

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
	MissionAborted   MissionStatus = "aborted"
)

// Mission is a persisted multi-step goal for a channel. At most one mission
// per channel is active; creating a new one aborts (never deletes) the old.
type Mission struct {
	ID        string        `json:"id"`
	Channel   string        `json:"channel"`
	Goal      string        `json:"goal"`
	Tasks     []string      `json:"tasks"`
	Step      int           `json:"step"`
	Status    MissionStatus `json:"status"`
	Memo      string        `json:"memo"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// CurrentTask returns the task name at the current step pointer, or
// "Unknown" when the pointer is outside the task list. The pointer may
// legitimately run past the list because tasks can be added after creation.
func (m *Mission) CurrentTask() string {
	if m.Step < 0 || m.Step >= len(m.Tasks) {
		return "Unknown"
	}
	return m.Tasks[m.Step]
}

// Credentials is the optional per-channel secret bundle injected into the
// persona context when present.
type Credentials struct {
	Channel  string `json:"channel"`
	Service  string `json:"service"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}
