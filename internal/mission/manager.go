// Package mission drives the per-channel mission state machine on top of
// the store. A channel has at most one active mission; history is kept as
// aborted/completed rows.
package mission

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexus/internal/logging"
	"nexus/internal/store"
	"nexus/internal/types"
)

// Manager exposes mission operations over the store.
type Manager struct {
	store *store.Store
}

// NewManager returns a Manager backed by s.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Create starts a new active mission for the channel. Any prior active
// mission is aborted, never deleted.
func (m *Manager) Create(channel, goal string, tasks []string) (*types.Mission, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("mission goal must not be empty")
	}
	ms := types.Mission{
		ID:      uuid.NewString(),
		Channel: channel,
		Goal:    goal,
		Tasks:   tasks,
		Step:    0,
		Status:  types.MissionActive,
	}
	if err := m.store.CreateMission(ms); err != nil {
		return nil, err
	}
	logging.Mission("[%s] created mission %s: %s (%d tasks)", channel, ms.ID, goal, len(tasks))
	return &ms, nil
}

// Active returns the channel's active mission, or store.ErrNoActiveMission.
func (m *Manager) Active(channel string) (*types.Mission, error) {
	return m.store.ActiveMission(channel)
}

// AddTasks replaces the task list of the active mission.
func (m *Manager) AddTasks(channel string, tasks []string) (*types.Mission, error) {
	ms, err := m.store.ActiveMission(channel)
	if err != nil {
		return nil, err
	}
	ms.Tasks = tasks
	if err := m.store.UpdateMission(ms); err != nil {
		return nil, err
	}
	logging.Mission("[%s] task list replaced (%d tasks)", channel, len(tasks))
	return ms, nil
}

// UpdateStep moves the step pointer. Any integer is accepted; reads of an
// out-of-range pointer report the current task as "Unknown".
func (m *Manager) UpdateStep(channel string, step int) (*types.Mission, error) {
	ms, err := m.store.ActiveMission(channel)
	if err != nil {
		return nil, err
	}
	ms.Step = step
	if err := m.store.UpdateMission(ms); err != nil {
		return nil, err
	}
	logging.Mission("[%s] step -> %d (%s)", channel, step, ms.CurrentTask())
	return ms, nil
}

// SaveMemo appends a timestamped line to the mission journal.
func (m *Manager) SaveMemo(channel, memo string) (*types.Mission, error) {
	ms, err := m.store.ActiveMission(channel)
	if err != nil {
		return nil, err
	}
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("2006-01-02 15:04"), memo)
	if ms.Memo == "" {
		ms.Memo = line
	} else {
		ms.Memo = ms.Memo + "\n" + line
	}
	if err := m.store.UpdateMission(ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// Complete marks the active mission completed.
func (m *Manager) Complete(channel string) (*types.Mission, error) {
	ms, err := m.store.ActiveMission(channel)
	if err != nil {
		return nil, err
	}
	ms.Status = types.MissionCompleted
	if err := m.store.UpdateMission(ms); err != nil {
		return nil, err
	}
	logging.Mission("[%s] mission %s completed", channel, ms.ID)
	return ms, nil
}

// Read renders the active mission as a text snapshot without mutating it.
func (m *Manager) Read(channel string) (string, error) {
	ms, err := m.store.ActiveMission(channel)
	if err != nil {
		return "", err
	}
	return Format(ms), nil
}

// Format renders one mission for prompt injection and tool output.
func Format(ms *types.Mission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission: %s\n", ms.Goal)
	fmt.Fprintf(&b, "Status: %s\n", ms.Status)
	fmt.Fprintf(&b, "Current step: %d (%s)\n", ms.Step, ms.CurrentTask())
	if len(ms.Tasks) > 0 {
		b.WriteString("Tasks:\n")
		for i, task := range ms.Tasks {
			marker := " "
			switch {
			case i < ms.Step:
				marker = "x"
			case i == ms.Step:
				marker = ">"
			}
			fmt.Fprintf(&b, "  [%s] %d. %s\n", marker, i+1, task)
		}
	}
	if ms.Memo != "" {
		fmt.Fprintf(&b, "Memo:\n%s\n", ms.Memo)
	}
	return b.String()
}
