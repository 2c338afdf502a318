package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nexus/internal/types"
)

// ErrNoActiveMission is returned by operations that need an active mission
// when the channel has none.
var ErrNoActiveMission = errors.New("no active mission")

// CreateMission inserts a new active mission for a channel. Any prior
// active mission is marked aborted in the same transaction; rows are never
// deleted.
func (s *Store) CreateMission(m types.Mission) error {
	tasks, err := json.Marshal(m.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE missions SET status = ?, updated_at = ? WHERE channel_id = ? AND status = ?`,
		string(types.MissionAborted), now, m.Channel, string(types.MissionActive),
	); err != nil {
		return fmt.Errorf("failed to abort prior mission: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO missions (id, channel_id, goal, tasks_json, step, status, memo, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Channel, m.Goal, string(tasks), m.Step, string(types.MissionActive), m.Memo, now,
	); err != nil {
		return fmt.Errorf("failed to insert mission: %w", err)
	}

	return tx.Commit()
}

// ActiveMission returns the active mission for a channel, or
// ErrNoActiveMission.
func (s *Store) ActiveMission(channel string) (*types.Mission, error) {
	row := s.db.QueryRow(
		`SELECT id, channel_id, goal, tasks_json, step, status, memo, updated_at
		 FROM missions WHERE channel_id = ? AND status = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		channel, string(types.MissionActive),
	)
	return scanMission(row)
}

// UpdateMission rewrites the mutable fields of a mission row.
func (s *Store) UpdateMission(m *types.Mission) error {
	tasks, err := json.Marshal(m.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE missions SET goal = ?, tasks_json = ?, step = ?, status = ?, memo = ?, updated_at = ?
		 WHERE id = ?`,
		m.Goal, string(tasks), m.Step, string(m.Status), m.Memo, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNoActiveMission
	}
	return nil
}

// CountMissions returns the total number of mission rows for a channel,
// regardless of status.
func (s *Store) CountMissions(channel string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM missions WHERE channel_id = ?`, channel).Scan(&n)
	return n, err
}

func scanMission(row *sql.Row) (*types.Mission, error) {
	var m types.Mission
	var tasksJSON, status string
	err := row.Scan(&m.ID, &m.Channel, &m.Goal, &tasksJSON, &m.Step, &status, &m.Memo, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveMission
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	if err := json.Unmarshal([]byte(tasksJSON), &m.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	m.Status = types.MissionStatus(status)
	return &m, nil
}
