package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nexus/internal/logging"
	"nexus/internal/types"
)

// ErrUnknownDepartment is returned when a KPI row is requested for a
// department that was never seeded.
var ErrUnknownDepartment = errors.New("unknown department")

const (
	seedScore = 50
	minScore  = 0
	maxScore  = 100
)

// SeedReputation inserts the starting KPI row for every department.
// Existing rows are left untouched, so restarts keep accumulated scores.
func (s *Store) SeedReputation() error {
	for _, dept := range types.AllDepartments {
		_, err := s.db.Exec(
			`INSERT INTO kpi_scores (dept, score, streak, last_eval)
			 VALUES (?, ?, 0, ?)
			 ON CONFLICT(dept) DO NOTHING`,
			string(dept), seedScore, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", dept, err)
		}
	}
	return nil
}

// GetReputation returns the KPI row for one department.
func (s *Store) GetReputation(dept types.Department) (types.Reputation, error) {
	var r types.Reputation
	var name string
	err := s.db.QueryRow(
		`SELECT dept, score, streak, last_eval FROM kpi_scores WHERE dept = ?`,
		string(dept),
	).Scan(&name, &r.Score, &r.Streak, &r.LastEval)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrUnknownDepartment, dept)
	}
	if err != nil {
		return r, fmt.Errorf("failed to read kpi row: %w", err)
	}
	r.Department = types.Department(name)
	return r, nil
}

// AllReputation returns every KPI row in seed order.
func (s *Store) AllReputation() ([]types.Reputation, error) {
	out := make([]types.Reputation, 0, len(types.AllDepartments))
	for _, dept := range types.AllDepartments {
		r, err := s.GetReputation(dept)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// AdjustReputation applies a delta to a department score. The score is
// clamped to [0,100]; the streak increments only on a positive delta and
// resets to zero otherwise. Returns the updated row.
func (s *Store) AdjustReputation(dept types.Department, delta int) (types.Reputation, error) {
	cur, err := s.GetReputation(dept)
	if err != nil {
		return types.Reputation{}, err
	}

	score := cur.Score + delta
	if score > maxScore {
		score = maxScore
	}
	if score < minScore {
		score = minScore
	}

	streak := 0
	if delta > 0 {
		streak = cur.Streak + 1
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE kpi_scores SET score = ?, streak = ?, last_eval = ? WHERE dept = ?`,
		score, streak, now, string(dept),
	)
	if err != nil {
		return types.Reputation{}, fmt.Errorf("failed to update kpi row: %w", err)
	}

	logging.KPI("%s %+d -> score=%d streak=%d", dept, delta, score, streak)
	return types.Reputation{Department: dept, Score: score, Streak: streak, LastEval: now}, nil
}
