package store

import (
	"fmt"
	"time"

	"nexus/internal/types"
)

// AppendLog appends one history row for a channel and returns its id.
func (s *Store) AppendLog(channel, msg string, kind types.LogKind, imageURL string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO logs (channel_id, timestamp, msg, type, image_url) VALUES (?, ?, ?, ?, ?)`,
		channel, time.Now().UTC(), msg, string(kind), imageURL,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append log: %w", err)
	}
	return res.LastInsertId()
}

// RecentLogs returns the most recent limit rows for a channel in
// chronological order.
func (s *Store) RecentLogs(channel string, limit int) ([]types.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, channel_id, timestamp, msg, type, COALESCE(image_url, '')
		 FROM logs WHERE channel_id = ?
		 ORDER BY id DESC LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		var e types.LogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.Channel, &e.Timestamp, &e.Message, &kind, &e.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		e.Kind = types.LogKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// CountLogs returns the number of rows stored for a channel.
func (s *Store) CountLogs(channel string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM logs WHERE channel_id = ?`, channel).Scan(&n)
	return n, err
}
