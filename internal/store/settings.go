package store

import (
	"database/sql"
	"errors"
	"fmt"

	"nexus/internal/types"
)

// SaveCredentials upserts the credential bundle for a channel.
func (s *Store) SaveCredentials(c types.Credentials) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_settings (channel_id, service, login, password, notes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   service = excluded.service,
		   login = excluded.login,
		   password = excluded.password,
		   notes = excluded.notes`,
		c.Channel, c.Service, c.Login, c.Password, c.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Credentials returns the stored bundle for a channel, or nil when the
// channel has none.
func (s *Store) Credentials(channel string) (*types.Credentials, error) {
	var c types.Credentials
	err := s.db.QueryRow(
		`SELECT channel_id, service, login, password, notes
		 FROM channel_settings WHERE channel_id = ?`,
		channel,
	).Scan(&c.Channel, &c.Service, &c.Login, &c.Password, &c.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return &c, nil
}
