package audit

import (
	"database/sql"
	"fmt"
)

// Schema creates the audit log table. Applied by deployment tooling, kept
// here so tests and local setups can bootstrap a database.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	identity TEXT NOT NULL,
	room_name TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_log_room_name ON audit_log (room_name, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_identity ON audit_log (identity, created_at DESC);
`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Log stores an audit entry.
func (r *PostgresRepository) Log(entry Entry) (*Record, error) {
	query := `
		INSERT INTO audit_log (identity, room_name, target, action, outcome, request_id, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	record := &Record{
		Identity:  entry.Identity,
		RoomName:  entry.RoomName,
		Target:    entry.Target,
		Action:    entry.Action,
		Outcome:   entry.Outcome,
		RequestID: entry.RequestID,
		IPAddress: entry.IPAddress,
	}

	err := r.db.QueryRow(
		query,
		entry.Identity,
		entry.RoomName,
		entry.Target,
		entry.Action,
		entry.Outcome,
		entry.RequestID,
		entry.IPAddress,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}

	return record, nil
}

// QueryByRoom retrieves the most recent audit records for a room.
// A limit of zero or less returns all records.
func (r *PostgresRepository) QueryByRoom(roomName string, limit int) ([]*Record, error) {
	query := `
		SELECT id, identity, room_name, target, action, outcome, request_id, ip_address, created_at
		FROM audit_log
		WHERE room_name = $1
		ORDER BY created_at DESC
	`
	return r.query(query, roomName, limit)
}

// QueryByIdentity retrieves the most recent audit records for an actor.
// A limit of zero or less returns all records.
func (r *PostgresRepository) QueryByIdentity(identity string, limit int) ([]*Record, error) {
	query := `
		SELECT id, identity, room_name, target, action, outcome, request_id, ip_address, created_at
		FROM audit_log
		WHERE identity = $1
		ORDER BY created_at DESC
	`
	return r.query(query, identity, limit)
}

func (r *PostgresRepository) query(query string, key string, limit int) ([]*Record, error) {
	args := []any{key}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record := &Record{}
		if err := rows.Scan(
			&record.ID,
			&record.Identity,
			&record.RoomName,
			&record.Target,
			&record.Action,
			&record.Outcome,
			&record.RequestID,
			&record.IPAddress,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}
	return records, nil
}
