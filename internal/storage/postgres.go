/**
 * PostgreSQL record store for the file service
 *
 * Records live in doctranslate.files with the preprocessing result in a JSONB
 * column. Updates lock the row with SELECT ... FOR UPDATE.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

const postgresSchema = `
	CREATE SCHEMA IF NOT EXISTS doctranslate;

	CREATE TABLE IF NOT EXISTS doctranslate.files (
		file_id       TEXT PRIMARY KEY,
		original_name TEXT NOT NULL,
		safe_filename TEXT NOT NULL,
		file_path     TEXT NOT NULL,
		file_size     BIGINT NOT NULL DEFAULT 0,
		file_type     TEXT NOT NULL DEFAULT 'unknown',
		category      TEXT NOT NULL DEFAULT 'general',
		mime_type     TEXT,
		uploaded_at   TIMESTAMPTZ NOT NULL,
		status        TEXT NOT NULL,
		process_info  JSONB,
		processed_at  TIMESTAMPTZ,
		error         TEXT
	);

	CREATE INDEX IF NOT EXISTS files_uploaded_at_idx ON doctranslate.files (uploaded_at);
`

const selectColumns = `
	file_id, original_name, safe_filename, file_path, file_size,
	file_type, category, mime_type, uploaded_at, status,
	process_info, processed_at, error
`

// PostgresRecordStore implements RecordStore on PostgreSQL
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore connects to the database and ensures the schema exists
func NewPostgresRecordStore(databaseURL string) (*PostgresRecordStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresRecordStore{db: db}, nil
}

// Insert adds rec
func (p *PostgresRecordStore) Insert(ctx context.Context, rec *FileRecord) error {
	if rec == nil || rec.FileID == "" {
		return fmt.Errorf("file ID is required")
	}

	processInfo, err := encodeProcessInfo(rec.ProcessInfo)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO doctranslate.files (
			file_id, original_name, safe_filename, file_path, file_size,
			file_type, category, mime_type, uploaded_at, status,
			process_info, processed_at, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10,
			$11::jsonb, $12, NULLIF($13, '')
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		rec.FileID,
		rec.OriginalName,
		rec.SafeFilename,
		rec.FilePath,
		rec.FileSize,
		rec.FileType,
		rec.Category,
		rec.MimeType,
		rec.UploadedAt,
		string(rec.Status),
		processInfo,
		rec.ProcessedAt,
		rec.Error,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("record already exists: %s", rec.FileID)
		}
		return fmt.Errorf("failed to insert record (file=%s): %w", rec.FileID, err)
	}

	return nil
}

// Get returns the record for id
func (p *PostgresRecordStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM doctranslate.files WHERE file_id = $1`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Update locks the row, applies fn and writes the mutable columns back
func (p *PostgresRecordStore) Update(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM doctranslate.files WHERE file_id = $1 FOR UPDATE`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock record: %w", err)
	}

	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.FileID = id

	processInfo, err := encodeProcessInfo(rec.ProcessInfo)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE doctranslate.files SET
			status = $2,
			process_info = $3::jsonb,
			processed_at = $4,
			error = NULLIF($5, ''),
			category = $6,
			mime_type = NULLIF($7, '')
		WHERE file_id = $1
	`, id, string(rec.Status), processInfo, rec.ProcessedAt, rec.Error, rec.Category, rec.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to update record (file=%s, status=%s): %w", id, rec.Status, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return rec, nil
}

// Delete removes the record for id
func (p *PostgresRecordStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM doctranslate.files WHERE file_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns matching records in upload order
func (p *PostgresRecordStore) List(ctx context.Context, filter Filter) ([]*FileRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		conds = append(conds, fmt.Sprintf("file_type = $%d", len(args)))
	}

	query := `SELECT ` + selectColumns + ` FROM doctranslate.files`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY uploaded_at, file_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return p.query(ctx, query, args...)
}

// OlderThan returns records uploaded before cutoff
func (p *PostgresRecordStore) OlderThan(ctx context.Context, cutoff time.Time) ([]*FileRecord, error) {
	return p.query(ctx,
		`SELECT `+selectColumns+` FROM doctranslate.files WHERE uploaded_at < $1 ORDER BY uploaded_at, file_id`,
		cutoff)
}

func (p *PostgresRecordStore) query(ctx context.Context, query string, args ...interface{}) ([]*FileRecord, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity
func (p *PostgresRecordStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresRecordStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresRecordStore) GetStats() sql.DBStats {
	return p.db.Stats()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var (
		rec              FileRecord
		status           string
		mimeType, errMsg sql.NullString
		processInfoJSON  []byte
		processedAt      sql.NullTime
	)

	err := row.Scan(
		&rec.FileID, &rec.OriginalName, &rec.SafeFilename, &rec.FilePath, &rec.FileSize,
		&rec.FileType, &rec.Category, &mimeType, &rec.UploadedAt, &status,
		&processInfoJSON, &processedAt, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = FileStatus(status)
	rec.MimeType = mimeType.String
	rec.Error = errMsg.String
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	if len(processInfoJSON) > 0 {
		if err := json.Unmarshal(processInfoJSON, &rec.ProcessInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal process info: %w", err)
		}
	}

	return &rec, nil
}

// encodeProcessInfo marshals info for a JSONB column; nil stays NULL
func encodeProcessInfo(info map[string]interface{}) (interface{}, error) {
	if info == nil {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process info: %w", err)
	}
	return string(sanitizeJSONForPostgres(data)), nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres strips escape sequences JSONB rejects. Text
// previews extracted from documents routinely contain NUL bytes.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
