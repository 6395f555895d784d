package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"lockbox/internal/database/migrations"
	"lockbox/internal/lockbox"
)

// SQLStore implements lockbox.Store on SQLite or PostgreSQL through sqlx.
// Queries are written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
}

var _ lockbox.Store = (*SQLStore)(nil)

type userRow struct {
	Username  string    `db:"username"`
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
}

type fileRow struct {
	ID       string    `db:"id"`
	Name     string    `db:"name"`
	Owner    string    `db:"owner"`
	Size     int64     `db:"size"`
	Uploaded time.Time `db:"uploaded"`
	Modified time.Time `db:"modified"`
}

type grantRow struct {
	FileID   string `db:"file_id"`
	Position int    `db:"position"`
	Username string `db:"username"`
	Mode     string `db:"mode"`
}

type eventRow struct {
	ID         string    `db:"id"`
	Kind       string    `db:"kind"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
	Username   string    `db:"username"`
}

// OpenSQLite opens a SQLite database at path, or a private in-memory
// database when path is ":memory:".
func OpenSQLite(path string) (*SQLStore, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, dialect: migrations.DialectSQLite}, nil
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	return &SQLStore{db: db, dialect: migrations.DialectPostgres}, nil
}

// Migrate applies all pending schema migrations.
func (s *SQLStore) Migrate() error {
	return migrations.MigrateUp(s.db.DB, s.dialect)
}

// CheckMigrations reports an error unless the schema is at the latest version.
func (s *SQLStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB, s.dialect)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// User operations

func (s *SQLStore) CreateUser(user *lockbox.User) error {
	_, err := s.db.Exec(s.db.Rebind(
		`INSERT INTO users (username, secret, created_at) VALUES (?, ?, ?)`),
		user.Username, user.Secret, user.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", lockbox.ErrUserExists, user.Username)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *SQLStore) FindUser(username string) (*lockbox.User, error) {
	var row userRow
	err := s.db.Get(&row, s.db.Rebind(
		`SELECT username, secret, created_at FROM users WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &lockbox.User{Username: row.Username, Secret: row.Secret, CreatedAt: row.CreatedAt}, nil
}

func (s *SQLStore) UpdateUserSecret(username, secret string) error {
	res, err := s.db.Exec(s.db.Rebind(`UPDATE users SET secret = ? WHERE username = ?`), secret, username)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s", lockbox.ErrNotFound, username)
	}
	return nil
}

// File operations

func (s *SQLStore) CreateFile(record *lockbox.FileRecord) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(tx.Rebind(
		`INSERT INTO files (id, name, owner, size, uploaded, modified) VALUES (?, ?, ?, ?, ?, ?)`),
		record.ID, record.Name, record.Owner, record.Size, record.Uploaded.UTC(), record.Modified.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", lockbox.ErrFileExists, record.ID)
		}
		return fmt.Errorf("inserting file: %w", err)
	}

	if err := insertGrants(tx, record.ID, record.Permissions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLStore) FindFile(id string) (*lockbox.FileRecord, error) {
	record, err := findFile(s.db, id, "")
	if err != nil || record == nil {
		return record, err
	}

	grants, err := loadGrants(s.db, []string{id})
	if err != nil {
		return nil, err
	}
	record.Permissions = grants[id]
	return record, nil
}

func (s *SQLStore) ListFilesForUser(username string) ([]*lockbox.FileRecord, error) {
	var rows []fileRow
	err := s.db.Select(&rows, s.db.Rebind(`
		SELECT f.id, f.name, f.owner, f.size, f.uploaded, f.modified
		FROM files f
		WHERE f.owner = ?
		   OR EXISTS (SELECT 1 FROM file_grants g WHERE g.file_id = f.id AND g.username = ?)
		ORDER BY f.uploaded, f.id`), username, username)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if len(rows) == 0 {
		return []*lockbox.FileRecord{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	grants, err := loadGrants(s.db, ids)
	if err != nil {
		return nil, err
	}

	records := make([]*lockbox.FileRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
		records[i].Permissions = grants[row.ID]
	}
	return records, nil
}

// UpdateFile runs fn against the current record inside a transaction and
// writes the result back. On PostgreSQL the row is locked with FOR UPDATE;
// SQLite transactions are opened IMMEDIATE and so already exclude other writers.
func (s *SQLStore) UpdateFile(id string, fn func(record *lockbox.FileRecord) error) (*lockbox.FileRecord, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	lock := ""
	if s.dialect == migrations.DialectPostgres {
		lock = " FOR UPDATE"
	}

	record, err := findFile(tx, id, lock)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: file %s", lockbox.ErrNotFound, id)
	}

	grants, err := loadGrants(tx, []string{id})
	if err != nil {
		return nil, err
	}
	record.Permissions = grants[id]

	if err := fn(record); err != nil {
		return nil, err
	}

	_, err = tx.Exec(tx.Rebind(
		`UPDATE files SET name = ?, size = ?, modified = ? WHERE id = ?`),
		record.Name, record.Size, record.Modified.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating file: %w", err)
	}

	if _, err := tx.Exec(tx.Rebind(`DELETE FROM file_grants WHERE file_id = ?`), id); err != nil {
		return nil, fmt.Errorf("clearing grants: %w", err)
	}
	if err := insertGrants(tx, id, record.Permissions); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing file update: %w", err)
	}
	return record, nil
}

func (s *SQLStore) DeleteFile(id string) error {
	if _, err := s.db.Exec(s.db.Rebind(`DELETE FROM files WHERE id = ?`), id); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Event operations

func (s *SQLStore) AppendEvent(event *lockbox.AuditEvent) error {
	_, err := s.db.Exec(s.db.Rebind(
		`INSERT INTO audit_events (id, kind, detail, occurred_at, username) VALUES (?, ?, ?, ?, ?)`),
		event.ID, string(event.Kind), event.Detail, event.Time.UTC(), event.User,
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

func (s *SQLStore) ListEvents() ([]*lockbox.AuditEvent, error) {
	var rows []eventRow
	err := s.db.Select(&rows,
		`SELECT id, kind, detail, occurred_at, username FROM audit_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := make([]*lockbox.AuditEvent, len(rows))
	for i, row := range rows {
		events[i] = &lockbox.AuditEvent{
			ID:     row.ID,
			Kind:   lockbox.EventKind(row.Kind),
			Detail: row.Detail,
			Time:   row.OccurredAt,
			User:   row.Username,
		}
	}
	return events, nil
}

// helpers

func (r fileRow) toRecord() *lockbox.FileRecord {
	return &lockbox.FileRecord{
		ID:       r.ID,
		Name:     r.Name,
		Owner:    r.Owner,
		Size:     r.Size,
		Uploaded: r.Uploaded,
		Modified: r.Modified,
	}
}

func findFile(q sqlx.Queryer, id, suffix string) (*lockbox.FileRecord, error) {
	var row fileRow
	query := `SELECT id, name, owner, size, uploaded, modified FROM files WHERE id = ?` + suffix
	if err := sqlx.Get(q, &row, sqlx.Rebind(bindTypeOf(q), query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file: %w", err)
	}
	return row.toRecord(), nil
}

// loadGrants returns the grants of each file id in position order.
func loadGrants(q sqlx.Queryer, ids []string) (map[string][]lockbox.PermissionGrant, error) {
	query, args, err := sqlx.In(
		`SELECT file_id, position, username, mode FROM file_grants WHERE file_id IN (?) ORDER BY file_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("building grant query: %w", err)
	}

	var rows []grantRow
	if err := sqlx.Select(q, &rows, sqlx.Rebind(bindTypeOf(q), query), args...); err != nil {
		return nil, fmt.Errorf("loading grants: %w", err)
	}

	grants := make(map[string][]lockbox.PermissionGrant, len(ids))
	for _, row := range rows {
		grants[row.FileID] = append(grants[row.FileID], lockbox.PermissionGrant{
			User: row.Username,
			Mode: lockbox.Mode(row.Mode),
		})
	}
	return grants, nil
}

func insertGrants(tx *sqlx.Tx, fileID string, grants []lockbox.PermissionGrant) error {
	for i, g := range grants {
		_, err := tx.Exec(tx.Rebind(
			`INSERT INTO file_grants (file_id, position, username, mode) VALUES (?, ?, ?, ?)`),
			fileID, i, g.User, string(g.Mode),
		)
		if err != nil {
			return fmt.Errorf("inserting grant for %s: %w", g.User, err)
		}
	}
	return nil
}

func bindTypeOf(q sqlx.Queryer) int {
	switch v := q.(type) {
	case *sqlx.DB:
		return sqlx.BindType(v.DriverName())
	case *sqlx.Tx:
		return sqlx.BindType(v.DriverName())
	default:
		return sqlx.QUESTION
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
