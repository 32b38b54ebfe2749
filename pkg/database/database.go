// Package database provides the opaque document loader/persister the core
// consumes (spec §6: "Document file I/O: out of scope; the core consumes an
// opaque loader"). It is demo/CLI wiring, not a core dependency: nothing in
// internal/document touches *sql.DB.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// PersistedDocument is a document row, extended with the epoch/seq pair a
// restarted process needs to rehydrate a syncmgr.docEntry alongside the
// document.Document itself.
type PersistedDocument struct {
	URI          string
	Text         string
	LanguageHint *string
	OTP          *string
	Epoch        uint64
	Seq          uint64
}

// Database wraps a SQLite connection.
type Database struct {
	db *sql.DB
}

// New opens a SQLite connection and runs migrations.
func New(uri string) (*Database, error) {
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Load retrieves a document and its sync state by uri. Returns (nil, nil)
// if uri has never been stored.
func (d *Database) Load(uri string) (*PersistedDocument, error) {
	var doc PersistedDocument
	var languageHint, otp sql.NullString

	err := d.db.QueryRow(
		"SELECT uri, text, language_hint, otp FROM document WHERE uri = ?",
		uri,
	).Scan(&doc.URI, &doc.Text, &languageHint, &otp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}

	if languageHint.Valid {
		doc.LanguageHint = &languageHint.String
	}
	if otp.Valid {
		doc.OTP = &otp.String
	}

	err = d.db.QueryRow(
		"SELECT epoch, seq FROM sync_state WHERE uri = ?",
		uri,
	).Scan(&doc.Epoch, &doc.Seq)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query sync_state: %w", err)
	}

	return &doc, nil
}

// Store saves a document and its sync state (insert or update both rows in
// one transaction).
func (d *Database) Store(doc *PersistedDocument) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO document (uri, text, language_hint, otp, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(uri) DO UPDATE SET
			text = excluded.text,
			language_hint = excluded.language_hint,
			otp = excluded.otp,
			updated_at = excluded.updated_at
	`, doc.URI, doc.Text, doc.LanguageHint, doc.OTP)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sync_state (uri, epoch, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			epoch = excluded.epoch,
			seq = excluded.seq
	`, doc.URI, doc.Epoch, doc.Seq)
	if err != nil {
		return fmt.Errorf("upsert sync_state: %w", err)
	}

	return tx.Commit()
}

// Count returns the total number of documents in the database.
func (d *Database) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM document").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Delete removes a document and its sync state.
func (d *Database) Delete(uri string) error {
	if _, err := d.db.Exec("DELETE FROM sync_state WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("delete sync_state: %w", err)
	}
	_, err := d.db.Exec("DELETE FROM document WHERE uri = ?", uri)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// StaleBefore returns the uris of documents not updated since cutoffUnix,
// for the demo cleanup task (spec §1 Non-goals keep expiry/cleanup out of
// the core; this is the same sweep the teacher's cleaner performs).
func (d *Database) StaleBefore(cutoffUnix int64) ([]string, error) {
	rows, err := d.db.Query("SELECT uri FROM document WHERE updated_at < ?", cutoffUnix)
	if err != nil {
		return nil, fmt.Errorf("query stale: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan stale: %w", err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}
