package archive

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ieee0824/phonetree/internal/kio"
)

const createRecordsTable = `CREATE TABLE IF NOT EXISTS records (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
)`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

func openExistingDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return openDB(path)
}

func encodeBinary[T any](codec Codec[T], v T) ([]byte, error) {
	var buf bytes.Buffer
	kw := kio.NewWriter(&buf, true)
	codec.Write(kw, v)
	if err := kw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlob[T any](codec Codec[T], blob []byte) (T, error) {
	var zero T
	kr, err := kio.NewReader(bytes.NewReader(blob))
	if err != nil {
		return zero, err
	}
	v, err := codec.Read(kr)
	if err != nil {
		return zero, err
	}
	if !kr.AtEOF() {
		return zero, fmt.Errorf("%w: trailing data after %s", kio.ErrFormat, codec.Name)
	}
	return v, nil
}

type sqliteWriter[T any] struct {
	db    *sql.DB
	tx    *sql.Tx
	stmt  *sql.Stmt
	codec Codec[T]
	lock  *flock.Flock
}

func createSQLite[T any](path string, codec Codec[T]) (*sqliteWriter[T], error) {
	lock, err := lockArchive(path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*sqliteWriter[T], error) {
		_ = lock.Unlock()
		return nil, err
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fail(fmt.Errorf("truncate archive: %w", err))
		}
	}
	db, err := openDB(path)
	if err != nil {
		return fail(err)
	}
	if _, err := db.Exec(createRecordsTable); err != nil {
		_ = db.Close()
		return fail(fmt.Errorf("create records table: %w", err))
	}
	tx, err := db.Begin()
	if err != nil {
		_ = db.Close()
		return fail(fmt.Errorf("begin: %w", err))
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO records (key, value) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return fail(fmt.Errorf("prepare insert: %w", err))
	}
	return &sqliteWriter[T]{db: db, tx: tx, stmt: stmt, codec: codec, lock: lock}, nil
}

func (w *sqliteWriter[T]) Write(key string, value T) error {
	if err := validKey(key); err != nil {
		return err
	}
	blob, err := encodeBinary(w.codec, value)
	if err != nil {
		return fmt.Errorf("encode %s record %q: %w", w.codec.Name, key, err)
	}
	if _, err := w.stmt.Exec(key, blob); err != nil {
		return fmt.Errorf("insert record %q: %w", key, err)
	}
	return nil
}

func (w *sqliteWriter[T]) Close() error {
	err := w.stmt.Close()
	if cerr := w.tx.Commit(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("commit: %w", cerr))
	}
	return errors.Join(err, w.db.Close(), w.lock.Unlock())
}

type sqliteReader[T any] struct {
	path  string
	db    *sql.DB
	rows  *sql.Rows
	codec Codec[T]
	key   string
	value T
	err   error
}

func openSQLiteSequential[T any](path string, codec Codec[T]) (*sqliteReader[T], error) {
	db, err := openExistingDB(path)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT key, value FROM records ORDER BY rowid`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("query records: %w", err)
	}
	return &sqliteReader[T]{path: path, db: db, rows: rows, codec: codec}, nil
}

func (r *sqliteReader[T]) Next() bool {
	if r.err != nil || !r.rows.Next() {
		if r.err == nil {
			r.err = r.rows.Err()
		}
		return false
	}
	var (
		key  string
		blob []byte
	)
	if err := r.rows.Scan(&key, &blob); err != nil {
		r.err = fmt.Errorf("%s: scan record: %w", r.path, err)
		return false
	}
	v, err := decodeBlob(r.codec, blob)
	if err != nil {
		r.err = fmt.Errorf("%s: record %q: %w", r.path, key, err)
		return false
	}
	r.key, r.value = key, v
	return true
}

func (r *sqliteReader[T]) Key() string { return r.key }
func (r *sqliteReader[T]) Value() T    { return r.value }
func (r *sqliteReader[T]) Err() error  { return r.err }

func (r *sqliteReader[T]) Close() error {
	return errors.Join(r.rows.Close(), r.db.Close())
}

type sqliteTable[T any] struct {
	path  string
	db    *sql.DB
	stmt  *sql.Stmt
	codec Codec[T]
}

func openSQLiteRandomAccess[T any](path string, codec Codec[T]) (*sqliteTable[T], error) {
	db, err := openExistingDB(path)
	if err != nil {
		return nil, err
	}
	stmt, err := db.Prepare(`SELECT value FROM records WHERE key = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	return &sqliteTable[T]{path: path, db: db, stmt: stmt, codec: codec}, nil
}

func (t *sqliteTable[T]) Value(key string) (T, bool, error) {
	var (
		zero T
		blob []byte
	)
	err := t.stmt.QueryRow(key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%s: lookup %q: %w", t.path, key, err)
	}
	v, err := decodeBlob(t.codec, blob)
	if err != nil {
		return zero, false, fmt.Errorf("%s: record %q: %w", t.path, key, err)
	}
	return v, true, nil
}

func (t *sqliteTable[T]) Close() error {
	return errors.Join(t.stmt.Close(), t.db.Close())
}
