// Package auth owns the credential store: the one piece of shared state
// touched by both the dispatch goroutine and the admin control surface,
// so it serializes its own access rather than relying on the single-writer
// guarantee the rest of core/ depends on.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/collabedit/cte-server/internal/wire"
)

// ErrUserNotExist is returned by Check and Remove when name has no entry.
var ErrUserNotExist = errors.New("auth: user does not exist")

// ErrWrongPassword is returned by Check when the stored hash doesn't match.
var ErrWrongPassword = errors.New("auth: wrong password")

// ErrUserAlreadyExist is returned by Create when name is already present.
var ErrUserAlreadyExist = errors.New("auth: user already exists")

// AlreadyInstantiated guards the package-level credential store handle
// against being opened twice. It's the one process-wide singleton this
// repository has: two *sql.DB handles open on the same SQLite file
// would each pool connections independently, defeating the
// single-connection serialization Open relies on.
type AlreadyInstantiated struct {
	What string
}

func (e *AlreadyInstantiated) Error() string {
	return fmt.Sprintf("auth: %s already instantiated", e.What)
}

var (
	instanceMu sync.Mutex
	instance   *SQLiteStore
)

// Store checks and manages user credentials. name -> (user id, password
// hash) pairs, each row created once via Create and never mutated except
// through Remove.
type Store interface {
	// Check returns the user id for name if password_hash matches the
	// stored hash. Returns ErrUserNotExist or ErrWrongPassword otherwise.
	Check(name string, passwordHash wire.Hash) (int32, error)

	// Create adds name with passwordHash, assigning it a fresh user id.
	// Returns ErrUserAlreadyExist if name is already present.
	Create(name string, passwordHash wire.Hash) error

	// Remove deletes name's entry. Returns ErrUserNotExist if absent.
	Remove(name string) error

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL
);
`

// SQLiteStore is a Store backed by SQLite via database/sql, matching the
// original's single shared Database handle but concretely implemented
// instead of stubbed.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the SQLite database at path and ensures its
// schema exists. It may be called only once per process: a second call
// returns AlreadyInstantiated rather than a second handle onto the
// same file.
func Open(path string) (*SQLiteStore, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return nil, &AlreadyInstantiated{What: "credential store"}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("auth: open %s: %w", path, err)
	}
	// The credential store is serialized by its own mutex, not by
	// SQLite connection pooling; pin the pool to one connection so
	// writes never interleave at the driver level either.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("auth: migrate: %w", err)
	}

	instance = &SQLiteStore{db: db}
	return instance, nil
}

func (s *SQLiteStore) Check(name string, passwordHash wire.Hash) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int32
	var stored []byte
	row := s.db.QueryRow(`SELECT id, password_hash FROM users WHERE name = ?`, name)
	if err := row.Scan(&id, &stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotExist
		}
		return 0, fmt.Errorf("auth: check %s: %w", name, err)
	}
	if len(stored) != len(passwordHash) || string(stored) != string(passwordHash[:]) {
		return 0, ErrWrongPassword
	}
	return id, nil
}

func (s *SQLiteStore) Create(name string, passwordHash wire.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO users (name, password_hash) VALUES (?, ?)`, name, passwordHash[:])
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrUserAlreadyExist
		}
		return fmt.Errorf("auth: create %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM users WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("auth: remove %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("auth: remove %s: %w", name, err)
	}
	if n == 0 {
		return ErrUserNotExist
	}
	return nil
}

// Close closes the underlying database handle and frees the package's
// singleton slot, so a later Open is not rejected by AlreadyInstantiated.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	instanceMu.Lock()
	if instance == s {
		instance = nil
	}
	instanceMu.Unlock()

	return s.db.Close()
}

// isUniqueConstraintErr reports whether err stems from the users.name
// UNIQUE constraint.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
