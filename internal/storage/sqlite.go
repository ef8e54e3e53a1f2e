package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/kaiwa/internal/chat"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding conversations, messages, and the
// learned user profile. It implements the same operations as MemoryStore
// so sessions survive process restarts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "kaiwa.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Conversations ---

func (s *Store) CreateConversation(c Conversation) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Title, c.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetConversation(id string) (Conversation, error) {
	var c Conversation
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &createdAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

// ListConversations returns all conversations, most recently created first.
func (s *Store) ListConversations() ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, title, created_at FROM conversations
		ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Title, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *Store) SetTitle(id, title string) error {
	res, err := s.db.Exec(`UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Messages ---

// AppendMessage appends a message at the end of the conversation's
// transcript. The sequence number is assigned inside a transaction so
// transcript order is insertion order even across restarts.
func (s *Store) AppendMessage(conversationID string, m Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	var next int
	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&next); err != nil {
		return fmt.Errorf("assigning sequence: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, conversationID, next, m.Role, m.Content, m.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Messages returns the conversation's transcript in insertion order.
func (s *Store) Messages(conversationID string) ([]Message, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(`
		SELECT id, role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY seq ASC`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- User Profile ---

// ReplaceProfile swaps the stored profile for attrs in one transaction.
// The previous attributes are dropped entirely.
func (s *Store) ReplaceProfile(attrs []chat.ProfileAttribute) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_profile`); err != nil {
		return err
	}
	for i, a := range attrs {
		if _, err := tx.Exec(`
			INSERT INTO user_profile (pos, key, value, confidence) VALUES (?, ?, ?, ?)`,
			i, a.Key, a.Value, a.Confidence,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetProfile returns the stored profile attributes in their original order.
func (s *Store) GetProfile() ([]chat.ProfileAttribute, error) {
	rows, err := s.db.Query(`SELECT key, value, confidence FROM user_profile ORDER BY pos ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []chat.ProfileAttribute
	for rows.Next() {
		var a chat.ProfileAttribute
		if err := rows.Scan(&a.Key, &a.Value, &a.Confidence); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// DeleteProfileKey removes every stored attribute with the given key.
// Deleting an absent key is a no-op.
func (s *Store) DeleteProfileKey(key string) error {
	_, err := s.db.Exec(`DELETE FROM user_profile WHERE key = ?`, key)
	return err
}
