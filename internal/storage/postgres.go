package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/tumelo/waflow/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStorageWithDB wraps an existing connection; used by tests.
func NewPostgresStorageWithDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) UpsertContact(ctx context.Context, upd models.ContactUpdate) error {
	var state *string
	if upd.State != nil {
		v := string(*upd.State)
		state = &v
	}

	query := `
		INSERT INTO contacts (jid, name, location, last_message, conversation_state, next_followup, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, 'active'), $6, NOW())
		ON CONFLICT (jid) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, contacts.name),
			location = COALESCE(EXCLUDED.location, contacts.location),
			last_message = EXCLUDED.last_message,
			conversation_state = COALESCE($5, contacts.conversation_state),
			next_followup = EXCLUDED.next_followup,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, upd.JID, upd.Name, upd.Location, upd.LastMessage, state, upd.NextFollowup); err != nil {
		return fmt.Errorf("error upserting contact: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetContact(ctx context.Context, jid string) (*models.Contact, error) {
	query := `
		SELECT jid, name, location, last_message, updated_at, bot_enabled, conversation_state, next_followup
		FROM contacts
		WHERE jid = $1`

	c, err := scanContact(s.db.QueryRowContext(ctx, query, jid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying contact: %w", err)
	}
	return c, nil
}

func (s *PostgresStorage) SetBotEnabled(ctx context.Context, jid string, enabled bool) error {
	query := `
		INSERT INTO contacts (jid, bot_enabled) VALUES ($1, $2)
		ON CONFLICT (jid) DO UPDATE SET bot_enabled = $2, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, jid, enabled); err != nil {
		return fmt.Errorf("error setting bot_enabled: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SetConversationState(ctx context.Context, jid string, state models.ConversationState) error {
	// Leaving the waiting state invalidates any pending follow-up.
	query := `
		INSERT INTO contacts (jid, conversation_state) VALUES ($1, $2)
		ON CONFLICT (jid) DO UPDATE SET
			conversation_state = $2,
			next_followup = CASE WHEN $2 = 'waiting' THEN contacts.next_followup ELSE NULL END,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, jid, string(state)); err != nil {
		return fmt.Errorf("error setting conversation state: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SetNextFollowup(ctx context.Context, jid string, at *time.Time) error {
	query := `
		INSERT INTO contacts (jid, next_followup) VALUES ($1, $2)
		ON CONFLICT (jid) DO UPDATE SET next_followup = $2, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, jid, at); err != nil {
		return fmt.Errorf("error setting next followup: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DueFollowups(ctx context.Context, cutoff time.Time) ([]*models.Contact, error) {
	query := `
		SELECT jid, name, location, last_message, updated_at, bot_enabled, conversation_state, next_followup
		FROM contacts
		WHERE bot_enabled
		  AND conversation_state = 'waiting'
		  AND next_followup IS NOT NULL
		  AND next_followup <= $1
		ORDER BY next_followup`

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error querying due followups: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

func (s *PostgresStorage) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	query := `
		SELECT jid, name, location, last_message, updated_at, bot_enabled, conversation_state, next_followup
		FROM contacts
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	var state string
	err := row.Scan(
		&c.JID,
		&c.Name,
		&c.Location,
		&c.LastMessage,
		&c.UpdatedAt,
		&c.BotEnabled,
		&state,
		&c.NextFollowup,
	)
	if err != nil {
		return nil, err
	}
	c.State = models.ConversationState(state)
	return c, nil
}

func collectContacts(rows *sql.Rows) ([]*models.Contact, error) {
	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}
