package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrDuplicateSession = errors.New("archive: session already archived")
	ErrNotFound         = errors.New("archive: session not found")
)

// Record is a finished session.
type Record struct {
	SessionID   string
	Result      string
	Termination string
	Difficulty  string
	PlayerColor string
	FinalFEN    string
	MovesSAN    []string
	PGN         string
	Opening     string
	EndedAt     time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS chess_sessions (
		session_id   TEXT PRIMARY KEY,
		result       TEXT NOT NULL,
		termination  TEXT NOT NULL,
		difficulty   TEXT NOT NULL,
		player_color TEXT NOT NULL,
		final_fen    TEXT NOT NULL,
		moves_san    JSONB NOT NULL DEFAULT '[]'::jsonb,
		pgn          TEXT NOT NULL,
		opening      TEXT NOT NULL DEFAULT '',
		ended_at     TIMESTAMPTZ NOT NULL
	)`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenDB opens a postgres pool and verifies it with a ping.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for archive")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create chess_sessions: %w", err)
	}
	return nil
}

// Save inserts rec once; a second save of the same session returns
// ErrDuplicateSession.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil archive record")
	}
	moves := rec.MovesSAN
	if moves == nil {
		moves = []string{}
	}
	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_sessions (
			session_id,
			result,
			termination,
			difficulty,
			player_color,
			final_fen,
			moves_san,
			pgn,
			opening,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING session_id`

	var id sql.NullString
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.SessionID,
		rec.Result,
		rec.Termination,
		rec.Difficulty,
		rec.PlayerColor,
		rec.FinalFEN,
		movesJSON,
		rec.PGN,
		rec.Opening,
		rec.EndedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return ErrDuplicateSession
	}
	if err != nil {
		return fmt.Errorf("insert chess session: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, sessionID string) (*Record, error) {
	const query = `
		SELECT
			session_id,
			result,
			termination,
			difficulty,
			player_color,
			final_fen,
			moves_san,
			pgn,
			opening,
			ended_at
		FROM chess_sessions
		WHERE session_id = $1`

	var (
		rec       Record
		movesJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.Result,
		&rec.Termination,
		&rec.Difficulty,
		&rec.PlayerColor,
		&rec.FinalFEN,
		&movesJSON,
		&rec.PGN,
		&rec.Opening,
		&rec.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chess session: %w", err)
	}
	if len(movesJSON) > 0 {
		if err := json.Unmarshal(movesJSON, &rec.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san: %w", err)
		}
	}
	return &rec, nil
}
