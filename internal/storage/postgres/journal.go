package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/gameserver"
)

// ErrMatchNotFound is returned when a match lookup yields no results.
var ErrMatchNotFound = errors.New("match not found")

// ErrTurnRecorded is returned when a turn is journaled twice.
var ErrTurnRecorded = errors.New("turn already recorded")

// MatchRecord is one journaled game.
type MatchRecord struct {
	ID         uuid.UUID
	Seed       uint64
	Scenario   string
	StartedAt  time.Time
	FinishedAt *time.Time
	// Winner is empty while the match runs or when it ended without one.
	Winner world.Faction
}

// Finished reports whether the match reached game over.
func (m MatchRecord) Finished() bool { return m.FinishedAt != nil }

// TurnRecord is one resolved turn: what went in, what happened and the
// digest of the resulting snapshot.
type TurnRecord struct {
	Turn       int
	Input      turn.Input
	Events     []event.Event
	Digest     string
	RecordedAt time.Time
}

// JournalRepository stores matches and their turns.
type JournalRepository struct {
	db *pgxpool.Pool
}

var _ gameserver.Journal = (*JournalRepository)(nil)

// NewJournalRepository creates a JournalRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the journal schema applied.
func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

// StartMatch records a new match.
//
// Postcondition: the match exists with no turns and no winner.
func (r *JournalRepository) StartMatch(ctx context.Context, id uuid.UUID, seed uint64, scenario string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO matches (id, seed, scenario) VALUES ($1, $2, $3)`,
		id, int64(seed), scenario,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// RecordTurn appends turn turnNo to match id.
//
// Postcondition: Returns ErrMatchNotFound for an unknown match and
// ErrTurnRecorded if turnNo was already journaled.
func (r *JournalRepository) RecordTurn(ctx context.Context, id uuid.UUID, turnNo int, in turn.Input, events []event.Event, digest string) error {
	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding turn input: %w", err)
	}
	if events == nil {
		events = []event.Event{}
	}
	evs, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encoding turn events: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO turns (match_id, turn, input, events, digest)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, turnNo, input, evs, digest,
	)
	switch {
	case err == nil:
		return nil
	case isSQLState(err, "23505"):
		return ErrTurnRecorded
	case isSQLState(err, "23503"):
		return ErrMatchNotFound
	default:
		return fmt.Errorf("inserting turn: %w", err)
	}
}

// FinishMatch stamps the match as over. Neutral records a game without a winner.
//
// Postcondition: Returns ErrMatchNotFound if no match has id.
func (r *JournalRepository) FinishMatch(ctx context.Context, id uuid.UUID, winner world.Faction) error {
	var w *string
	if winner != world.Neutral {
		s := string(winner)
		w = &s
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE matches SET finished_at = NOW(), winner = $2 WHERE id = $1`,
		id, w,
	)
	if err != nil {
		return fmt.Errorf("finishing match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// LoadMatch retrieves a match by id.
//
// Postcondition: Returns ErrMatchNotFound if no match has id.
func (r *JournalRepository) LoadMatch(ctx context.Context, id uuid.UUID) (MatchRecord, error) {
	rec, err := scanMatch(r.db.QueryRow(ctx,
		`SELECT id, seed, scenario, started_at, finished_at, winner
		 FROM matches WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchRecord{}, ErrMatchNotFound
		}
		return MatchRecord{}, fmt.Errorf("querying match: %w", err)
	}
	return rec, nil
}

// ListMatches returns up to limit matches, most recently started first.
func (r *JournalRepository) ListMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, seed, scenario, started_at, finished_at, winner
		 FROM matches ORDER BY started_at DESC, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTurns returns every journaled turn of match id in turn order.
//
// Postcondition: Returns ErrMatchNotFound if no match has id.
func (r *JournalRepository) ListTurns(ctx context.Context, id uuid.UUID) ([]TurnRecord, error) {
	if _, err := r.LoadMatch(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT turn, input, events, digest, recorded_at
		 FROM turns WHERE match_id = $1 ORDER BY turn`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var (
			rec         TurnRecord
			input, evts []byte
		)
		if err := rows.Scan(&rec.Turn, &input, &evts, &rec.Digest, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return nil, fmt.Errorf("decoding turn %d input: %w", rec.Turn, err)
		}
		if err := json.Unmarshal(evts, &rec.Events); err != nil {
			return nil, fmt.Errorf("decoding turn %d events: %w", rec.Turn, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanMatch(row pgx.Row) (MatchRecord, error) {
	var (
		rec    MatchRecord
		seed   int64
		winner *string
	)
	if err := row.Scan(&rec.ID, &seed, &rec.Scenario, &rec.StartedAt, &rec.FinishedAt, &winner); err != nil {
		return MatchRecord{}, err
	}
	rec.Seed = uint64(seed)
	if winner != nil {
		rec.Winner = world.Faction(*winner)
	}
	return rec, nil
}

// isSQLState reports whether err carries the given PostgreSQL SQLSTATE.
func isSQLState(err error, code string) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == code
	}
	return false
}
