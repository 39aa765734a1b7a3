// Package history stores what students ate so later prompts can account for it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"

	"canteenadvisor"
)

// DefaultSummaryLimit is how many entries are summarized for a prompt.
const DefaultSummaryLimit = 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Entry is one consumed dish.
type Entry struct {
	ID        int64                   `json:"id"`
	UserID    string                  `json:"user_id" validate:"required"`
	FoodID    string                  `json:"food_id" validate:"required"`
	FoodName  string                  `json:"food_name" validate:"required"`
	Canteen   string                  `json:"canteen"`
	MealSlot  canteenadvisor.MealSlot `json:"meal_slot" validate:"required"`
	Rating    *int                    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Notes     string                  `json:"notes,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// Summary renders the entry as a single prompt line.
func (e Entry) Summary() string {
	rating := "unrated"
	if e.Rating != nil {
		rating = strconv.Itoa(*e.Rating)
	}
	return fmt.Sprintf("%s (%s) - %s - rating: %s", e.FoodName, e.Canteen, e.MealSlot, rating)
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the history database at dbPath.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meal_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        food_id TEXT NOT NULL,
        food_name TEXT NOT NULL,
        canteen TEXT NOT NULL,
        meal_slot TEXT NOT NULL,
        rating INTEGER,
        notes TEXT NOT NULL DEFAULT '',
        eaten_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meal_history_user_time ON meal_history(user_id, eaten_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Record stores one entry. A zero Timestamp is set to the current time.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) (Entry, error) {
	if err := validate.Struct(e); err != nil {
		return Entry{}, fmt.Errorf("invalid history entry: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO meal_history (user_id, food_id, food_name, canteen, meal_slot, rating, notes, eaten_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, e.UserID, e.FoodID, e.FoodName, e.Canteen, string(e.MealSlot), nullableInt(e.Rating), e.Notes, e.Timestamp.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("failed to read history entry id: %w", err)
	}
	return e, nil
}

// RecordSelection stores every recommended item as eaten in one transaction.
func (s *SQLiteStore) RecordSelection(ctx context.Context, userID string, slot canteenadvisor.MealSlot, items []canteenadvisor.FoodItem) error {
	if len(items) == 0 {
		return nil
	}
	if userID == "" {
		return fmt.Errorf("invalid history entry: user id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	at := s.now().UnixNano()
	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO meal_history (user_id, food_id, food_name, canteen, meal_slot, eaten_at)
            VALUES (?, ?, ?, ?, ?, ?)
        `, userID, it.ID, it.Name, it.Canteen, string(slot), at)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit entries for the user, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, food_id, food_name, canteen, meal_slot, rating, notes, eaten_at
        FROM meal_history
        WHERE user_id = ?
        ORDER BY eaten_at DESC, id DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			slot    string
			rating  sql.NullInt64
			eatenAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.FoodID, &e.FoodName, &e.Canteen, &slot, &rating, &e.Notes, &eatenAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.MealSlot = canteenadvisor.MealSlot(slot)
		if rating.Valid {
			r := int(rating.Int64)
			e.Rating = &r
		}
		e.Timestamp = time.Unix(0, eatenAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// Summaries returns prompt lines for the user's most recent entries.
func (s *SQLiteStore) Summaries(ctx context.Context, userID string, limit int) ([]string, error) {
	entries, err := s.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Summary()
	}
	return out, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
