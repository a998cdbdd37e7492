package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const recordsTable = "poker_records"

var insertColumns = []string{
	"id", "owner_id", "date", "time_of_day", "description", "amount_cents", "category",
	"movement_type", "game_type", "buyin_tier", "room", "dedup_key", "imported_at",
}

const selectColumns = `id, owner_id, date, to_char(time_of_day, 'HH24:MI:SS'), description, amount_cents,
	category, movement_type, game_type, buyin_tier, room, dedup_key, imported_at`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, records []*ledger.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{recordsTable}, insertColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			var tier *string
			if r.Tiered() {
				t := string(*r.BuyinTier)
				tier = &t
			}
			return []any{
				r.ID, r.OwnerID, r.Date, timeOfDay(r.Time), r.Description, r.AmountCents,
				string(r.Category), string(r.MovementType), string(r.GameType), tier,
				r.Room, r.DedupKey, r.ImportedAt,
			}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("failed to insert records: %w", classify(err))
	}
	return n, nil
}

func (s *PostgresStore) ExistingKeys(ctx context.Context, owner uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT dedup_key FROM poker_records WHERE owner_id = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup keys: %w", classify(err))
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan dedup key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load dedup keys: %w", classify(err))
	}
	return keys, nil
}

func (s *PostgresStore) Exists(ctx context.Context, owner uuid.UUID, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM poker_records WHERE owner_id = $1 AND dedup_key = $2)`,
		owner, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", classify(err))
	}
	return exists, nil
}

func (s *PostgresStore) FindByFilter(ctx context.Context, owner uuid.UUID, f Filter) ([]*ledger.Record, error) {
	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + " FROM poker_records WHERE owner_id = $1")
	args := []any{owner}

	if f.Category != nil {
		args = append(args, string(*f.Category))
		fmt.Fprintf(&b, " AND category = $%d", len(args))
	}
	if len(f.MovementTypes) > 0 {
		types := make([]string, len(f.MovementTypes))
		for i, m := range f.MovementTypes {
			types[i] = string(m)
		}
		args = append(args, types)
		fmt.Fprintf(&b, " AND movement_type = ANY($%d)", len(args))
	}
	if f.GameType != nil {
		args = append(args, string(*f.GameType))
		fmt.Fprintf(&b, " AND game_type = $%d", len(args))
	}
	if f.UntieredOnly {
		b.WriteString(" AND buyin_tier IS NULL")
	}
	b.WriteString(" ORDER BY date, time_of_day NULLS FIRST, id")

	rows, err := s.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", classify(err))
	}
	defer rows.Close()

	var records []*ledger.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", classify(err))
	}
	return records, nil
}

func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, p Patch) error {
	if p.Empty() {
		return nil
	}

	sets := make([]string, 0, 2)
	args := []any{id}
	if p.BuyinTier != nil {
		args = append(args, string(*p.BuyinTier))
		sets = append(sets, fmt.Sprintf("buyin_tier = $%d", len(args)))
	}
	if p.GameType != nil {
		args = append(args, string(*p.GameType))
		sets = append(sets, fmt.Sprintf("game_type = $%d", len(args)))
	}

	query := "UPDATE poker_records SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteBy(ctx context.Context, owner uuid.UUID, room *string) (int64, error) {
	query := `DELETE FROM poker_records WHERE owner_id = $1`
	args := []any{owner}
	if room != nil {
		query += ` AND room = $2`
		args = append(args, *room)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT owner_id FROM poker_records ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", classify(err))
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func scanRecord(rows pgx.Rows) (*ledger.Record, error) {
	var (
		r                            ledger.Record
		tod, tier                    *string
		category, movement, gameType string
	)
	err := rows.Scan(
		&r.ID, &r.OwnerID, &r.Date, &tod, &r.Description, &r.AmountCents,
		&category, &movement, &gameType, &tier, &r.Room, &r.DedupKey, &r.ImportedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Category = ledger.Category(category)
	r.MovementType = ledger.MovementType(movement)
	r.GameType = ledger.GameType(gameType)
	if tier != nil {
		t := ledger.BuyinTier(*tier)
		r.BuyinTier = &t
	}
	if tod != nil {
		if ts, err := time.Parse("15:04:05", *tod); err == nil {
			ts = time.Date(0, time.January, 1, ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)
			r.Time = &ts
		}
	}
	return &r, nil
}

func timeOfDay(t *time.Time) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	us := (int64(t.Hour())*3600 + int64(t.Minute())*60 + int64(t.Second())) * int64(time.Second/time.Microsecond)
	return pgtype.Time{Microseconds: us, Valid: true}
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
