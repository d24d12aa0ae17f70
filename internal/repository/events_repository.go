package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zhirschtritt/deals/internal/events"
)

// Execer is the part of *pgxpool.Pool the events repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var _ events.EventRepository = new(DBEventsRepository)

type DBEventsRepository struct {
	db Execer
}

func NewDBEventsRepository(db Execer) *DBEventsRepository {
	return &DBEventsRepository{
		db: db,
	}
}

const eventColumnCount = 5

func (r *DBEventsRepository) Insert(ctx context.Context, event events.Event) error {
	return r.BulkInsert(ctx, []events.Event{event})
}

// BulkInsert writes events in one statement. Events already stored (same id)
// are skipped so that replays from the WAL are harmless.
func (r *DBEventsRepository) BulkInsert(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	values := make([]string, len(evts))
	args := make([]any, 0, len(evts)*eventColumnCount)

	for i, event := range evts {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		n := i * eventColumnCount
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, event.ID, event.Type, event.DealID, event.OccurredAt, data)
	}

	query := `
		INSERT INTO deal_events (id, type, deal_id, occurred_at, data)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert deal events: %w", err)
	}

	return nil
}
