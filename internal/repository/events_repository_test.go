package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/deals/internal/events"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestDBEventsRepository_BulkInsert(t *testing.T) {
	ctx := context.Background()
	occurredAt := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)

	evts := []events.Event{
		{ID: "e1", Type: events.TypeDealCreated, DealID: 1, OccurredAt: occurredAt, Data: map[string]interface{}{"name": "Ada"}},
		{ID: "e2", Type: events.TypeDealDeleted, DealID: 1, OccurredAt: occurredAt},
	}

	t.Run("one statement for the whole batch", func(t *testing.T) {
		db := &fakeExecer{}
		repo := NewDBEventsRepository(db)

		require.NoError(t, repo.BulkInsert(ctx, evts))
		require.Len(t, db.calls, 1)

		call := db.calls[0]
		assert.Contains(t, call.sql, "INSERT INTO deal_events (id, type, deal_id, occurred_at, data)")
		assert.Contains(t, call.sql, "($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)")
		assert.Contains(t, call.sql, "ON CONFLICT (id) DO NOTHING")
		require.Len(t, call.args, 10)

		assert.Equal(t, "e1", call.args[0])
		assert.Equal(t, events.TypeDealCreated, call.args[1])
		assert.Equal(t, int64(1), call.args[2])
		assert.Equal(t, occurredAt, call.args[3])
		assert.JSONEq(t, `{"name":"Ada"}`, string(call.args[4].([]byte)))

		assert.Equal(t, "e2", call.args[5])
		assert.JSONEq(t, `null`, string(call.args[9].([]byte)))
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		db := &fakeExecer{}
		repo := NewDBEventsRepository(db)

		require.NoError(t, repo.BulkInsert(ctx, nil))
		assert.Empty(t, db.calls)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		storeErr := errors.New("relation \"deal_events\" does not exist")
		repo := NewDBEventsRepository(&fakeExecer{err: storeErr})

		err := repo.BulkInsert(ctx, evts)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("unmarshalable data", func(t *testing.T) {
		db := &fakeExecer{}
		repo := NewDBEventsRepository(db)

		bad := events.Event{ID: "e3", Type: events.TypeDealUpdated, Data: map[string]interface{}{"ch": make(chan int)}}
		err := repo.Insert(ctx, bad)

		var unsupported *json.UnsupportedTypeError
		assert.ErrorAs(t, err, &unsupported)
		assert.Empty(t, db.calls)
	})
}
