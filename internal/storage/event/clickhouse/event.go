package clickhouse

import (
	"context"
	"fmt"

	"github.com/leshachaplin/mouselog/internal/domain"
)

// StoreEvents inserts one batch. It matches the worker pool execute func.
func (c *Clickhouse) StoreEvents(ctx context.Context, batch domain.EventBatch) error {
	events := eventsFromBatch(batch)
	if len(events) == 0 {
		return nil
	}

	insert, err := c.conn.PrepareBatch(ctx, `INSERT INTO `+table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := range events {
		if err := insert.AppendStruct(&events[i]); err != nil {
			return fmt.Errorf("append event %s: %w", events[i].EventID, err)
		}
	}
	if err := insert.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

type SessionSummary struct {
	SessionID string  `ch:"session_id"`
	Events    uint64  `ch:"events"`
	Distance  float64 `ch:"distance"`
}

// SessionSummary reports how many events a session produced and how far the
// pointer travelled.
func (c *Clickhouse) SessionSummary(ctx context.Context, sessionID string) (SessionSummary, error) {
	var summary SessionSummary
	row := c.conn.QueryRow(ctx, `SELECT session_id, count() AS events, sum(ifNull(distance, 0)) AS distance
		FROM `+table+` WHERE session_id = ? GROUP BY session_id`, sessionID)
	if err := row.ScanStruct(&summary); err != nil {
		return SessionSummary{}, fmt.Errorf("session summary: %w", err)
	}
	return summary, nil
}
