package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"
)

const table = "mouse_events"

type Clickhouse struct {
	conn   driver.Conn
	logger zerolog.Logger
}

func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Clickhouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.DB,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Debugf: func(format string, v ...any) {
			logger.Debug().Msgf(format, v...)
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Duration(10) * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(ctx); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			logger.Error().Int32("code", exception.Code).Str("stack", exception.StackTrace).Msg(exception.Message)
		}
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &Clickhouse{
		conn:   conn,
		logger: logger,
	}, nil
}

func (c *Clickhouse) Close() error {
	return c.conn.Close()
}

func (c *Clickhouse) Migrate(ctx context.Context) error {
	return c.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+table+`
		(
			server_time     DateTime64(3),
			ip              String,
			session_id      String,
			event_id        String,
			parent_event_id Nullable(String),
			event_type      LowCardinality(String),
			timestamp       DateTime64(3),
			x               Int32,
			y               Int32,
			button          Nullable(String),
			buttons         Nullable(UInt16),
			scroll_x        Nullable(Float64),
			scroll_y        Nullable(Float64),
			target_tag      Nullable(String),
			target_id       Nullable(String),
			target_class    Nullable(String),
			target_text     Nullable(String),
			velocity_x      Nullable(Float64),
			velocity_y      Nullable(Float64),
			distance        Nullable(Float64),
			key             Nullable(String),
			code            Nullable(String),
			ctrl_key        Nullable(Bool),
			shift_key       Nullable(Bool),
			alt_key         Nullable(Bool),
			meta_key        Nullable(Bool),
			viewport_width  Nullable(UInt32),
			viewport_height Nullable(UInt32),
			metadata        Nullable(String)
		) Engine = MergeTree
		ORDER BY (session_id, timestamp)`)
}
