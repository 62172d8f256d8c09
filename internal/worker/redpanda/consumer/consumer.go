package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const (
	defaultPollFetchesTimeout = 15 * time.Second
	defaultPingTimeout        = 15 * time.Second
)

type Config struct {
	Brokers            []string      `yaml:"brokers"`
	ConsumerGroup      string        `yaml:"consumer_group"`
	Topics             []string      `yaml:"topics"`
	PollFetchesTimeout time.Duration `yaml:"poll_fetches_timeout"`
}

type Consumer struct {
	client             *kgo.Client
	pollFetchesTimeout time.Duration
	logger             zerolog.Logger
}

func NewConsumer(ctx context.Context, cfg Config, logger zerolog.Logger) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kgo new client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping brokers: %w", err)
	}

	consumer := &Consumer{
		client:             client,
		pollFetchesTimeout: cfg.PollFetchesTimeout,
		logger:             logger,
	}
	if consumer.pollFetchesTimeout <= 0 {
		consumer.pollFetchesTimeout = defaultPollFetchesTimeout
	}

	return consumer, nil
}

func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}

// Consume decodes each record into an EventBatch and hands it to eventChan.
// Records that do not decode are committed and skipped.
func (c *Consumer) Consume(ctx context.Context, eventChan chan<- domain.EventBatch, done <-chan struct{}) {
	c.consume(ctx, done, func(fetches kgo.Fetches) error {
		for iter := fetches.RecordIter(); !iter.Done(); {
			record := iter.Next()

			var batch domain.EventBatch
			if err := json.Unmarshal(record.Value, &batch); err != nil {
				c.logger.Error().Str("record", string(record.Value)).Err(err).Msg("failed to decode event batch")
			} else {
				select {
				case eventChan <- batch:
				case <-ctx.Done():
					return ctx.Err()
				case <-done:
					return errors.New("consumer stopped")
				}
			}

			if err := c.client.CommitRecords(ctx, record); err != nil {
				return fmt.Errorf("commit record: %w", err)
			}
		}
		return nil
	})
}

func (c *Consumer) consume(ctx context.Context, done <-chan struct{}, fn func(fetches kgo.Fetches) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
			fetchCtx, cancel := context.WithTimeout(ctx, c.pollFetchesTimeout)
			fetches := c.client.PollFetches(fetchCtx)
			cancel()

			if fetches.IsClientClosed() {
				c.logger.Warn().Msg("consumer client closed")
				return
			}

			if err := fetches.Err(); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}

				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}

				c.logger.Error().Err(err).Msg("stream poll fetches")
				continue
			}

			if err := fn(fetches); err != nil {
				c.logger.Warn().Err(err).Msg("fetch handling interrupted")
			}
		}
	}
}
