package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/pkg/retry"
	"github.com/lovoo/goka"
)

var _ port.EntryProducer = (*EntryEmitter)(nil)

const (
	emitAttempts = 3
	emitDelay    = 200 * time.Millisecond
)

type gokaEmitter interface {
	EmitSync(key string, msg any) error
	Finish() error
}

// A EntryEmitterConfig used for setup [EntryEmitter].
//
// Every topic needs an encoder registered under its own subject.
// TLSConfig is optional, the rest is required.
type EntryEmitterConfig struct {
	SeedBrokers []string
	Topics      map[domain.Collection]string
	Encoders    map[domain.Collection]Serde
	TLSConfig   *tls.Config
}

// An EntryEmitter writes upserts and tombstones to the collection
// topics, keyed by entry id.
type EntryEmitter struct {
	opPrefix string
	emitters map[domain.Collection]gokaEmitter
	retry    retry.RetryConfig
}

func NewEntryEmitter(config EntryEmitterConfig) (*EntryEmitter, error) {
	const op = "NewEntryEmitter"

	if len(config.SeedBrokers) == 0 || len(config.Topics) == 0 {
		return nil, opErr(ErrTooFewOpts, op)
	}
	for c := range config.Topics {
		if config.Encoders[c] == nil {
			return nil, opErr(fmt.Errorf("%w: no encoder for %q", ErrTooFewOpts, c), op)
		}
	}

	var opts []goka.EmitterOption
	if config.TLSConfig != nil {
		cfg := goka.DefaultConfig()
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = config.TLSConfig
		opts = append(opts, goka.WithEmitterProducerBuilder(
			goka.ProducerBuilderWithConfig(cfg),
		))
	}

	emitters := make(map[domain.Collection]gokaEmitter, len(config.Topics))
	for c, topic := range config.Topics {
		ge, err := goka.NewEmitter(
			config.SeedBrokers,
			goka.Stream(topic),
			newEntryCodec(config.Encoders[c]),
			opts...,
		)
		if err != nil {
			for _, e := range emitters {
				_ = e.Finish()
			}
			return nil, opErr(fmt.Errorf("topic %q: %w", topic, err), op)
		}
		emitters[c] = ge
	}

	return newEntryEmitter(emitters), nil
}

func newEntryEmitter(emitters map[domain.Collection]gokaEmitter) *EntryEmitter {
	return &EntryEmitter{
		opPrefix: "EntryEmitter",
		emitters: emitters,
		retry: retry.RetryConfig{
			MaxAttempts: emitAttempts,
			Backoff:     retry.ExponentialBackoff(emitDelay),
			ShouldRetry: func(err error) bool {
				return !errors.Is(err, ErrInvalidValueType)
			},
		},
	}
}

func (e *EntryEmitter) ProduceEntry(ctx context.Context, v domain.Entry) error {
	const op = "ProduceEntry"

	if err := e.emit(ctx, v.Collection, v.ID, entryToSchemaV1(v)); err != nil {
		return opErr(err, e.opPrefix, op)
	}
	return nil
}

// ProduceDeletion emits a tombstone for id.
func (e *EntryEmitter) ProduceDeletion(
	ctx context.Context, c domain.Collection, id string,
) error {
	const op = "ProduceDeletion"

	if err := e.emit(ctx, c, id, nil); err != nil {
		return opErr(err, e.opPrefix, op)
	}
	return nil
}

func (e *EntryEmitter) emit(
	ctx context.Context, c domain.Collection, key string, msg any,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ge, ok := e.emitters[c]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCollection, c)
	}
	return retry.Do(ctx, e.retry, func() error {
		return ge.EmitSync(key, msg)
	})
}

func (e *EntryEmitter) Close() {
	const op = "Close"
	log := slog.With("op", makeOp(e.opPrefix, op))

	log.Info("closing emitter...")
	for c, ge := range e.emitters {
		if err := ge.Finish(); err != nil {
			log.Error(
				"failed to finish gracefully", "collection", c, "err", err,
			)
		}
	}
	log.Info("emitter is closed")
}
