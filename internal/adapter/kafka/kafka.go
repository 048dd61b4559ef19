package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
	ErrUnsupportedQuery = errors.New("unsupported feed query")
)

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

// A FeedObserver is told about every snapshot published and every
// failure reported by a [CollectionFeed].
type FeedObserver interface {
	ObserveDelivery(c domain.Collection, entries int)
	ObserveFailure(c domain.Collection)
}

type nopObserver struct{}

func (nopObserver) ObserveDelivery(domain.Collection, int) {}
func (nopObserver) ObserveFailure(domain.Collection)       {}

func newConsumerClient(
	seedBrokers []string, topic string, tlsConfig *tls.Config,
) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(seedBrokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if tlsConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}
	return kgo.NewClient(opts...)
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

// entryCodec used for serde [schema.EntryV1] in goka.
type entryCodec struct {
	serde Serde
}

func newEntryCodec(s Serde) entryCodec {
	return entryCodec{s}
}

func (c entryCodec) Encode(v any) ([]byte, error) {
	const op = "entryCodec.Encode"
	if _, ok := v.(schema.EntryV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c entryCodec) Decode(data []byte) (any, error) {
	const op = "entryCodec.Decode"
	var s schema.EntryV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

func entryToSchemaV1(v domain.Entry) (s schema.EntryV1) {
	s.ID = v.ID
	s.Name = v.Name
	s.Description = v.Description
	s.Price = decimalToSchema(v.Price)
	s.OriginalPrice = decimalToSchema(v.OriginalPrice)
	s.Category = v.Category
	s.Stock = v.Stock
	s.Rating = v.Rating
	s.ImageURL = v.ImageURL
	s.Active = v.Active
	s.CreatedAt = v.CreatedAt.UTC()
	return
}

// schemaV1ToEntry treats an unparsable price as absent.
func schemaV1ToEntry(c domain.Collection, s schema.EntryV1) (v domain.Entry) {
	v.ID = s.ID
	v.Collection = c
	v.Name = s.Name
	v.Description = s.Description
	v.Price = schemaToDecimal(s.Price)
	v.OriginalPrice = schemaToDecimal(s.OriginalPrice)
	v.Category = s.Category
	v.Stock = s.Stock
	v.Rating = s.Rating
	v.ImageURL = s.ImageURL
	v.Active = s.Active
	v.CreatedAt = s.CreatedAt
	return
}

func decimalToSchema(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func schemaToDecimal(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
