package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const EntrySchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "entry",
	"fields" : [
		{"name": "id", "type": "string"},
		{"name": "name", "type": "string"},
		{"name": "description", "type": "string", "default": ""},
		{"name": "price", "type": ["null", "string"], "default": null},
		{"name": "original_price", "type": ["null", "string"], "default": null},
		{"name": "category", "type": "string", "default": ""},
		{"name": "stock", "type": ["null", "long"], "default": null},
		{"name": "rating", "type": ["null", "double"], "default": null},
		{"name": "image_url", "type": "string", "default": ""},
		{"name": "active", "type": "boolean", "default": false},
		{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// EntryV1 is the record value of a collection topic. Prices are decimal
// strings so no precision is lost on the wire.
type EntryV1 struct {
	ID            string    `avro:"id"`
	Name          string    `avro:"name"`
	Description   string    `avro:"description"`
	Price         *string   `avro:"price"`
	OriginalPrice *string   `avro:"original_price"`
	Category      string    `avro:"category"`
	Stock         *int64    `avro:"stock"`
	Rating        *float64  `avro:"rating"`
	ImageURL      string    `avro:"image_url"`
	Active        bool      `avro:"active"`
	CreatedAt     time.Time `avro:"created_at"`
}

func EntryV1Avro() avro.Schema {
	return avro.MustParse(EntrySchemaTextV1)
}

func AvroEncodeFn(s avro.Schema) func(v any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		return avro.Marshal(s, v)
	}
}

func AvroDecodeFn(s avro.Schema) func([]byte, any) error {
	return func(data []byte, v any) error {
		return avro.Unmarshal(s, data, v)
	}
}
