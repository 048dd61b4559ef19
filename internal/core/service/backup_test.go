package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup(t *testing.T) {
	ctx := context.Background()
	storage := new(storageMock)
	b := NewBackup(storage)
	b.now = func() time.Time { return testNow }

	storage.On("ReadEntries", ctx, domain.Products).Return([]domain.Entry{{
		ID:        "p1",
		Name:      "Hammer",
		Price:     decimal.NewNullDecimal(decimal.RequireFromString("9.99")),
		Active:    true,
		CreatedAt: testNow,
	}}, nil).Once()
	storage.On("ReadEntries", ctx, domain.Offers).
		Return(nil, errors.New("db down")).Once()

	var buf bytes.Buffer
	summary, err := b.Backup(ctx, &buf)
	require.NoError(t, err)
	storage.AssertExpectations(t)

	assert.Equal(t, testNow, summary.Timestamp)
	assert.Equal(t, map[domain.Collection]int{
		domain.Products: 1,
		domain.Offers:   0,
	}, summary.Counts)

	var doc struct {
		Timestamp   time.Time                   `json:"timestamp"`
		Collections map[string][]map[string]any `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Timestamp.Equal(testNow))
	require.Len(t, doc.Collections["products"], 1)
	assert.Equal(t, "Hammer", doc.Collections["products"][0]["name"])
	assert.Equal(t, "9.99", doc.Collections["products"][0]["price"])
	assert.NotContains(t, doc.Collections["products"][0], "originalPrice")
	assert.NotNil(t, doc.Collections["offers"])
	assert.Empty(t, doc.Collections["offers"])
}
