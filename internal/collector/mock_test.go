package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCollectorBatchShape(t *testing.T) {
	c := NewMockCollector("TESTNET")
	batch, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 13)

	seen := make(map[string]bool)
	for _, tx := range batch {
		assert.True(t, strings.HasPrefix(tx.ID, "MOCK-"))
		assert.False(t, seen[tx.ID], "identifiers are unique")
		seen[tx.ID] = true
		assert.Equal(t, "TESTNET", tx.Chain)
		assert.NotEmpty(t, tx.From)
		assert.NotEmpty(t, tx.To)
	}

	// The hot sender closes every batch with a large stablecoin APPROVE.
	last := batch[len(batch)-1]
	assert.Equal(t, mockHotAddress, last.From)
	assert.Equal(t, "USDT", last.Token)
	assert.Equal(t, "APPROVE", last.Method)
	assert.Greater(t, last.Amount, 10_000.0)
}

func TestMockCollectorDefaultsChain(t *testing.T) {
	c := NewMockCollector("")
	batch, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MOCK", batch[0].Chain)
}
