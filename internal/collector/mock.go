package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/safescore/internal/domain"
)

var (
	mockTokens  = []string{"ETH", "USDT", "USDC", "DAI"}
	mockMethods = []string{"TRANSFER", "APPROVE", "SWAP"}
)

// mockHotAddress is a fixed sender included in every batch so deny/watch list
// demos have something to match.
const mockHotAddress = "0x8856599b86858a4c61cb67c26c5b1d7d41faa49d"

// MockCollector produces a synthetic batch per tick: a dozen unremarkable
// transfers plus one deliberately suspicious APPROVE of a large stablecoin
// amount during the UTC night window.
type MockCollector struct {
	chain string
	size  int
	now   func() time.Time
	rng   *rand.Rand
}

// NewMockCollector creates a MockCollector labeled with chain.
func NewMockCollector(chain string) *MockCollector {
	if chain == "" {
		chain = "MOCK"
	}
	return &MockCollector{
		chain: chain,
		size:  12,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name implements domain.Collector.
func (c *MockCollector) Name() string { return "mock" }

// Collect implements domain.Collector. It never fails.
func (c *MockCollector) Collect(_ context.Context) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, c.size+1)
	for i := 0; i < c.size; i++ {
		token := mockTokens[c.rng.Intn(len(mockTokens))]
		amount := 5 + c.rng.Float64()*25_000
		if token == "ETH" {
			amount = 0.01 + c.rng.Float64()*2.5
		}
		out = append(out, domain.Transaction{
			ID:        fmt.Sprintf("MOCK-%s", uuid.NewString()),
			Timestamp: c.timestamp(c.rng.Intn(120)),
			From:      c.randomAddress(),
			To:        c.randomAddress(),
			Amount:    amount,
			Token:     token,
			Method:    mockMethods[c.rng.Intn(len(mockMethods))],
			Chain:     c.chain,
		})
	}

	out = append(out, domain.Transaction{
		ID:        fmt.Sprintf("MOCK-%s", uuid.NewString()),
		Timestamp: c.timestamp(1),
		From:      mockHotAddress,
		To:        c.randomAddress(),
		Amount:    23_529.20,
		Token:     "USDT",
		Method:    "APPROVE",
		Chain:     c.chain,
	})
	return out, nil
}

func (c *MockCollector) timestamp(minutesAgo int) string {
	return c.now().UTC().Add(-time.Duration(minutesAgo) * time.Minute).Format(time.RFC3339)
}

func (c *MockCollector) randomAddress() string {
	const hex = "0123456789abcdef"
	b := make([]byte, 40)
	for i := range b {
		b[i] = hex[c.rng.Intn(len(hex))]
	}
	return "0x" + string(b)
}
