package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/safescore/internal/domain"
)

func TestMonitorPolicyInactiveByDefault(t *testing.T) {
	batch := []domain.Transaction{{ID: "a", From: "0x1", To: "0x2"}}

	p := NewMonitorPolicy(nil, false)
	assert.False(t, p.Active())
	assert.Equal(t, batch, p.Filter(batch))

	// Require-match with an empty set still passes everything.
	p = NewMonitorPolicy(nil, true)
	assert.False(t, p.Active())
	assert.Equal(t, batch, p.Filter(batch))

	// A populated set without require-match also passes everything.
	p = NewMonitorPolicy([]string{"0x9"}, false)
	assert.False(t, p.Active())
	assert.Equal(t, batch, p.Filter(batch))
}

func TestMonitorPolicyFiltersEitherSide(t *testing.T) {
	p := NewMonitorPolicy([]string{" 0xMon ", ""}, true)
	assert.True(t, p.Active())

	batch := []domain.Transaction{
		{ID: "from-side", From: "0xMON", To: "0xother"},
		{ID: "to-side", From: "0xother", To: "0xmon"},
		{ID: "neither", From: "0xa", To: "0xb"},
	}
	out := p.Filter(batch)
	assert.Len(t, out, 2)
	assert.Equal(t, "from-side", out[0].ID)
	assert.Equal(t, "to-side", out[1].ID)
}
