package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayBoundaries(t *testing.T) {
	p := NewPolicy(time.Second, time.Second)
	for _, n := range []int{1, 2, 5, 100} {
		d := p.Delay2(n, -0.2)
		assert.Equal(t, 800*time.Millisecond, d, "n=%d lower bound", n)
		d = p.Delay2(n, 0.2)
		assert.Equal(t, 1200*time.Millisecond, d, "n=%d upper bound", n)
	}
}

func TestDelayExponentialGrowthClampedAtMax(t *testing.T) {
	p := NewPolicy(time.Second, 8*time.Second)
	assert.Equal(t, time.Second, p.Delay2(1, 0))
	assert.Equal(t, 2*time.Second, p.Delay2(2, 0))
	assert.Equal(t, 4*time.Second, p.Delay2(3, 0))
	assert.Equal(t, 8*time.Second, p.Delay2(4, 0))
	assert.Equal(t, 8*time.Second, p.Delay2(5, 0))
	assert.Equal(t, 8*time.Second, p.Delay2(50, 0))
}

func TestJitterWithinRange(t *testing.T) {
	p := NewPolicy(time.Second, 8*time.Second)
	for n := 1; n <= 6; n++ {
		d := p.Delay(n)
		nominal := p.Delay2(n, 0)
		lo := time.Duration(float64(nominal) * 0.8)
		hi := time.Duration(float64(nominal) * 1.2)
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}
