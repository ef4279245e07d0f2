package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPacer(t *testing.T) {
	t.Run("explicit delay wins", func(t *testing.T) {
		p := NewPacer(250, 30)
		assert.Equal(t, 250*time.Millisecond, p.Delay())
	})

	t.Run("derived from messages per minute", func(t *testing.T) {
		p := NewPacer(0, 30)
		assert.Equal(t, 2*time.Second, p.Delay())
	})

	t.Run("unconfigured means no pacing", func(t *testing.T) {
		p := NewPacer(0, 0)
		assert.Equal(t, time.Duration(0), p.Delay())
	})
}

func TestPacerWait(t *testing.T) {
	t.Run("blocks for the configured gap", func(t *testing.T) {
		p := NewPacer(20, 0)
		start := time.Now()
		err := p.Wait(context.Background())
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("returns immediately when unpaced", func(t *testing.T) {
		p := NewPacer(0, 0)
		start := time.Now()
		assert.NoError(t, p.Wait(context.Background()))
		assert.Less(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		p := NewPacer(0, 1) // 1 msg/min, 60s gap
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := p.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
