package edit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "grade:a")
	require.NoError(t, err)

	// other keys are independent
	unlockB, err := l.Lock(ctx, "grade:b")
	require.NoError(t, err)
	unlockB()

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(tctx, "grade:a")
	assert.Equal(t, context.DeadlineExceeded, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "grade:a")
		if err == nil {
			u()
		}
		close(acquired)
	}()
	unlock()
	unlock() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiting Lock() was never released")
	}
	assert.Empty(t, l.(*localLocker).slots)
}
