package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeper_StartRejectsInvalidCronSpec(t *testing.T) {
	rc := New(&stubBackend{}, &stubEmbedder{}, 0, 0)
	s := NewSweeper(rc)
	err := s.Start("not a cron spec")
	require.Error(t, err)
}

func TestSweeper_StartAndStopWithValidSpec(t *testing.T) {
	rc := New(&stubBackend{sweepCount: 1}, &stubEmbedder{}, 0, 0)
	s := NewSweeper(rc)
	err := s.Start("@every 1h")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
