package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeReleaser struct {
	calls atomic.Int64
	block chan struct{}
}

func (f *fakeReleaser) ReleaseStalled(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	return 0, nil
}

func TestSweeperRunsPeriodically(t *testing.T) {
	releaser := &fakeReleaser{}
	s := NewSweeper(releaser, Config{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return releaser.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSweeperSkipsOverlappingRuns(t *testing.T) {
	releaser := &fakeReleaser{block: make(chan struct{})}
	s := NewSweeper(releaser, Config{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Start(ctx)
		close(done)
	}()

	// Let several ticks fire while the first sweep is stuck.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), releaser.calls.Load(), "ticks during an in-flight sweep are skipped")

	close(releaser.block)
	cancel()
	<-done
}

func TestSweeperDefaultInterval(t *testing.T) {
	s := NewSweeper(&fakeReleaser{}, Config{}, zerolog.Nop())
	assert.Equal(t, 30*time.Minute, s.config.Interval)
}
