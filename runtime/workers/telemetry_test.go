package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubStats struct {
	samples atomic.Int32
}

func (s *stubStats) Stats() (int, int, int) {
	s.samples.Add(1)
	return 3, 2, 1
}

func TestTelemetryWorker_SamplesUntilCanceled(t *testing.T) {
	req := require.New(t)
	stats := &stubStats{}
	worker := NewTelemetryWorker(slog.Default(), 20*time.Millisecond, stats)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
	req.GreaterOrEqual(stats.samples.Load(), int32(2))
}
