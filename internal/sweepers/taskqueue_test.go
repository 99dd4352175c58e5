package sweepers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoverer struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeRecoverer) RecoverOrphaned(ctx context.Context, startedBefore time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, startedBefore)
	return f.n, f.err
}

func TestRecoverOrphanedTasksUsesTimeout(t *testing.T) {
	logger := zerolog.Nop()
	rec := &fakeRecoverer{n: 2}
	s := NewTaskQueueSweeper(rec, &logger, time.Minute, 10*time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RecoverOrphanedTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, rec.cutoffs, 1)
	assert.Equal(t, now.Add(-10*time.Minute), rec.cutoffs[0])
}

func TestRecoverOrphanedTasksWrapsErrors(t *testing.T) {
	logger := zerolog.Nop()
	cause := errors.New("db down")
	s := NewTaskQueueSweeper(&fakeRecoverer{err: cause}, &logger, time.Minute, time.Minute)

	_, err := s.RecoverOrphanedTasks(context.Background())
	assert.ErrorIs(t, err, cause)
}
