package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/pkg/jobs"
)

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMapCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "reports:x", 1, 0))
	hit, err := svc.Get(context.Background(), "reports:x", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, repo.size())
}

func TestCacheServiceInvalidateAsyncThroughQueue(t *testing.T) {
	repo := newMapCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := jobs.NewQueue("cache", svc.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.Start(ctx)
	defer queue.Stop()
	svc.UseQueue(queue)

	require.NoError(t, svc.Set(ctx, "reports:ranking:-", []int{1, 2}, 0))
	require.NoError(t, svc.Set(ctx, "other:key", "keep", 0))

	var out []int
	hit, err := svc.Get(ctx, "reports:ranking:-", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int{1, 2}, out)

	svc.InvalidateAsync(ctx, ReportCachePattern)
	require.Eventually(t, func() bool { return repo.size() == 1 }, time.Second, 5*time.Millisecond)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
}

func TestCacheServiceHandleJobIgnoresForeignJobs(t *testing.T) {
	repo := newMapCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	require.NoError(t, svc.Set(context.Background(), "reports:a", 1, 0))

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{Type: "other", Payload: ReportCachePattern}))
	assert.Equal(t, 1, repo.size())
}

func TestSetIfCurrentDropsValuesComputedBeforeInvalidation(t *testing.T) {
	repo := newMapCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	generation := svc.Generation()
	svc.InvalidateReports(ctx)
	require.NoError(t, svc.SetIfCurrent(ctx, "reports:ranking:-", []int{1}, 0, generation))
	assert.Zero(t, repo.size())

	require.NoError(t, svc.SetIfCurrent(ctx, "reports:ranking:-", []int{1}, 0, svc.Generation()))
	assert.Equal(t, 1, repo.size())
}
