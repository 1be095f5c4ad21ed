package worker

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/insightcord/insightcord/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestPoolExecutesTasks(t *testing.T) {
	pool := New("test", 2, 8, logger.NewNop())

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			atomic.AddInt32(&done, 1)
			wg.Done()
		})
		assert.True(t, ok)
	}
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(8), atomic.LoadInt32(&done))
	assert.Equal(t, 0, pool.Dropped())
}

func TestPoolDropsWhenFull(t *testing.T) {
	pool := New("test", 1, 1, logger.NewNop())
	defer pool.Stop()

	block := make(chan struct{})
	release := make(chan struct{})

	// 占住唯一的worker
	assert.True(t, pool.Submit(func() {
		close(block)
		<-release
	}))
	<-block

	// 队列容量1：第一个排队成功，之后全部丢弃
	assert.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}))
	assert.Equal(t, 2, pool.Dropped())

	close(release)
}

func TestPoolStopIdempotent(t *testing.T) {
	pool := New("test", 1, 1, logger.NewNop())
	pool.Stop()
	// 重复Stop不应panic
	pool.Stop()
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := New("test", 1, 1, logger.NewNop())
	pool.Stop()

	// 停止后的Submit拒绝任务而不是panic
	assert.False(t, pool.Submit(func() {}))
}

func TestPoolClampsSizes(t *testing.T) {
	pool := New("test", 0, 0, logger.NewNop())
	defer pool.Stop()

	done := make(chan struct{})
	assert.True(t, pool.Submit(func() { close(done) }))
	<-done
}
