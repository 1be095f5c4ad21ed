package worker

import (
	"sync"

	"github.com/insightcord/insightcord/pkg/logger"
)

// Pool 有界工作池：固定数量的worker消费一个有界任务队列。
// 队列满时 Submit 直接丢弃任务并返回false，慢任务不会反压事件接收路径。
type Pool struct {
	name    string
	tasks   chan func()
	wg      sync.WaitGroup
	log     *logger.Logger
	once    sync.Once
	dropped int
	stopped bool
	mu      sync.Mutex
}

// New 创建并启动工作池
func New(name string, workers, queueSize int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		name:  name,
		tasks: make(chan func(), queueSize),
		log:   log.With("pool", name),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit 提交任务；队列满或池已停止时返回false并记录丢弃
func (p *Pool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		p.dropped++
		p.log.Warn("task queue full, dropping task", "dropped_total", p.dropped)
		return false
	}
}

// Dropped 累计丢弃的任务数
func (p *Pool) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Stop 关闭队列并等待在途任务完成；之后的 Submit 返回false
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
