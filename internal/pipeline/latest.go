package pipeline

import (
	"sync"

	"mip/qsync/internal/sample"
)

// LatestStore 最新样本存储
// 取代进程级全局变量：流水线写入，查询端通过只读访问器消费
type LatestStore struct {
	mu     sync.RWMutex
	latest *sample.Enriched
}

// NewLatestStore 创建最新样本存储
func NewLatestStore() *LatestStore {
	return &LatestStore{}
}

// set 仅由流水线在一次 run 完成后调用
func (s *LatestStore) set(e *sample.Enriched) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = e
}

// Latest 只读访问最新富化样本
// 尚无样本时返回 nil；返回值归创建它的 run 所有，调用方不得修改
func (s *LatestStore) Latest() *sample.Enriched {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
