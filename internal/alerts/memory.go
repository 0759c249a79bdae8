package alerts

import (
	"context"
	"sync"

	"mip/qsync/internal/sample"
)

// MemoryStore 内存告警存储（实现 Store 接口）
// 数据库未配置时的降级实现，也用于测试与回放工具
type MemoryStore struct {
	mu     sync.RWMutex
	alerts []sample.Alert
}

// NewMemoryStore 创建内存告警存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert 追加一条告警
func (s *MemoryStore) Insert(ctx context.Context, alert *sample.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *alert)
	return nil
}

// Recent 返回最近 n 条告警（新 → 旧）
func (s *MemoryStore) Recent(ctx context.Context, n int) ([]sample.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.alerts) {
		n = len(s.alerts)
	}
	out := make([]sample.Alert, 0, n)
	for i := len(s.alerts) - 1; i >= len(s.alerts)-n; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

// BySupplier 返回指定供应商的全部告警（新 → 旧）
func (s *MemoryStore) BySupplier(ctx context.Context, supplierID string) ([]sample.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sample.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].SupplierID == supplierID {
			out = append(out, s.alerts[i])
		}
	}
	return out, nil
}

// Len 当前告警条数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
