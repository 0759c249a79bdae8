package history

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger 内存账本
// 用于单测与 fasttest 的 skip-db 模式；语义与 MySQL 实现一致
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]bool
}

// NewMemoryLedger 创建内存账本
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byID: make(map[string]bool)}
}

// Append 追加一行
func (l *MemoryLedger) Append(ctx context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byID[entry.SampleID] {
		return fmt.Errorf("duplicate sample_id: %s", entry.SampleID)
	}

	entry.Seq = int64(len(l.entries) + 1)
	l.entries = append(l.entries, *entry)
	l.byID[entry.SampleID] = true
	return nil
}

// All 返回全部行（副本）
func (l *MemoryLedger) All(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

// Recent 返回最近 n 行
func (l *MemoryLedger) Recent(ctx context.Context, n int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out, nil
}

// Len 当前行数
func (l *MemoryLedger) Len(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}
