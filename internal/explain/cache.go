package explain

import (
	"sync"
	"time"

	"mip/qsync/internal/sample"
)

// DefaultCacheCapacity 归因历史缓存默认容量
const DefaultCacheCapacity = 200

// Record 单个样本的归因快照
type Record struct {
	Timestamp string                                `json:"timestamp"`
	SampleID  string                                `json:"sample_id"`
	Rankings  map[string]*sample.AttributionRanking `json:"rankings"`
}

// Cache 有界滚动归因缓存
// 环形结构：容量满后覆盖最旧记录，Push 为 O(1)
type Cache struct {
	mu    sync.Mutex
	buf   []Record
	head  int // 下一个写入位置
	count int
}

// NewCache 创建归因缓存
// capacity <= 0 时使用默认容量
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{buf: make([]Record, capacity)}
}

// Push 追加一条归因快照，容量满时淘汰最旧的一条
func (c *Cache) Push(sampleID string, rankings map[string]*sample.AttributionRanking) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf[c.head] = Record{
		Timestamp: time.Now().Format(time.RFC3339),
		SampleID:  sampleID,
		Rankings:  rankings,
	}
	c.head = (c.head + 1) % len(c.buf)
	if c.count < len(c.buf) {
		c.count++
	}
}

// History 返回最近的归因记录（旧 → 新）
// limit <= 0 或超过现有数量时返回全部
func (c *Cache) History(limit int) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Record, 0, n)
	// 从最旧的需要返回的记录开始读
	start := c.head - n
	if start < 0 {
		start += len(c.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, c.buf[(start+i)%len(c.buf)])
	}
	return out
}

// Len 当前缓存的记录数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
