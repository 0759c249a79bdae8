package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"mip/qsync/internal/history"
)

// HistoryDAO 质量历史账本数据访问对象（实现 history.Ledger 接口）
type HistoryDAO struct {
	db *gorm.DB
}

// NewHistoryDAO 创建 HistoryDAO 实例并迁移表结构
func NewHistoryDAO(db *gorm.DB) (*HistoryDAO, error) {
	if err := db.AutoMigrate(&history.Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate quality_history: %w", err)
	}

	return &HistoryDAO{db: db}, nil
}

// Append 追加一行历史记录
func (dao *HistoryDAO) Append(ctx context.Context, entry *history.Entry) error {
	result := dao.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to append history entry: %w", result.Error)
	}
	return nil
}

// All 按追加顺序返回全部历史记录
func (dao *HistoryDAO) All(ctx context.Context) ([]history.Entry, error) {
	var entries []history.Entry
	result := dao.db.WithContext(ctx).Order("seq ASC").Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query history: %w", result.Error)
	}
	return entries, nil
}

// Recent 按追加顺序返回最近 n 条历史记录
func (dao *HistoryDAO) Recent(ctx context.Context, n int) ([]history.Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	var entries []history.Entry
	result := dao.db.WithContext(ctx).Order("seq DESC").Limit(n).Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", result.Error)
	}

	// 反转为追加顺序（旧 → 新）
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Len 返回当前历史记录行数
func (dao *HistoryDAO) Len(ctx context.Context) (int, error) {
	var count int64
	result := dao.db.WithContext(ctx).Model(&history.Entry{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count history: %w", result.Error)
	}
	return int(count), nil
}
