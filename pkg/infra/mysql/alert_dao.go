package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mip/qsync/internal/sample"
)

// AlertRecord 告警表实体
type AlertRecord struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Seq        int64          `gorm:"column:seq;autoIncrement;uniqueIndex"`
	AlertType  string         `gorm:"column:alert_type;index"`
	Severity   string         `gorm:"column:severity"`
	Message    string         `gorm:"column:message"`
	SampleID   string         `gorm:"column:sample_id;index"`
	SupplierID string         `gorm:"column:supplier_id;index"`
	RouteID    string         `gorm:"column:route_id"`
	Timestamp  time.Time      `gorm:"column:timestamp"`
	Details    datatypes.JSON `gorm:"column:details"`
}

// TableName gorm 表名
func (AlertRecord) TableName() string {
	return "alert_history"
}

// AlertDAO 告警数据访问对象（实现 alerts.Store 接口）
type AlertDAO struct {
	db *gorm.DB
}

// NewAlertDAO 创建 AlertDAO 实例并迁移表结构
func NewAlertDAO(db *gorm.DB) (*AlertDAO, error) {
	if err := db.AutoMigrate(&AlertRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate alert_history: %w", err)
	}

	return &AlertDAO{db: db}, nil
}

// Insert 持久化一条告警
func (dao *AlertDAO) Insert(ctx context.Context, alert *sample.Alert) error {
	detailsJSON, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal alert details: %w", err)
	}

	record := &AlertRecord{
		ID:         uuid.New().String(),
		AlertType:  alert.Type,
		Severity:   alert.Severity,
		Message:    alert.Message,
		SampleID:   alert.SampleID,
		SupplierID: alert.SupplierID,
		RouteID:    alert.RouteID,
		Timestamp:  alert.Timestamp,
		Details:    detailsJSON,
	}

	result := dao.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to insert alert: %w", result.Error)
	}
	return nil
}

// Recent 返回最近 n 条告警（新 → 旧）
func (dao *AlertDAO) Recent(ctx context.Context, n int) ([]sample.Alert, error) {
	if n <= 0 {
		return nil, nil
	}

	var records []AlertRecord
	result := dao.db.WithContext(ctx).Order("seq DESC").Limit(n).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", result.Error)
	}

	return toAlerts(records), nil
}

// BySupplier 返回指定供应商的全部告警（新 → 旧）
func (dao *AlertDAO) BySupplier(ctx context.Context, supplierID string) ([]sample.Alert, error) {
	var records []AlertRecord
	result := dao.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("seq DESC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query supplier alerts: %w", result.Error)
	}

	return toAlerts(records), nil
}

// toAlerts 将表记录转换为业务告警结构
func toAlerts(records []AlertRecord) []sample.Alert {
	alerts := make([]sample.Alert, 0, len(records))
	for _, r := range records {
		var details map[string]any
		if len(r.Details) > 0 {
			// 反序列化失败时保留空 details，不中断查询
			_ = json.Unmarshal(r.Details, &details)
		}

		alerts = append(alerts, sample.Alert{
			Type:       r.AlertType,
			Severity:   r.Severity,
			Message:    r.Message,
			SampleID:   r.SampleID,
			SupplierID: r.SupplierID,
			RouteID:    r.RouteID,
			Timestamp:  r.Timestamp,
			Details:    details,
		})
	}
	return alerts
}
