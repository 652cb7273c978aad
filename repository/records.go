package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"DHAdmin/model"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// jsonColumn 自定义类型用于 GORM JSON 字段的自动扫描
type jsonColumn[T any] struct {
	Data *T
}

func newJSONColumn[T any](v *T) jsonColumn[T] {
	return jsonColumn[T]{Data: v}
}

// Scan 实现 sql.Scanner 接口
func (c *jsonColumn[T]) Scan(value interface{}) error {
	if value == nil {
		c.Data = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		c.Data = nil
		return nil
	}
	var out T
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	c.Data = &out
	return nil
}

// Value 实现 driver.Valuer 接口
func (c jsonColumn[T]) Value() (driver.Value, error) {
	if c.Data == nil {
		return nil, nil
	}
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType 让 GORM 把结构体当作普通列而不是关联
func (jsonColumn[T]) GormDataType() string {
	return "json"
}

// GormDBDataType picks the native JSON type of each dialect.
func (jsonColumn[T]) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}

// nodeConfigRecord 节点配置表
type nodeConfigRecord struct {
	ID           string                         `gorm:"primaryKey;size:64"`
	ProjectID    string                         `gorm:"size:64;uniqueIndex;not null"`
	Background   jsonColumn[model.Background]   `gorm:"column:background"`
	UIComponents jsonColumn[model.UIComponents] `gorm:"column:ui_components"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (nodeConfigRecord) TableName() string { return "node_configs" }

func nodeRecordFrom(c *model.NodeConfig) *nodeConfigRecord {
	return &nodeConfigRecord{
		ID:           c.ID,
		ProjectID:    c.ProjectID,
		Background:   newJSONColumn(c.Background),
		UIComponents: newJSONColumn(c.UIComponents),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r *nodeConfigRecord) toModel() *model.NodeConfig {
	return &model.NodeConfig{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Background:   r.Background.Data,
		UIComponents: r.UIComponents.Data,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// globalConfigRecord 全局配置表
type globalConfigRecord struct {
	ID           string                         `gorm:"primaryKey;size:64"`
	ProjectID    string                         `gorm:"size:64;uniqueIndex;not null"`
	DigitalHuman jsonColumn[model.DigitalHuman] `gorm:"column:digital_human"`
	Interaction  jsonColumn[model.Interaction]  `gorm:"column:interaction"`
	SleepMode    jsonColumn[model.SleepMode]    `gorm:"column:sleep_mode"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (globalConfigRecord) TableName() string { return "global_configs" }

func globalRecordFrom(c *model.GlobalConfig) *globalConfigRecord {
	return &globalConfigRecord{
		ID:           c.ID,
		ProjectID:    c.ProjectID,
		DigitalHuman: newJSONColumn(c.DigitalHuman),
		Interaction:  newJSONColumn(c.Interaction),
		SleepMode:    newJSONColumn(c.SleepMode),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r *globalConfigRecord) toModel() *model.GlobalConfig {
	return &model.GlobalConfig{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		DigitalHuman: r.DigitalHuman.Data,
		Interaction:  r.Interaction.Data,
		SleepMode:    r.SleepMode.Data,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Models lists every table owned by this package, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&model.User{}, &nodeConfigRecord{}, &globalConfigRecord{}}
}
