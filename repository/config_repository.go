package repository

import (
	"context"
	"errors"
	"fmt"

	"DHAdmin/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository stores one node config and one global config per project.
type ConfigRepository interface {
	GetNodeConfig(ctx context.Context, projectID string) (*model.NodeConfig, error)
	UpsertNodeConfig(ctx context.Context, cfg *model.NodeConfig) error
	CreateNodeConfigIfAbsent(ctx context.Context, cfg *model.NodeConfig) (*model.NodeConfig, error)

	GetGlobalConfig(ctx context.Context, projectID string) (*model.GlobalConfig, error)
	UpsertGlobalConfig(ctx context.Context, cfg *model.GlobalConfig) error
	CreateGlobalConfigIfAbsent(ctx context.Context, cfg *model.GlobalConfig) (*model.GlobalConfig, error)
}

type gormConfigRepository struct {
	db *gorm.DB
}

// NewGormConfigRepository creates a new GORM backed ConfigRepository.
func NewGormConfigRepository(db *gorm.DB) ConfigRepository {
	return &gormConfigRepository{db: db}
}

// GetNodeConfig returns nil, nil when the project has no node config yet.
func (r *gormConfigRepository) GetNodeConfig(ctx context.Context, projectID string) (*model.NodeConfig, error) {
	var rec nodeConfigRecord
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get node config for project %s: %w", projectID, err)
	}
	return rec.toModel(), nil
}

// UpsertNodeConfig 按 project_id 覆盖写入
func (r *gormConfigRepository) UpsertNodeConfig(ctx context.Context, cfg *model.NodeConfig) error {
	rec := nodeRecordFrom(cfg)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"background", "ui_components", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save node config for project %s: %w", cfg.ProjectID, err)
	}
	return nil
}

// CreateNodeConfigIfAbsent inserts cfg unless a row already exists and returns
// whichever config is stored afterwards.
func (r *gormConfigRepository) CreateNodeConfigIfAbsent(ctx context.Context, cfg *model.NodeConfig) (*model.NodeConfig, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoNothing: true,
	}).Create(nodeRecordFrom(cfg)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create node config for project %s: %w", cfg.ProjectID, err)
	}
	stored, err := r.GetNodeConfig(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("node config for project %s vanished after insert", cfg.ProjectID)
	}
	return stored, nil
}

// GetGlobalConfig returns nil, nil when the project has no global config yet.
func (r *gormConfigRepository) GetGlobalConfig(ctx context.Context, projectID string) (*model.GlobalConfig, error) {
	var rec globalConfigRecord
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get global config for project %s: %w", projectID, err)
	}
	return rec.toModel(), nil
}

func (r *gormConfigRepository) UpsertGlobalConfig(ctx context.Context, cfg *model.GlobalConfig) error {
	rec := globalRecordFrom(cfg)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"digital_human", "interaction", "sleep_mode", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save global config for project %s: %w", cfg.ProjectID, err)
	}
	return nil
}

func (r *gormConfigRepository) CreateGlobalConfigIfAbsent(ctx context.Context, cfg *model.GlobalConfig) (*model.GlobalConfig, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoNothing: true,
	}).Create(globalRecordFrom(cfg)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create global config for project %s: %w", cfg.ProjectID, err)
	}
	stored, err := r.GetGlobalConfig(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("global config for project %s vanished after insert", cfg.ProjectID)
	}
	return stored, nil
}
