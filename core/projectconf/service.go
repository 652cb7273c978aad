// Package projectconf reads and writes the per-project node and global
// configuration, provisioning defaults the first time a project is opened.
package projectconf

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/events"
	"DHAdmin/logger"
	"DHAdmin/model"
	"DHAdmin/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidProjectID    = apperr.Validation("无效的项目ID")
	ErrInvalidNodeConfig   = apperr.Validation("节点配置格式不正确")
	ErrInvalidGlobalConfig = apperr.Validation("全局配置格式不正确")
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidProjectID reports whether id can name a project.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Service is the config store.
type Service struct {
	repo      repository.ConfigRepository
	publisher events.Publisher
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the config store. A nil publisher drops change events.
func NewService(repo repository.ConfigRepository, publisher events.Publisher, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &Service{repo: repo, publisher: publisher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNodeConfig returns the stored node config, creating the default on first read.
func (s *Service) GetNodeConfig(ctx context.Context, projectID string) (*model.NodeConfig, error) {
	if !ValidProjectID(projectID) {
		return nil, ErrInvalidProjectID
	}
	cfg, err := s.repo.GetNodeConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg, err = s.repo.CreateNodeConfigIfAbsent(ctx, DefaultNodeConfig(projectID, s.now()))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logger.Info("[Config] 创建默认节点配置", logger.String("projectId", projectID))
	return cfg, nil
}

// SaveNodeConfig overwrites the project's node config. The stored id and
// createdAt survive; updatedAt is stamped now.
func (s *Service) SaveNodeConfig(ctx context.Context, projectID string, cfg *model.NodeConfig) (*model.NodeConfig, error) {
	if !ValidProjectID(projectID) {
		return nil, ErrInvalidProjectID
	}
	if cfg == nil || cfg.Background == nil || cfg.UIComponents == nil {
		return nil, ErrInvalidNodeConfig
	}

	existing, err := s.repo.GetNodeConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	out := *cfg
	out.ProjectID = projectID
	out.UpdatedAt = now
	if existing != nil {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
	} else {
		out.ID = uuid.NewString()
		out.CreatedAt = now
	}
	if out.UIComponents.Elements == nil {
		ui := *out.UIComponents
		ui.Elements = []model.UIElement{}
		out.UIComponents = &ui
	}
	if ids := out.OutOfCanvas(); len(ids) > 0 {
		logger.Warn("[Config] 元素位置超出画布", logger.String("projectId", projectID), logger.Any("elements", ids))
	}

	if err := s.repo.UpsertNodeConfig(ctx, &out); err != nil {
		return nil, apperr.Internal(err)
	}
	// 并发首次保存时行可能由另一个请求插入，以库中记录为准
	stored, err := s.repo.GetNodeConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if stored == nil {
		return nil, apperr.Internal(fmt.Errorf("node config for project %s missing after save", projectID))
	}
	s.publish(ctx, events.KindNode, projectID, stored, now)
	return stored, nil
}

// GetGlobalConfig returns the stored global config, creating the default on first read.
func (s *Service) GetGlobalConfig(ctx context.Context, projectID string) (*model.GlobalConfig, error) {
	if !ValidProjectID(projectID) {
		return nil, ErrInvalidProjectID
	}
	cfg, err := s.repo.GetGlobalConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg, err = s.repo.CreateGlobalConfigIfAbsent(ctx, DefaultGlobalConfig(projectID, s.now()))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logger.Info("[Config] 创建默认全局配置", logger.String("projectId", projectID))
	return cfg, nil
}

func (s *Service) SaveGlobalConfig(ctx context.Context, projectID string, cfg *model.GlobalConfig) (*model.GlobalConfig, error) {
	if !ValidProjectID(projectID) {
		return nil, ErrInvalidProjectID
	}
	if cfg == nil || cfg.DigitalHuman == nil || cfg.Interaction == nil || cfg.SleepMode == nil {
		return nil, ErrInvalidGlobalConfig
	}

	existing, err := s.repo.GetGlobalConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	out := *cfg
	out.ProjectID = projectID
	out.UpdatedAt = now
	if existing != nil {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
	} else {
		out.ID = uuid.NewString()
		out.CreatedAt = now
	}

	if err := s.repo.UpsertGlobalConfig(ctx, &out); err != nil {
		return nil, apperr.Internal(err)
	}
	stored, err := s.repo.GetGlobalConfig(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if stored == nil {
		return nil, apperr.Internal(fmt.Errorf("global config for project %s missing after save", projectID))
	}
	s.publish(ctx, events.KindGlobal, projectID, stored, now)
	return stored, nil
}

// publish 推送失败只记录日志，不影响保存结果
func (s *Service) publish(ctx context.Context, kind, projectID string, cfg any, at time.Time) {
	evt := events.ConfigSaved{Kind: kind, ProjectID: projectID, Config: cfg, SavedAt: at}
	if err := s.publisher.PublishConfigSaved(ctx, evt); err != nil {
		logger.Warn("[Config] 配置变更推送失败",
			logger.String("projectId", projectID),
			logger.String("kind", kind),
			logger.ErrorField(err))
	}
}
