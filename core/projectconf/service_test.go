package projectconf

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/db"
	"DHAdmin/events"
	"DHAdmin/model"
	"DHAdmin/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []events.ConfigSaved
	err    error
}

func (r *recordingPublisher) PublishConfigSaved(_ context.Context, evt events.ConfigSaved) error {
	r.events = append(r.events, evt)
	return r.err
}

func newTestService(t *testing.T, pub events.Publisher) (*Service, *time.Time) {
	t.Helper()
	gormDB, err := db.Open(db.OpenSQLiteDialector(filepath.Join(t.TempDir(), "conf.db")), "warn")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateModels(gormDB, repository.Models()...))
	t.Cleanup(func() { _ = db.Close(gormDB) })

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(repository.NewGormConfigRepository(gormDB), pub, WithClock(func() time.Time { return now }))
	return svc, &now
}

func TestGetNodeConfig_CreatesDefaultOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	first, err := svc.GetNodeConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.BackgroundSystem, first.Background.Source)
	require.Len(t, first.UIComponents.Elements, 1)
	el := first.UIComponents.Elements[0]
	assert.Equal(t, model.ElementButton, el.Type)
	assert.Equal(t, DefaultButtonID, el.ID)
	assert.Equal(t, &model.ButtonProperties{Text: "开始对话", Color: "#1890ff"}, el.Properties)

	second, err := svc.GetNodeConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UIComponents, second.UIComponents)
}

func TestGetGlobalConfig_CreatesDefault(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	cfg, err := svc.GetGlobalConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "version_control", cfg.DigitalHuman.ModelConfig.VideoSources.UpdateStrategy)
	assert.Equal(t, 0.8, cfg.Interaction.Wakeup.Sensitivity.Threshold)
	assert.Equal(t, 3, cfg.SleepMode.Wakeup.RetryLimit)

	again, err := svc.GetGlobalConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)
}

func TestSaveNodeConfig_ThenGetReturnsSameConfig(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, now := newTestService(t, pub)

	created, err := svc.GetNodeConfig(ctx, "p1")
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	in := &model.NodeConfig{
		ProjectID:  "someone-else",
		Background: &model.Background{Source: model.BackgroundCustom, URL: "/media/bg.png", Type: "image"},
		UIComponents: &model.UIComponents{Elements: []model.UIElement{{
			ID:         "t1",
			Type:       model.ElementTextField,
			Position:   model.Position{X: 10, Y: 20},
			Properties: &model.TextFieldProperties{Placeholder: "请输入...", Color: "#000000"},
		}}},
	}
	saved, err := svc.SaveNodeConfig(ctx, "p1", in)
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.ProjectID)
	assert.Equal(t, created.ID, saved.ID)
	assert.True(t, saved.UpdatedAt.Equal(*now))

	got, err := svc.GetNodeConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, saved.Background, got.Background)
	assert.Equal(t, saved.UIComponents, got.UIComponents)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.KindNode, pub.events[0].Kind)
	assert.Equal(t, "p1", pub.events[0].ProjectID)
}

// racingRepo 第一次读取时假装还没有记录，模拟另一个请求在读取与写入之间插入了配置
type racingRepo struct {
	repository.ConfigRepository
	nodeHidden, globalHidden bool
}

func (r *racingRepo) GetNodeConfig(ctx context.Context, projectID string) (*model.NodeConfig, error) {
	if !r.nodeHidden {
		r.nodeHidden = true
		return nil, nil
	}
	return r.ConfigRepository.GetNodeConfig(ctx, projectID)
}

func (r *racingRepo) GetGlobalConfig(ctx context.Context, projectID string) (*model.GlobalConfig, error) {
	if !r.globalHidden {
		r.globalHidden = true
		return nil, nil
	}
	return r.ConfigRepository.GetGlobalConfig(ctx, projectID)
}

func TestSave_ConcurrentFirstSaveReturnsStoredID(t *testing.T) {
	ctx := context.Background()
	gormDB, err := db.Open(db.OpenSQLiteDialector(filepath.Join(t.TempDir(), "race.db")), "warn")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateModels(gormDB, repository.Models()...))
	t.Cleanup(func() { _ = db.Close(gormDB) })

	base := repository.NewGormConfigRepository(gormDB)
	winnerNode := DefaultNodeConfig("p1", time.Now())
	require.NoError(t, base.UpsertNodeConfig(ctx, winnerNode))
	winnerGlobal := DefaultGlobalConfig("p1", time.Now())
	require.NoError(t, base.UpsertGlobalConfig(ctx, winnerGlobal))

	pub := &recordingPublisher{}
	svc := NewService(&racingRepo{ConfigRepository: base}, pub)

	node, err := svc.SaveNodeConfig(ctx, "p1", DefaultNodeConfig("p1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, winnerNode.ID, node.ID)

	global, err := svc.SaveGlobalConfig(ctx, "p1", DefaultGlobalConfig("p1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, winnerGlobal.ID, global.ID)

	require.Len(t, pub.events, 2)
	assert.Equal(t, winnerNode.ID, pub.events[0].Config.(*model.NodeConfig).ID)
	assert.Equal(t, winnerGlobal.ID, pub.events[1].Config.(*model.GlobalConfig).ID)
}

func TestSaveNodeConfig_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.SaveNodeConfig(ctx, "p1", &model.NodeConfig{Background: &model.Background{Source: "system"}})
	assert.ErrorIs(t, err, ErrInvalidNodeConfig)
	assert.Equal(t, "节点配置格式不正确", apperr.Message(err))

	_, err = svc.SaveNodeConfig(ctx, "bad id!", DefaultNodeConfig("x", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidProjectID)

	_, err = svc.SaveGlobalConfig(ctx, "p1", &model.GlobalConfig{})
	assert.ErrorIs(t, err, ErrInvalidGlobalConfig)
}

func TestSaveNodeConfig_EmptyElementsStoredAsEmptyList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	saved, err := svc.SaveNodeConfig(ctx, "p2", &model.NodeConfig{
		Background:   &model.Background{Source: model.BackgroundSystem},
		UIComponents: &model.UIComponents{},
	})
	require.NoError(t, err)
	assert.NotNil(t, saved.UIComponents.Elements)

	got, err := svc.GetNodeConfig(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, got.UIComponents.Elements)
	assert.NotNil(t, got.UIComponents.Elements)
}

func TestSaveGlobalConfig_PublishFailureDoesNotFailSave(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, pub)

	cfg := DefaultGlobalConfig("ignored", time.Now())
	cfg.Interaction.DefaultMode = model.ModeText
	saved, err := svc.SaveGlobalConfig(ctx, "p1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.ProjectID)
	assert.Len(t, pub.events, 1)

	got, err := svc.GetGlobalConfig(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ModeText, got.Interaction.DefaultMode)
}

func TestValidProjectID(t *testing.T) {
	assert.True(t, ValidProjectID("proj_1-a"))
	assert.False(t, ValidProjectID(""))
	assert.False(t, ValidProjectID("a/b"))
}
