package confdoc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/model"

	"github.com/google/uuid"
)

// DefaultMaxVersions 每个项目保留的快照数量上限
const DefaultMaxVersions = 100

var (
	ErrDescriptionRequired = apperr.Validation("请输入版本描述")
	ErrVersionNotFound     = apperr.New(apperr.KindNotFound, "版本不存在")
)

// Snapshots is an in-memory, per-project list of configuration versions,
// newest first. It does not survive a restart.
type Snapshots struct {
	mu       sync.RWMutex
	versions map[string][]*model.ConfigVersion
	max      int
	now      func() time.Time
}

func NewSnapshots(maxVersions int) *Snapshots {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	return &Snapshots{
		versions: make(map[string][]*model.ConfigVersion),
		max:      maxVersions,
		now:      time.Now,
	}
}

// Save records deep copies of node and global under description.
func (s *Snapshots) Save(projectID, description string, node *model.NodeConfig, global *model.GlobalConfig) (*model.ConfigVersion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}

	v := &model.ConfigVersion{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Description: description,
		CreatedAt:   s.now(),
	}
	var err error
	if v.NodeConfig, err = deepCopy(node); err != nil {
		return nil, apperr.Internal(err)
	}
	if v.GlobalConfig, err = deepCopy(global); err != nil {
		return nil, apperr.Internal(err)
	}

	s.mu.Lock()
	list := append([]*model.ConfigVersion{v}, s.versions[projectID]...)
	if len(list) > s.max {
		list = list[:s.max]
	}
	s.versions[projectID] = list
	s.mu.Unlock()

	return cloneVersion(v)
}

// List returns copies of the project's versions, newest first.
func (s *Snapshots) List(projectID string) ([]*model.ConfigVersion, error) {
	s.mu.RLock()
	list := s.versions[projectID]
	s.mu.RUnlock()

	out := make([]*model.ConfigVersion, 0, len(list))
	for _, v := range list {
		cp, err := cloneVersion(v)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Get returns a copy of one version, used to restore it into the editor.
func (s *Snapshots) Get(projectID, versionID string) (*model.ConfigVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[projectID] {
		if v.ID == versionID {
			return cloneVersion(v)
		}
	}
	return nil, ErrVersionNotFound
}

func cloneVersion(v *model.ConfigVersion) (*model.ConfigVersion, error) {
	cp, err := deepCopy(v)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return cp, nil
}

// deepCopy 通过 JSON 往返复制，元素属性的具体类型由 UIElement 解码恢复
func deepCopy[T any](v *T) (*T, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("copy %T: %w", v, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy %T: %w", v, err)
	}
	return &out, nil
}
