package model

import "time"

// 背景来源
const (
	BackgroundSystem = "system"
	BackgroundCustom = "custom"
)

// Background 节点背景
type Background struct {
	Source string `json:"source" validate:"oneof=system custom"`
	URL    string `json:"url,omitempty"`
	Color  string `json:"color,omitempty"`
	Type   string `json:"type,omitempty" validate:"omitempty,oneof=image video"`
}

// DragConfig 编辑器拖拽选项
type DragConfig struct {
	GridSnap      bool `json:"gridSnap"`
	BoundaryCheck bool `json:"boundaryCheck"`
}

// UIComponents 节点上的UI元素集合
type UIComponents struct {
	Elements   []UIElement `json:"elements" validate:"dive"`
	DragConfig *DragConfig `json:"dragConfig,omitempty"`
}

// NodeConfig 项目节点配置
type NodeConfig struct {
	ID           string        `json:"id" validate:"required"`
	ProjectID    string        `json:"projectId" validate:"required"`
	Background   *Background   `json:"background" validate:"required"`
	UIComponents *UIComponents `json:"uiComponents" validate:"required"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// OutOfCanvas returns the ids of elements positioned outside the canvas.
func (c *NodeConfig) OutOfCanvas() []string {
	if c.UIComponents == nil {
		return nil
	}
	var ids []string
	for _, el := range c.UIComponents.Elements {
		if !el.Position.InCanvas() {
			ids = append(ids, el.ID)
		}
	}
	return ids
}

// DuplicateElementID returns the first element id used more than once, or "".
func (c *NodeConfig) DuplicateElementID() string {
	if c.UIComponents == nil {
		return ""
	}
	seen := make(map[string]struct{}, len(c.UIComponents.Elements))
	for _, el := range c.UIComponents.Elements {
		if _, ok := seen[el.ID]; ok {
			return el.ID
		}
		seen[el.ID] = struct{}{}
	}
	return ""
}
