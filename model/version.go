package model

import "time"

// ConfigVersion 配置版本快照
type ConfigVersion struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"projectId"`
	Description  string        `json:"description"`
	NodeConfig   *NodeConfig   `json:"nodeConfig"`
	GlobalConfig *GlobalConfig `json:"globalConfig"`
	CreatedAt    time.Time     `json:"createdAt"`
}
