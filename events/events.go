// Package events announces saved project configuration to interested parties.
package events

import (
	"context"
	"errors"
	"time"
)

// 配置类型
const (
	KindNode   = "node_config"
	KindGlobal = "global_config"
)

// ConfigSaved is emitted after a configuration was persisted.
type ConfigSaved struct {
	Kind      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	Config    any       `json:"data"`
	SavedAt   time.Time `json:"timestamp"`
}

// Publisher delivers ConfigSaved events.
type Publisher interface {
	PublishConfigSaved(ctx context.Context, evt ConfigSaved) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishConfigSaved(context.Context, ConfigSaved) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) PublishConfigSaved(ctx context.Context, evt ConfigSaved) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishConfigSaved(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
