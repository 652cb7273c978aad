package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"DHAdmin/config"
	"DHAdmin/core/apperr"
	"DHAdmin/core/auth"
	"DHAdmin/core/confdoc"
	"DHAdmin/core/live"
	"DHAdmin/core/projectconf"
	"DHAdmin/logger"
	"DHAdmin/storage"
)

// maxJSONBody 普通 JSON 请求体上限
const maxJSONBody = 4 << 20

// assetStore is implemented by *storage.AssetStore.
type assetStore interface {
	Upload(ctx context.Context, projectID, contentType string, size int64, r io.Reader) (*storage.Asset, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// Deps 构造 APIHandler 所需的依赖，Assets 和 Hub 可以为空
type Deps struct {
	Config    *config.Config
	Auth      *auth.Service
	Configs   *projectconf.Service
	Snapshots *confdoc.Snapshots
	Assets    assetStore
	Hub       *live.Hub
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg       *config.Config
	auth      *auth.Service
	configs   *projectconf.Service
	snapshots *confdoc.Snapshots
	assets    assetStore
	hub       *live.Hub
	limiter   *ipRateLimiter
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(d Deps) *APIHandler {
	snapshots := d.Snapshots
	if snapshots == nil {
		snapshots = confdoc.NewSnapshots(confdoc.DefaultMaxVersions)
	}
	return &APIHandler{
		cfg:       d.Config,
		auth:      d.Auth,
		configs:   d.Configs,
		snapshots: snapshots,
		assets:    d.Assets,
		hub:       d.Hub,
		limiter:   newIPRateLimiter(d.Config.LoginRate, d.Config.LoginBurst),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

// writeMessage 认证类接口的错误格式 {message}
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"message": msg})
}

// writeConfigError 配置类接口的错误格式 {error}，同时带上 message
func writeConfigError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg, "message": msg})
}

// logIfInternal records failures whose details are hidden from the client.
func logIfInternal(tag string, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error(tag+" 服务器内部错误",
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}
