package server

import (
	"net/http"

	"DHAdmin/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS 已在中间件中处理
	},
}

// ConfigStreamHandler 订阅项目的配置变更推送
func (h *APIHandler) ConfigStreamHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeConfigError(w, http.StatusServiceUnavailable, "实时推送未启用")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "未授权访问")
		return
	}
	projectID := projectIDFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[Live] Failed to upgrade WebSocket",
			logger.String("projectId", projectID),
			logger.ErrorField(err))
		return
	}

	client := h.hub.NewClient(conn, projectID, claims.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
