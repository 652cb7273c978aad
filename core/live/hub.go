// Package live pushes configuration changes to the preview screens that are
// watching a project over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"DHAdmin/events"
	"DHAdmin/logger"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeNodeConfig   MessageType = "node_config"   // 节点配置已保存
	MsgTypeGlobalConfig MessageType = "global_config" // 全局配置已保存
	MsgTypePing         MessageType = "ping"          // 心跳
	MsgTypePong         MessageType = "pong"          // 心跳响应
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 16
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client WebSocket 客户端
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	ProjectID string
	UserID    string
}

// broadcastMessage 广播消息
type broadcastMessage struct {
	projectID string
	message   []byte
}

// Hub 项目订阅管理中心
type Hub struct {
	// 项目 -> 客户端集合
	projects map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		projects:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.broadcastToProject(msg)
		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// NewClient binds conn to projectID. Call Register before starting the pumps.
func (h *Hub) NewClient(conn *websocket.Conn, projectID, userID string) *Client {
	return &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		ProjectID: projectID,
		UserID:    userID,
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[client.ProjectID] == nil {
		h.projects[client.ProjectID] = make(map[*Client]bool)
	}
	h.projects[client.ProjectID][client] = true

	logger.Info("[Live] client registered",
		logger.String("projectId", client.ProjectID),
		logger.String("userId", client.UserID))
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.projects[client.ProjectID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.projects, client.ProjectID)
	}
	logger.Info("[Live] client unregistered",
		logger.String("projectId", client.ProjectID),
		logger.String("userId", client.UserID))
}

func (h *Hub) broadcastToProject(msg *broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.projects[msg.projectID] {
		select {
		case client.Send <- msg.message:
		default:
			// 发送缓冲区满，断开慢客户端
			logger.Warn("[Live] dropping slow client",
				logger.String("projectId", client.ProjectID),
				logger.String("userId", client.UserID))
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.projects {
		for client := range clients {
			close(client.Send)
		}
	}
	h.projects = make(map[string]map[*Client]bool)
}

// ClientCount 获取项目订阅者数量
func (h *Hub) ClientCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// PublishConfigSaved broadcasts evt to every subscriber of its project.
func (h *Hub) PublishConfigSaved(ctx context.Context, evt events.ConfigSaved) error {
	data, err := json.Marshal(evt.Config)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(&WSMessage{
		Type:      MessageType(evt.Kind),
		ProjectID: evt.ProjectID,
		Data:      data,
		Timestamp: evt.SavedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &broadcastMessage{projectID: evt.ProjectID, message: msg}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadPump 读取消息循环，客户端只会发送心跳
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("[Live] websocket read error",
					logger.ErrorField(err),
					logger.String("projectId", c.ProjectID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != MsgTypePing {
			continue
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		pong, _ := json.Marshal(&WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		c.Hub.sendTo(c, pong)
	}
}

// sendTo queues data for one client unless it has already been removed.
func (h *Hub) sendTo(c *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.projects[c.ProjectID][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
