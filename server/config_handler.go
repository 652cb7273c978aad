package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/core/confdoc"
	"DHAdmin/model"

	"github.com/gorilla/mux"
)

// 配置类型
const (
	configTypeNode   = "node"
	configTypeGlobal = "global"
	configTypeAll    = "all"
)

// SaveConfigRequest 保存配置请求
type SaveConfigRequest struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// VersionRequest 创建版本快照请求
type VersionRequest struct {
	Description string `json:"description"`
}

func projectIDFrom(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// writeAppError 配置接口统一的错误输出
func writeAppError(w http.ResponseWriter, r *http.Request, tag string, err error) {
	logIfInternal(tag, r, err)
	writeConfigError(w, apperr.HTTPStatus(err), apperr.Message(err))
}

// GetConfigHandler 获取节点配置或全局配置，不存在时创建默认配置
func (h *APIHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	projectID := projectIDFrom(r)
	switch r.URL.Query().Get("type") {
	case configTypeNode:
		cfg, err := h.configs.GetNodeConfig(r.Context(), projectID)
		if err != nil {
			writeAppError(w, r, "[Config]", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case configTypeGlobal:
		cfg, err := h.configs.GetGlobalConfig(r.Context(), projectID)
		if err != nil {
			writeAppError(w, r, "[Config]", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		writeConfigError(w, http.StatusBadRequest, "无效的配置类型")
	}
}

// SaveConfigHandler 保存节点配置或全局配置
func (h *APIHandler) SaveConfigHandler(w http.ResponseWriter, r *http.Request) {
	projectID := projectIDFrom(r)

	var req SaveConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeConfigError(w, http.StatusBadRequest, "缺少必要参数")
		return
	}
	if req.Type == "" || len(req.Config) == 0 || string(req.Config) == "null" {
		writeConfigError(w, http.StatusBadRequest, "缺少必要参数")
		return
	}

	var (
		saved interface{}
		err   error
	)
	switch req.Type {
	case configTypeNode:
		var cfg model.NodeConfig
		if json.Unmarshal(req.Config, &cfg) != nil {
			writeConfigError(w, http.StatusBadRequest, "节点配置格式不正确")
			return
		}
		saved, err = h.configs.SaveNodeConfig(r.Context(), projectID, &cfg)
	case configTypeGlobal:
		var cfg model.GlobalConfig
		if json.Unmarshal(req.Config, &cfg) != nil {
			writeConfigError(w, http.StatusBadRequest, "全局配置格式不正确")
			return
		}
		saved, err = h.configs.SaveGlobalConfig(r.Context(), projectID, &cfg)
	default:
		writeConfigError(w, http.StatusBadRequest, "无效的配置类型")
		return
	}

	if err != nil {
		logIfInternal("[Config]", r, err)
		if apperr.KindOf(err) == apperr.KindInternal {
			writeConfigError(w, http.StatusInternalServerError, "保存配置失败")
			return
		}
		writeConfigError(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "config": saved})
}

// loadDocument 读取项目当前配置
func (h *APIHandler) loadDocument(r *http.Request, projectID, kind string) (confdoc.Document, error) {
	var doc confdoc.Document
	if kind == configTypeNode || kind == configTypeAll {
		node, err := h.configs.GetNodeConfig(r.Context(), projectID)
		if err != nil {
			return doc, err
		}
		doc.NodeConfig = node
	}
	if kind == configTypeGlobal || kind == configTypeAll {
		global, err := h.configs.GetGlobalConfig(r.Context(), projectID)
		if err != nil {
			return doc, err
		}
		doc.GlobalConfig = global
	}
	return doc, nil
}

// ExportConfigHandler 导出配置文件
func (h *APIHandler) ExportConfigHandler(w http.ResponseWriter, r *http.Request) {
	projectID := projectIDFrom(r)
	q := r.URL.Query()

	kind := q.Get("type")
	if kind == "" {
		kind = configTypeAll
	}
	if kind != configTypeNode && kind != configTypeGlobal && kind != configTypeAll {
		writeConfigError(w, http.StatusBadRequest, "无效的配置类型")
		return
	}
	format, err := confdoc.ParseFormat(q.Get("format"))
	if err != nil {
		writeAppError(w, r, "[Export]", err)
		return
	}

	doc, err := h.loadDocument(r, projectID, kind)
	if err != nil {
		writeAppError(w, r, "[Export]", err)
		return
	}
	now := time.Now().UTC()
	doc.ExportedAt = &now

	data, err := confdoc.Export(doc, format)
	if err != nil {
		writeAppError(w, r, "[Export]", err)
		return
	}

	filename := confdoc.FileName(doc, projectID, format, now)
	w.Header().Set("Content-Type", format.ContentType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportConfigHandler 校验导入文件，apply=true 时写入配置
func (h *APIHandler) ImportConfigHandler(w http.ResponseWriter, r *http.Request) {
	projectID := projectIDFrom(r)
	q := r.URL.Query()

	formatName := q.Get("format")
	r.Body = http.MaxBytesReader(w, r.Body, confdoc.MaxImportSize+(1<<20))

	var body io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeConfigError(w, http.StatusBadRequest, "请选择要导入的文件")
			return
		}
		defer file.Close()
		if header.Size > confdoc.MaxImportSize {
			writeAppError(w, r, "[Import]", confdoc.ErrFileTooLarge)
			return
		}
		if formatName == "" {
			formatName = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		}
		body = file
	} else {
		body = r.Body
	}

	format, err := confdoc.ParseFormat(formatName)
	if err != nil {
		writeAppError(w, r, "[Import]", err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(body, confdoc.MaxImportSize+1))
	if err != nil {
		writeConfigError(w, http.StatusBadRequest, "读取文件失败")
		return
	}

	doc, err := confdoc.Import(data, format)
	if err != nil {
		writeAppError(w, r, "[Import]", err)
		return
	}

	resp := map[string]interface{}{"success": true, "applied": false}
	if q.Get("apply") == "true" {
		if doc.NodeConfig != nil {
			if doc.NodeConfig, err = h.configs.SaveNodeConfig(r.Context(), projectID, doc.NodeConfig); err != nil {
				writeAppError(w, r, "[Import]", err)
				return
			}
		}
		if doc.GlobalConfig != nil {
			if doc.GlobalConfig, err = h.configs.SaveGlobalConfig(r.Context(), projectID, doc.GlobalConfig); err != nil {
				writeAppError(w, r, "[Import]", err)
				return
			}
		}
		resp["applied"] = true
	}
	if doc.NodeConfig != nil {
		resp["nodeConfig"] = doc.NodeConfig
	}
	if doc.GlobalConfig != nil {
		resp["globalConfig"] = doc.GlobalConfig
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListVersionsHandler 列出版本快照，最新的在前
func (h *APIHandler) ListVersionsHandler(w http.ResponseWriter, r *http.Request) {
	versions, err := h.snapshots.List(projectIDFrom(r))
	if err != nil {
		writeAppError(w, r, "[Version]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// CreateVersionHandler 以当前配置创建版本快照
func (h *APIHandler) CreateVersionHandler(w http.ResponseWriter, r *http.Request) {
	projectID := projectIDFrom(r)

	var req VersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, "[Version]", confdoc.ErrDescriptionRequired)
		return
	}

	doc, err := h.loadDocument(r, projectID, configTypeAll)
	if err != nil {
		writeAppError(w, r, "[Version]", err)
		return
	}
	version, err := h.snapshots.Save(projectID, req.Description, doc.NodeConfig, doc.GlobalConfig)
	if err != nil {
		writeAppError(w, r, "[Version]", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"version": version})
}

// GetVersionHandler 返回用于恢复的版本快照，不会自动保存
func (h *APIHandler) GetVersionHandler(w http.ResponseWriter, r *http.Request) {
	version, err := h.snapshots.Get(projectIDFrom(r), mux.Vars(r)["vid"])
	if err != nil {
		writeAppError(w, r, "[Version]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"version": version})
}
