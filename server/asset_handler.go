package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"DHAdmin/logger"
	"DHAdmin/storage"

	"github.com/gorilla/mux"
)

// UploadBackgroundHandler 上传节点背景图片或视频
func (h *APIHandler) UploadBackgroundHandler(w http.ResponseWriter, r *http.Request) {
	if h.assets == nil {
		writeConfigError(w, http.StatusServiceUnavailable, "素材存储未启用")
		return
	}
	projectID := projectIDFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxVideoSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(w, r, "[Asset]", storage.ErrVideoTooLarge)
			return
		}
		writeConfigError(w, http.StatusBadRequest, "请选择要上传的文件")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeConfigError(w, http.StatusBadRequest, "请选择要上传的文件")
		return
	}
	defer file.Close()

	asset, err := h.assets.Upload(r.Context(), projectID, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeAppError(w, r, "[Asset]", err)
		return
	}

	logger.Info("[Asset] 背景素材已上传",
		logger.String("projectId", projectID),
		logger.String("objectKey", asset.ObjectKey),
		logger.Int64("size", asset.Size))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"url":       asset.URL,
		"type":      asset.Type,
		"objectKey": asset.ObjectKey,
	})
}

// MediaHandler 从对象存储读取已上传的素材
func (h *APIHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	if h.assets == nil {
		http.NotFound(w, r)
		return
	}
	obj, info, err := h.assets.Open(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		logIfInternal("[Media]", r, err)
		http.NotFound(w, r)
		return
	}
	defer obj.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 对象名不可变，缓存一年

	if _, err := io.Copy(w, obj); err != nil {
		logger.Warn("[Media] 读取素材失败",
			logger.String("objectKey", info.Key),
			logger.ErrorField(err))
	}
}
