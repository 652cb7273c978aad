package server

import (
	"net/http"

	"DHAdmin/core/projectconf"

	"github.com/gorilla/mux"
)

// projectRoute 校验路径中的项目ID
func projectRoute(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !projectconf.ValidProjectID(projectIDFrom(r)) {
			writeAppError(w, r, "[Config]", projectconf.ErrInvalidProjectID)
			return
		}
		next(w, r)
	}
}

// NewRouter registers every endpoint on a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoveryMiddleware, loggingMiddleware, corsMiddleware)

	protected := func(next http.HandlerFunc) http.HandlerFunc {
		return h.AuthMiddleware(next)
	}
	project := func(next http.HandlerFunc) http.HandlerFunc {
		return h.AuthMiddleware(projectRoute(next))
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/logout", h.LogoutHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/user", protected(h.CurrentUserHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/auth/password", protected(h.ChangePasswordHandler)).Methods(http.MethodPut, http.MethodOptions)

	// 项目配置
	router.HandleFunc("/api/projects/{id}/config", project(h.GetConfigHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/projects/{id}/config", project(h.SaveConfigHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/config/export", project(h.ExportConfigHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/projects/{id}/config/import", project(h.ImportConfigHandler)).Methods(http.MethodPost, http.MethodOptions)

	// 版本快照
	router.HandleFunc("/api/projects/{id}/versions", project(h.ListVersionsHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/projects/{id}/versions", project(h.CreateVersionHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/versions/{vid}", project(h.GetVersionHandler)).Methods(http.MethodGet, http.MethodOptions)

	// 背景素材
	router.HandleFunc("/api/projects/{id}/background", project(h.UploadBackgroundHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/media/{key:.+}", h.MediaHandler).Methods(http.MethodGet, http.MethodHead)

	// 配置变更推送
	router.HandleFunc("/ws/projects/{id}/config", project(h.ConfigStreamHandler)).Methods(http.MethodGet)

	return router
}
