package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"DHAdmin/core/apperr"
	"DHAdmin/core/auth"
	"DHAdmin/logger"

	"github.com/go-playground/validator/v10"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

var (
	requestValidatorOnce sync.Once
	requestValidator     *validator.Validate
)

func getRequestValidator() *validator.Validate {
	requestValidatorOnce.Do(func() {
		requestValidator = validator.New()
		requestValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		})
	})
	return requestValidator
}

// registerError 按 缺少字段 > 密码过短 > 邮箱格式 的顺序给出提示
func registerError(req *RegisterRequest) string {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	err := getRequestValidator().Struct(req)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return auth.ErrMissingFields.Message
	}
	var short, badEmail bool
	for _, fe := range verrs {
		switch {
		case fe.Tag() == "required":
			return auth.ErrMissingFields.Message
		case fe.Field() == "password":
			short = true
		case fe.Field() == "email":
			badEmail = true
		}
	}
	if short {
		return auth.ErrPasswordTooShort.Message
	}
	if badEmail {
		return "请提供有效的电子邮件地址"
	}
	return auth.ErrMissingFields.Message
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "无效的请求数据")
		return
	}
	if msg := registerError(&req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			logger.Warn("[Register] 邮箱已存在", logger.String("email", req.Email))
		}
		logIfInternal("[Register]", r, err)
		writeMessage(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "注册成功",
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"status":   user.Status,
		},
	})
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		writeMessage(w, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
		return
	}

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("[Login] 解析请求体失败", logger.ErrorField(err))
		writeMessage(w, http.StatusBadRequest, "邮箱和密码是必须的")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "邮箱和密码是必须的")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("[Login] 登录失败", logger.String("remote", clientIP(r)))
		}
		logIfInternal("[Login]", r, err)
		writeMessage(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}

	token, _, err := h.auth.IssueToken(user)
	if err != nil {
		logIfInternal("[Login]", r, err)
		writeMessage(w, http.StatusInternalServerError, apperr.GenericMessage)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenTTL().Seconds()),
		HttpOnly: false, // 前端需要读取
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	logger.Info("[Login] 登录成功", logger.String("userId", user.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "登录成功",
		"user":    user.Public(),
		"token":   token,
	})
}

// LogoutHandler 清除 cookie，配置了吊销列表时同时吊销令牌
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r); token != "" && h.auth.RevocationEnabled() {
		if claims, err := h.auth.VerifyToken(r.Context(), token); err == nil {
			if err := h.auth.Revoke(r.Context(), claims); err != nil {
				logger.Warn("[Logout] 吊销令牌失败", logger.ErrorField(err))
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, http.StatusOK, "登出成功")
}

// CurrentUserHandler 返回当前登录用户
func (h *APIHandler) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "未授权访问")
		return
	}
	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		logIfInternal("[User]", r, err)
		writeMessage(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

// ChangePasswordHandler 修改当前用户密码
func (h *APIHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "未授权访问")
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "无效的请求数据")
		return
	}
	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		logIfInternal("[Password]", r, err)
		writeMessage(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}
	writeMessage(w, http.StatusOK, "密码修改成功")
}
