// Package auth registers administrators, checks their credentials and issues
// the signed session tokens the console sends back on every request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/logger"
	"DHAdmin/model"
	"DHAdmin/repository"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "注册失败，可能是邮箱已被使用")
	ErrInvalidCredentials = apperr.New(apperr.KindAuthentication, "邮箱或密码不正确")
	ErrInvalidToken       = apperr.New(apperr.KindAuthentication, "无效或过期的令牌")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "找不到用户")

	ErrMissingFields    = apperr.Validation("用户名、邮箱和密码都是必填项")
	ErrPasswordTooShort = apperr.Validation(fmt.Sprintf("密码必须至少包含%d个字符", MinPasswordLength))
	ErrPasswordTooLong  = apperr.Validation(fmt.Sprintf("密码不能超过%d个字节", MaxPasswordBytes))
	ErrWrongPassword    = apperr.New(apperr.KindAuthentication, "当前密码不正确")
)

// DefaultTokenTTL 令牌有效期 30 天
const DefaultTokenTTL = 30 * 24 * time.Hour

// Denylist revokes tokens before they expire.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Service is the session issuer.
type Service struct {
	users    repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
	hashCost int
	denylist Denylist
	now      func() time.Time

	// 未知邮箱时用于比对的哈希，使耗时与密码错误时接近
	dummyHash string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDenylist(d Denylist) Option {
	return func(s *Service) { s.denylist = d }
}

func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService creates the session issuer. secret signs every token.
func NewService(users repository.UserRepository, secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	s := &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: DefaultTokenTTL,
		hashCost: DefaultHashCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	dummy, err := HashPassword("dhadmin-timing-equaliser", s.hashCost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// NormalizeEmail trims and lowercases an address so lookups are case insensitive.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// Register creates an active user with a hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = normalizeUsername(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	user := &model.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     &email,
		Password:  hash,
		Status:    model.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrEmailTaken
		}
		return nil, apperr.Internal(err)
	}

	logger.Info("[Register] 用户注册成功", logger.String("userId", user.ID))
	return user, nil
}

// Authenticate returns ErrInvalidCredentials for an unknown email, a wrong
// password and a disabled account alike.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		CheckPasswordHash(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status != model.UserStatusActive {
		logger.Warn("[Login] 已禁用账号尝试登录", logger.String("userId", user.ID))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// 登录时间更新失败不影响登录
		logger.Warn("[Login] 更新最后登录时间失败", logger.String("userId", user.ID), logger.ErrorField(err))
	} else {
		user.LastLoginTime = &now
	}
	return user, nil
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user *model.User) (string, time.Time, error) {
	token, expiresAt, err := generateToken(user, s.secret, s.now(), s.tokenTTL)
	if err != nil {
		return "", time.Time{}, apperr.Internal(err)
	}
	return token, expiresAt, nil
}

// TokenTTL is the lifetime of issued tokens.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// VerifyToken checks signature, expiry and, when configured, the denylist.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := parseToken(token, s.secret, s.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "令牌校验暂不可用", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// Revoke denylists the token until its own expiry. Without a denylist logout
// only clears the client cookie.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if s.denylist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.TTL(s.now())); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// RevocationEnabled reports whether logout invalidates tokens server-side.
func (s *Service) RevocationEnabled() bool {
	return s.denylist != nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("当前密码和新密码都是必填项")
	}
	if len([]rune(newPassword)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(newPassword) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPasswordHash(oldPassword, user.Password) {
		return ErrWrongPassword
	}
	hash, err := HashPassword(newPassword, s.hashCost)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperr.Internal(err)
	}
	logger.Info("[Password] 用户修改密码", logger.String("userId", userID))
	return nil
}
