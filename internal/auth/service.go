package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"maildash/backend/internal/auth/jwt"
	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage"
)

var (
	// ErrInvalidUsername 无效的用户名
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already exists")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationClosed 已有用户后仅管理员可注册新账号
	ErrRegistrationClosed = errors.New("registration requires admin")
)

// 用户名：3-32 位字母、数字、下划线或连字符
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{3,32}$`)

// Service 认证服务
type Service struct {
	userRepo storage.UserRepository
	tokens   *jwt.Manager
}

// NewService 创建认证服务
func NewService(userRepo storage.UserRepository, jwtCfg *config.JWTConfig) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   jwt.NewManager(jwtCfg.Secret, jwtCfg.Issuer, jwtCfg.AccessExpiry, jwtCfg.RefreshExpiry),
	}
}

// Tokens 返回底层的 JWT 管理器（供认证中间件使用）
func (s *Service) Tokens() *jwt.Manager {
	return s.tokens
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// RegistrationOpen 系统里还没有任何用户时开放匿名注册。
func (s *Service) RegistrationOpen() (bool, error) {
	total, err := s.userRepo.CountUsers()
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return total == 0, nil
}

// Register 注册新用户。
//
// 系统里还没有任何用户时开放注册，第一个用户自动成为管理员；
// 此后只有管理员（actor）能创建新账号。
func (s *Service) Register(actor *domain.User, username, password string) (*AuthResponse, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernameRegex.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	total, err := s.userRepo.CountUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	firstUser := total == 0
	if !firstUser && (actor == nil || !actor.IsAdmin) {
		return nil, ErrRegistrationClosed
	}

	if _, err := s.userRepo.GetUserByUsername(username); err == nil {
		return nil, ErrUsernameExists
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      firstUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.respond(user)
}

// Login 用户登录
func (s *Service) Login(username, password string) (*AuthResponse, error) {
	user, err := s.userRepo.GetUserByUsername(strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		// 用户不存在与密码错误返回同一个错误，避免枚举用户名
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.respond(user)
}

// Refresh 使用刷新令牌换发新令牌
func (s *Service) Refresh(refreshToken string) (*AuthResponse, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// 重新加载用户，令牌签发后被删除或降权的用户立即失效
	user, err := s.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		return nil, jwt.ErrInvalidToken
	}

	return s.respond(user)
}

// CurrentUser 根据访问令牌加载当前用户
func (s *Service) CurrentUser(accessToken string) (*domain.User, error) {
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetUserByID(claims.UserID)
}

func (s *Service) respond(user *domain.User) (*AuthResponse, error) {
	pair, err := s.tokens.GenerateTokenPair(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// ValidatePassword 校验密码强度（至少 8 位）
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
