package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"maildash/backend/internal/auth"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage"
)

var (
	// ErrDeleteSelf 不允许删除当前登录账号
	ErrDeleteSelf = errors.New("cannot delete current user")
	// ErrLastAdmin 系统必须保留至少一个管理员
	ErrLastAdmin = errors.New("cannot remove the last admin")
)

// UserService 封装用户管理操作（仅管理员可用的部分在路由层限定）。
type UserService struct {
	repo storage.UserRepository
	log  *zap.Logger
}

// NewUserService 创建用户管理服务
func NewUserService(repo storage.UserRepository, log *zap.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

// List 返回全部用户
func (s *UserService) List() ([]domain.User, error) {
	return s.repo.ListUsers()
}

// Delete 删除用户并级联删除其数据。
//
// 不允许删除自己；删除管理员前检查系统里还有别的管理员。
func (s *UserService) Delete(actor *domain.User, userID string) error {
	if actor.ID == userID {
		return ErrDeleteSelf
	}

	target, err := s.repo.GetUserByID(userID)
	if err != nil {
		return err
	}

	if target.IsAdmin {
		admins, err := s.repo.CountAdmins()
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if err := s.repo.DeleteUser(userID); err != nil {
		return err
	}

	s.log.Info("user deleted",
		zap.String("user_id", userID),
		zap.String("username", target.Username),
		zap.String("deleted_by", actor.Username),
	)
	return nil
}

// SetAdmin 调整用户的管理员身份。
//
// 降级最后一个管理员会被拒绝。
func (s *UserService) SetAdmin(actor *domain.User, userID string, isAdmin bool) (*domain.User, error) {
	target, err := s.repo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if target.IsAdmin && !isAdmin {
		admins, err := s.repo.CountAdmins()
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}

	target.IsAdmin = isAdmin
	if err := s.repo.UpdateUser(target); err != nil {
		return nil, err
	}

	s.log.Info("user role changed",
		zap.String("user_id", userID),
		zap.Bool("is_admin", isAdmin),
		zap.String("changed_by", actor.Username),
	)
	return target, nil
}

// ResetPassword 管理员重置指定用户的登录密码。
func (s *UserService) ResetPassword(actor *domain.User, userID, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	target, err := s.repo.GetUserByID(userID)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	target.PasswordHash = hash
	if err := s.repo.UpdateUser(target); err != nil {
		return err
	}

	s.log.Info("user password reset",
		zap.String("user_id", userID),
		zap.String("username", target.Username),
		zap.String("reset_by", actor.Username),
	)
	return nil
}

// ChangePassword 修改当前用户的登录密码。
func (s *UserService) ChangePassword(actor *domain.User, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	actor.PasswordHash = hash
	return s.repo.UpdateUser(actor)
}
