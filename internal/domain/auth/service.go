package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
	maxActiveSessions      = 10
	revokedRetention       = 30 * 24 * time.Hour
)

// Service contains all business logic for authentication
type Service struct {
	users              UserRepositoryInterface
	jwt                jwtService
	refreshTokenPepper string
	refreshTTL         time.Duration
	now                func() time.Time
}

type LoginResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

func NewService(users UserRepositoryInterface, jwt jwtService, refreshTokenPepper string, refreshTTL time.Duration) *Service {
	return &Service{
		users:              users,
		jwt:                jwt,
		refreshTokenPepper: refreshTokenPepper,
		refreshTTL:         refreshTTL,
		now:                time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	role := UserRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = RoleGuest
	}
	if role != RoleGuest && role != RoleHost {
		return nil, ErrInvalidRole
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hashedPassword,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest, userAgent, ip string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.IsBanned {
		return nil, ErrAccountBanned
	}
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	db := s.users.DB().WithContext(ctx)
	if err := CheckPassword(req.Password, user.PasswordHash); err != nil {
		failedAttempts := user.FailedLoginAttempts + 1
		updates := map[string]any{"failed_login_attempts": failedAttempts}
		if failedAttempts >= maxFailedLoginAttempts {
			updates["locked_until"] = now.Add(lockoutDuration)
		}
		if updateErr := db.Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; updateErr != nil {
			return nil, updateErr
		}
		if failedAttempts >= maxFailedLoginAttempts {
			log.Printf("auth_lockout user_id=%d attempts=%d", user.ID, failedAttempts)
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := db.Model(&User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
		}).Error; err != nil {
			return nil, err
		}
	}

	accessToken, err := s.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}

	refreshRaw, refreshHash, err := generateOpaqueRefreshToken(s.refreshTokenPepper)
	if err != nil {
		return nil, err
	}
	if err := db.Create(&RefreshToken{
		UserID:    user.ID,
		TokenHash: refreshHash,
		FamilyID:  uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL),
		UserAgent: nullableString(userAgent),
		IP:        nullableString(ip),
		CreatedAt: now,
	}).Error; err != nil {
		return nil, err
	}

	s.revokeOldSessions(ctx, user.ID, now)

	user.PasswordHash = ""
	return &LoginResult{User: user, AccessToken: accessToken, RefreshToken: refreshRaw}, nil
}

// RefreshSession rotates a refresh token. Presenting an already rotated or
// revoked token revokes every token in its family.
func (s *Service) RefreshSession(ctx context.Context, refreshRaw, userAgent, ip string) (*RefreshResult, error) {
	now := s.now()
	hash := hashTokenWithPepper(refreshRaw, s.refreshTokenPepper)
	var result *RefreshResult
	var reused bool

	err := s.users.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var current RefreshToken
		if err := q.Where("token_hash = ?", hash).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		if !current.ExpiresAt.After(now) {
			return ErrInvalidRefreshToken
		}

		if current.UsedAt != nil || current.RevokedAt != nil {
			if err := tx.Model(&RefreshToken{}).Where("id = ?", current.ID).Update("reuse_detected_at", now).Error; err != nil {
				return err
			}
			if err := tx.Model(&RefreshToken{}).Where("family_id = ? AND revoked_at IS NULL", current.FamilyID).Update("revoked_at", now).Error; err != nil {
				return err
			}
			reused = true
			return nil
		}

		var user User
		if err := tx.First(&user, current.UserID).Error; err != nil {
			return err
		}
		if user.IsBanned {
			if err := tx.Model(&RefreshToken{}).Where("family_id = ? AND revoked_at IS NULL", current.FamilyID).Update("revoked_at", now).Error; err != nil {
				return err
			}
			return ErrAccountBanned
		}

		accessToken, err := s.jwt.GenerateToken(user.ID, string(user.Role))
		if err != nil {
			return err
		}
		newRaw, newHash, err := generateOpaqueRefreshToken(s.refreshTokenPepper)
		if err != nil {
			return err
		}

		if err := tx.Model(&RefreshToken{}).Where("id = ?", current.ID).Updates(map[string]any{
			"used_at":    now,
			"revoked_at": now,
		}).Error; err != nil {
			return err
		}
		rotatedFrom := current.ID
		if err := tx.Create(&RefreshToken{
			UserID:      user.ID,
			TokenHash:   newHash,
			FamilyID:    current.FamilyID,
			RotatedFrom: &rotatedFrom,
			ExpiresAt:   now.Add(s.refreshTTL),
			UserAgent:   nullableString(userAgent),
			IP:          nullableString(ip),
			CreatedAt:   now,
		}).Error; err != nil {
			return err
		}

		result = &RefreshResult{AccessToken: accessToken, RefreshToken: newRaw}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reused {
		log.Printf("auth_refresh_reuse token_hash_prefix=%s", hash[:8])
		return nil, ErrRefreshTokenReused
	}
	return result, nil
}

func (s *Service) Logout(ctx context.Context, refreshRaw string) error {
	hash := hashTokenWithPepper(refreshRaw, s.refreshTokenPepper)
	return s.users.DB().WithContext(ctx).
		Model(&RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", s.now()).Error
}

func (s *Service) GetMe(ctx context.Context, userID int64) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// PurgeSessions deletes expired refresh tokens and revoked ones past the
// retention window.
func (s *Service) PurgeSessions(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.users.DB().WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND created_at < ?)", now, now.Add(-revokedRetention)).
		Delete(&RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *Service) revokeOldSessions(ctx context.Context, userID int64, now time.Time) {
	var keep []int64
	db := s.users.DB().WithContext(ctx)
	if err := db.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(maxActiveSessions).
		Pluck("id", &keep).Error; err != nil {
		log.Printf("auth_session_trim_error user_id=%d error=%v", userID, err)
		return
	}
	if len(keep) < maxActiveSessions {
		return
	}
	if err := db.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND id NOT IN ?", userID, keep).
		Update("revoked_at", now).Error; err != nil {
		log.Printf("auth_session_trim_error user_id=%d error=%v", userID, err)
	}
}
