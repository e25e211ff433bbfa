package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Roles carried in session tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const referralCodePrefix = "KIRDA"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
	Clock  clockwork.Clock
	Log    *zap.Logger
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, clock clockwork.Clock, log *zap.Logger) *AuthService {
	return &AuthService{DB: db, Secret: []byte(secret), TTL: ttl, Clock: clock, Log: log}
}

type RegisterRequest struct {
	Username         string `json:"username" validate:"required,min=3,max=32"`
	Password         string `json:"password" validate:"required,min=6,max=128"`
	ReferralCode     string `json:"referral_code" validate:"omitempty,max=16"`
	RecoveryQuestion string `json:"recovery_question" validate:"omitempty,max=200"`
	RecoveryAnswer   string `json:"recovery_answer" validate:"required_with=RecoveryQuestion,max=200"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RecoverRequest struct {
	Username       string `json:"username" validate:"required"`
	RecoveryAnswer string `json:"recovery_answer" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=6,max=128"`
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if n := len(username); n < 3 || n > 32 {
		return nil, validationf("username must be 3 to 32 characters")
	}
	if len(req.Password) < 6 {
		return nil, validationf("password must be at least 6 characters")
	}

	db := s.DB.WithContext(ctx)

	var taken int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return nil, conflictf("username already exists")
	}

	var referredBy *string
	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		ok, err := s.ReferralCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, validationf("invalid referral code")
		}
		referredBy = &code
	}

	hash, err := HashSecret(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:         username,
		PasswordHash:     hash,
		ReferredBy:       referredBy,
		RecoveryQuestion: strings.TrimSpace(req.RecoveryQuestion),
	}
	if req.RecoveryAnswer != "" {
		if user.RecoveryAnswerHash, err = HashSecret(normalizeAnswer(req.RecoveryAnswer)); err != nil {
			return nil, err
		}
	}

	if err := s.createWithReferralCode(ctx, user); err != nil {
		return nil, err
	}
	s.Log.Info("user registered", zap.String("user_id", user.ID), zap.Bool("referred", referredBy != nil))
	return user, nil
}

// createWithReferralCode retries on the rare referral code collision.
func (s *AuthService) createWithReferralCode(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt < 5; attempt++ {
		user.ReferralCode = newReferralCode()
		err := s.DB.WithContext(ctx).Create(user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create user: %w", err)
		}
		var sameName int64
		s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&sameName)
		if sameName > 0 {
			return conflictf("username already exists")
		}
		user.ID = ""
	}
	return fmt.Errorf("could not allocate a unique referral code")
}

func newReferralCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referralCodePrefix + strings.ToUpper(hex[:6])
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(req.Username)).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err != nil || !CheckSecret(req.Password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.issue(&user)
}

// Recover resets the password when the recovery answer matches.
func (s *AuthService) Recover(ctx context.Context, req RecoverRequest) error {
	if len(req.NewPassword) < 6 {
		return validationf("password must be at least 6 characters")
	}
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(req.Username)).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	if err != nil || user.RecoveryAnswerHash == "" || !CheckSecret(normalizeAnswer(req.RecoveryAnswer), user.RecoveryAnswerHash) {
		return fmt.Errorf("%w: recovery answer does not match", ErrUnauthorized)
	}

	hash, err := HashSecret(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.Log.Info("password recovered", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check referral code: %w", err)
	}
	return n > 0, nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	now := s.Clock.Now()
	role := RoleUser
	if user.IsAdmin {
		role = RoleAdmin
	}
	exp := now.Add(s.TTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp, User: user}, nil
}

// ParseToken validates a session token and returns its claims.
func (s *AuthService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.Clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims, nil
}

// EnsureAdmin creates the admin account on first start. An existing account is
// left alone apart from restoring its admin flag.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	db := s.DB.WithContext(ctx)
	var user models.User
	err := db.First(&user, "username = ?", username).Error
	if err == nil {
		if !user.IsAdmin {
			if err := db.Model(&user).Update("is_admin", true).Error; err != nil {
				return nil, fmt.Errorf("promote admin: %w", err)
			}
			user.IsAdmin = true
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if password == "" {
		return nil, validationf("ADMIN_PASSWORD is required to create the admin account")
	}

	hash, err := HashSecret(password)
	if err != nil {
		return nil, err
	}
	user = models.User{Username: username, PasswordHash: hash, IsAdmin: true}
	if err := s.createWithReferralCode(ctx, &user); err != nil {
		return nil, err
	}
	s.Log.Info("admin account created", zap.String("username", username))
	return &user, nil
}
