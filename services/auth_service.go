package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"firecontest-backend/models"
	"firecontest-backend/utils"
	"firecontest-backend/utils/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	// bcrypt only accepts up to 72 bytes.
	maxPasswordLength = 72
)

// AuthService owns both credential domains: players and admins.
type AuthService struct {
	DB          *gorm.DB
	Tokens      *TokenService
	Notifier    Notifier
	ResetTTL    time.Duration
	FrontendURL string
	BcryptCost  int
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *TokenService, notifier Notifier, resetTTL time.Duration, frontendURL string) *AuthService {
	return &AuthService{
		DB:          db,
		Tokens:      tokens,
		Notifier:    orNoop(notifier),
		ResetTTL:    resetTTL,
		FrontendURL: frontendURL,
		BcryptCost:  bcrypt.DefaultCost,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return validation("Email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validation("Invalid email address")
	}
	return checkPasswordLength(password)
}

func checkPasswordLength(password string) error {
	if len(password) < minPasswordLength {
		return validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return validation(fmt.Sprintf("Password must be at most %d bytes", maxPasswordLength))
	}
	return nil
}

// Register creates a player account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" {
		return nil, validation("Username is required")
	}
	if err := validateCredentials(email, in.Password); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, email, in.Password, ErrUserExists)
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(user.ID, AudienceUser)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: user.ID, Username: user.Username}, nil
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, dupErr error) (*models.User, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return nil, dupErr
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login checks a player's email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validation("Email and password are required")
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCreds
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.Tokens.Issue(user.ID, AudienceUser)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: user.ID, Username: user.Username}, nil
}

// ForgotPassword issues a reset token when the email is known. The caller gets
// the same outcome either way so addresses cannot be probed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validation("Email is required")
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Infof("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	hash := utils.HashToken(token)
	expires := s.now().Add(s.ResetTTL)

	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"reset_token_hash": hash,
			"reset_expires_at": expires,
		}).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	subject, body := resetPasswordEmail(s.FrontendURL, token, user.ID)
	s.Notifier.Notify(user.Email, subject, body)
	return nil
}

// ResetPassword consumes a reset token. userID is optional; when given it must
// match the token's owner. A token works exactly once.
func (s *AuthService) ResetPassword(ctx context.Context, token, userID, newPassword string) error {
	if token == "" || newPassword == "" {
		return validation("Token and new password are required")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}

	hash := utils.HashToken(token)
	q := s.DB.WithContext(ctx).Where("reset_token_hash = ?", hash)
	if userID != "" {
		q = q.Where("id = ?", userID)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetToken
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return ErrResetToken
	}

	pwHash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	// Conditional on the hash so two concurrent resets cannot both succeed.
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_token_hash = ?", user.ID, hash).
		Updates(map[string]interface{}{
			"password_hash":    pwHash,
			"reset_token_hash": nil,
			"reset_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrResetToken
	}
	return nil
}

// PurgeExpiredResetTokens clears tokens past their expiry.
func (s *AuthService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("reset_token_hash IS NOT NULL AND reset_expires_at < ?", s.now()).
		Updates(map[string]interface{}{
			"reset_token_hash": nil,
			"reset_expires_at": nil,
		})
	return res.RowsAffected, res.Error
}

// AdminLogin authenticates against the admin credential domain.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validation("Email and password are required")
	}

	var admin models.Admin
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAdminCreds
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidAdminCreds
	}

	token, err := s.Tokens.Issue(admin.ID, AudienceAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: admin.ID}, nil
}

// CreateAdmin is used by the seed-admin command. An existing admin with the
// same email gets its password replaced.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	var admin models.Admin
	err = s.DB.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	switch {
	case err == nil:
		admin.PasswordHash = hash
		if err := s.DB.WithContext(ctx).Save(&admin).Error; err != nil {
			return nil, fmt.Errorf("failed to update admin: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin = models.Admin{ID: uuid.NewString(), Email: email, PasswordHash: hash}
		if err := s.DB.WithContext(ctx).Create(&admin).Error; err != nil {
			return nil, fmt.Errorf("failed to create admin: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	return &admin, nil
}

// AdminCreateUser lets an admin provision a player account directly.
func (s *AuthService) AdminCreateUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" {
		return nil, validation("Username is required")
	}
	if err := validateCredentials(email, in.Password); err != nil {
		return nil, err
	}
	return s.createUser(ctx, username, email, in.Password, ErrEmailExists)
}

// ListUsers returns every player, newest first. Hashes are never serialized.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// AdminEmails is used for operational notifications.
func (s *AuthService) AdminEmails(ctx context.Context) ([]string, error) {
	var emails []string
	if err := s.DB.WithContext(ctx).Model(&models.Admin{}).Pluck("email", &emails).Error; err != nil {
		return nil, fmt.Errorf("failed to list admin emails: %w", err)
	}
	return emails, nil
}
