// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements the account flows: password login, code based
// registration and reset, magic links, OAuth account linking and refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	authctx "codeberg.org/oliverandrich/studyhub/internal/auth"
	"codeberg.org/oliverandrich/studyhub/internal/events"
	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/email"
	"codeberg.org/oliverandrich/studyhub/internal/services/password"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
	"codeberg.org/oliverandrich/studyhub/internal/services/verification"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrMissingFields       = errors.New("required fields are missing")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrUserNotFound        = errors.New("user not found")
	ErrNoPassword          = errors.New("no password set for this account")
	ErrSamePassword        = errors.New("new password must differ from the current one")
	ErrInvalidToken        = errors.New("invalid or used login link")
	ErrTokenExpired        = errors.New("login link expired")
	ErrInvalidSessionToken = errors.New("invalid session")
	ErrProviderConflict    = errors.New("account is linked to another identity of this provider")
)

// Login methods recorded in metrics and events.
const (
	MethodPassword  = "password"
	MethodMagicLink = "magic_link"
)

// Deps bundles the collaborators of the service.
type Deps struct { //nolint:govet // fieldalignment not critical
	Repo         *repository.Repository
	Codec        *token.Codec
	Sessions     *session.Store
	Codes        *verification.Service
	Mailer       email.Mailer
	Events       events.Publisher
	Exchange     string
	BaseURL      string
	AccessTTL    time.Duration
	MagicLinkTTL time.Duration
}

type Service struct { //nolint:govet // fieldalignment not critical
	repo              *repository.Repository
	codec             *token.Codec
	sessions          *session.Store
	codes             *verification.Service
	mailer            email.Mailer
	events            events.Publisher
	exchange          string
	baseURL           string
	accessTTL         time.Duration
	magicLinkTTL      time.Duration
	passwordValidator *password.PasswordValidator
	now               func() time.Time
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.NewNoop()
	}
	return &Service{
		repo:              d.Repo,
		codec:             d.Codec,
		sessions:          d.Sessions,
		codes:             d.Codes,
		mailer:            d.Mailer,
		events:            d.Events,
		exchange:          d.Exchange,
		baseURL:           strings.TrimSuffix(d.BaseURL, "/"),
		accessTTL:         d.AccessTTL,
		magicLinkTTL:      d.MagicLinkTTL,
		passwordValidator: password.DefaultPasswordValidator(),
		now:               time.Now,
	}
}

// SetClock replaces the clock used for token expiry.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Codes returns the verification code service.
func (s *Service) Codes() *verification.Service {
	return s.codes
}

// PasswordValidator returns the password validator for use in handlers
func (s *Service) PasswordValidator() *password.PasswordValidator {
	return s.passwordValidator
}

// ValidateEmail normalizes and checks an address.
func ValidateEmail(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrMissingFields
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address || !strings.Contains(address[strings.LastIndex(address, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return address, nil
}

func (s *Service) validatePassword(plaintext string, attrs ...string) error {
	result := s.passwordValidator.Validate(plaintext, attrs...)
	if !result.Valid {
		return &password.PasswordValidationError{Errors: result.Errors}
	}
	return nil
}

// Login authenticates by email or username and password.
func (s *Service) Login(ctx context.Context, identifier, plaintext string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plaintext == "" {
		return nil, ErrMissingFields
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.repo.GetUserByEmail(ctx, identifier)
	} else {
		user, err = s.repo.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform a hash comparison to prevent timing attacks
			password.DummyVerify(plaintext)
			return nil, s.loginFailed(ctx, identifier, "user_not_found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	method, err := s.repo.GetAuthMethod(ctx, user.ID, models.ProviderEmail)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get auth method: %w", err)
	}
	if method == nil || !method.HasPassword() {
		password.DummyVerify(plaintext)
		return nil, s.loginFailed(ctx, identifier, "no_password")
	}

	if !password.Verify(*method.HashedPassword, plaintext) {
		return nil, s.loginFailed(ctx, identifier, "invalid_password")
	}

	slog.InfoContext(ctx, "login_success", "user_id", user.ID, "method", MethodPassword)
	metrics.Login(MethodPassword, true)
	s.publishLogin(ctx, user, MethodPassword)
	return user, nil
}

func (s *Service) loginFailed(ctx context.Context, identifier, reason string) error {
	slog.WarnContext(ctx, "login_failed", "identifier", identifier, "reason", reason)
	metrics.Login(MethodPassword, false)
	return ErrInvalidCredentials
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Code        string
}

// Register creates a password account after consuming a registration code.
// The code, the uniqueness checks and both inserts share one transaction.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	displayName := strings.TrimSpace(params.DisplayName)
	if params.Password == "" || displayName == "" || params.Code == "" {
		return nil, ErrMissingFields
	}
	address, err := ValidateEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := s.validatePassword(params.Password, address, displayName); err != nil {
		return nil, err
	}

	hash, err := password.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	username := strings.ToLower(displayName)
	user := &models.User{
		Email:         &address,
		EmailVerified: true,
		Username:      &username,
		DisplayName:   displayName,
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := s.codes.Consume(ctx, tx, address, params.Code, models.PurposeRegister); err != nil {
			return err
		}

		taken, err := tx.EmailExists(ctx, address)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		taken, err = tx.UsernameExists(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		return tx.CreateAuthMethod(ctx, &models.AuthMethod{
			UserID:         user.ID,
			Provider:       models.ProviderEmail,
			HashedPassword: &hash,
		})
	})
	if err != nil {
		slog.WarnContext(ctx, "register_failed", "email", address, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "register_success", "user_id", user.ID, "email", address)
	s.publishRegistered(ctx, user, models.ProviderEmail)
	return user, nil
}

// SendRegisterCode mails a registration code.
func (s *Service) SendRegisterCode(ctx context.Context, address string) error {
	address, err := ValidateEmail(address)
	if err != nil {
		return err
	}
	return s.codes.Issue(ctx, address, models.PurposeRegister)
}

// SendResetCode mails a password reset code to an existing account.
func (s *Service) SendResetCode(ctx context.Context, address string) error {
	address, err := ValidateEmail(address)
	if err != nil {
		return err
	}
	exists, err := s.repo.EmailExists(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return s.codes.Issue(ctx, address, models.PurposeReset)
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return ErrMissingFields
	}
	if currentPassword == newPassword {
		return ErrSamePassword
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	method, err := s.repo.GetAuthMethod(ctx, userID, models.ProviderEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoPassword
	}
	if err != nil {
		return fmt.Errorf("failed to get auth method: %w", err)
	}
	if !method.HasPassword() {
		return ErrNoPassword
	}

	if !password.Verify(*method.HashedPassword, currentPassword) {
		slog.WarnContext(ctx, "change_password_failed", "user_id", userID, "reason", "invalid_password")
		return ErrInvalidCredentials
	}

	if err := s.validatePassword(newPassword, user.EmailAddress(), user.DisplayName); err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.InfoContext(ctx, "password_changed", "user_id", userID)
	return nil
}

// ResetPassword consumes a reset code, stores the new password and signs the
// user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, address, code, newPassword string) error {
	if code == "" || newPassword == "" {
		return ErrMissingFields
	}
	address, err := ValidateEmail(address)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var revoked int64
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.GetUserByEmail(ctx, address)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if err := s.validatePassword(newPassword, address, user.DisplayName); err != nil {
			return err
		}
		if err := s.codes.Consume(ctx, tx, address, code, models.PurposeReset); err != nil {
			return err
		}

		err = tx.SetPasswordHash(ctx, user.ID, hash)
		if errors.Is(err, repository.ErrNotFound) {
			// magic link and OAuth accounts get their first password here
			err = tx.CreateAuthMethod(ctx, &models.AuthMethod{
				UserID:         user.ID,
				Provider:       models.ProviderEmail,
				HashedPassword: &hash,
			})
		}
		if err != nil {
			return err
		}

		revoked, err = s.sessions.RevokeAll(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "password_reset", "email", address, "revoked_sessions", revoked)
	return nil
}

// CheckEmail reports whether an account uses address.
func (s *Service) CheckEmail(ctx context.Context, address string) (bool, error) {
	address, err := ValidateEmail(address)
	if err != nil {
		return false, err
	}
	return s.repo.EmailExists(ctx, address)
}

// Account states reported by CheckUserStatus.
const (
	StatusNotRegistered = "not_registered"
	StatusPasswordUser  = "password_user"
	StatusMagicLinkOnly = "magic_link_only"
)

// UserStatus tells the login form which flow to offer.
type UserStatus struct {
	Exists      bool   `json:"exists"`
	Status      string `json:"status"`
	HasPassword bool   `json:"hasPassword"`
}

// CheckUserStatus reports whether address is registered and has a password.
func (s *Service) CheckUserStatus(ctx context.Context, address string) (*UserStatus, error) {
	address, err := ValidateEmail(address)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		return &UserStatus{Status: StatusNotRegistered}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	method, err := s.repo.GetAuthMethod(ctx, user.ID, models.ProviderEmail)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get auth method: %w", err)
	}
	if method != nil && method.HasPassword() {
		return &UserStatus{Exists: true, Status: StatusPasswordUser, HasPassword: true}, nil
	}
	return &UserStatus{Exists: true, Status: StatusMagicLinkOnly}, nil
}

func (s *Service) publishRegistered(ctx context.Context, user *models.User, provider string) {
	s.publish(ctx, events.KeyUserRegistered, events.UserRegistered{
		UserID:   user.ID,
		Email:    user.EmailAddress(),
		Name:     user.Name(),
		Provider: provider,
		At:       s.now().UTC(),
	})
}

func (s *Service) publishLogin(ctx context.Context, user *models.User, method string) {
	s.publish(ctx, events.KeyUserLoggedIn, events.UserLoggedIn{
		UserID: user.ID,
		Email:  user.EmailAddress(),
		Method: method,
		At:     s.now().UTC(),
	})
}

// publish never fails the calling flow.
func (s *Service) publish(ctx context.Context, key string, event any) {
	if err := s.events.Publish(ctx, s.exchange, key, event, authctx.RequestID(ctx)); err != nil {
		slog.WarnContext(ctx, "event_publish_failed", "key", key, "error", err)
	}
}
