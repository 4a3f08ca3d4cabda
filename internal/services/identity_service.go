package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Currency string
}

// IdentityService registers and authenticates users.
type IdentityService struct {
	storage  *storage.SQLiteRepository
	logger   *log.Logger
	hashCost int
}

func NewIdentityService(storage *storage.SQLiteRepository, logger *log.Logger) *IdentityService {
	return &IdentityService{
		storage:  storage,
		logger:   componentLogger(logger, log.ComponentIdentity),
		hashCost: bcrypt.DefaultCost,
	}
}

// SetHashCost changes the bcrypt cost. Tests use bcrypt.MinCost.
func (s *IdentityService) SetHashCost(cost int) {
	s.hashCost = cost
}

func (s *IdentityService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Register creates the user and seeds its default categories in one
// database transaction.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = core.DefaultCurrency
	}
	if username == "" || email == "" || in.Password == "" {
		return core.User{}, errors.New("username, email and password are required")
	}
	if !core.IsSupportedCurrency(currency) {
		return core.User{}, fmt.Errorf("unsupported currency %q", currency)
	}

	taken, err := s.storage.UsernameTaken(ctx, username)
	if err != nil {
		return core.User{}, err
	}
	if taken {
		return core.User{}, core.ErrDuplicateUsername
	}
	taken, err = s.storage.EmailTaken(ctx, email, 0)
	if err != nil {
		return core.User{}, err
	}
	if taken {
		return core.User{}, core.ErrDuplicateEmail
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return core.User{}, err
	}

	var user core.User
	err = s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		created, err := tx.CreateUser(ctx, core.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Currency:     currency,
		})
		if err != nil {
			return err
		}
		if _, err := seedDefaults(ctx, tx, created.ID); err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username)
	return user, nil
}

// Authenticate returns ErrAuthFailure for an unknown username and for a
// wrong password alike.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	user, err := s.storage.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrAuthFailure
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUserID, user.ID)
		return core.User{}, core.ErrAuthFailure
	}
	return user, nil
}

func (s *IdentityService) SetPassword(ctx context.Context, userID int64, newPassword string) error {
	if newPassword == "" {
		return errors.New("password is required")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.storage.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, userID)
	return nil
}

// ChangePassword verifies current before replacing it.
func (s *IdentityService) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return core.ErrAuthFailure
	}
	return s.SetPassword(ctx, userID, newPassword)
}

func (s *IdentityService) UpdateProfile(ctx context.Context, userID int64, email, currency string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !core.IsSupportedCurrency(currency) {
		return core.User{}, fmt.Errorf("unsupported currency %q", currency)
	}

	taken, err := s.storage.EmailTaken(ctx, email, userID)
	if err != nil {
		return core.User{}, err
	}
	if taken {
		return core.User{}, core.ErrDuplicateEmail
	}
	if err := s.storage.UpdateProfile(ctx, userID, email, currency); err != nil {
		return core.User{}, err
	}
	return s.storage.UserByID(ctx, userID)
}

// DeleteUser removes the user with every category, transaction, budget and
// session it owns.
func (s *IdentityService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.storage.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.InfoContext(ctx, "User deleted", log.FieldUserID, userID)
	return nil
}

func (s *IdentityService) UserByID(ctx context.Context, userID int64) (core.User, error) {
	return s.storage.UserByID(ctx, userID)
}

// UserByUsername and UserByEmail back the admin CLI.
func (s *IdentityService) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.storage.UserByEmail(ctx, email)
}

func (s *IdentityService) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return s.storage.UserByUsername(ctx, strings.TrimSpace(username))
}
