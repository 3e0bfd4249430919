package users

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of letters, digits, '.', '_' or '-'")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost}
}

// Register validates input, hashes the password and stores a new user account.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < 8 || !utf8.ValidString(password) {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       &models.Status{Active: true},
		Verification: &models.Verification{Status: models.VerificationUnverified},
		Balance:      &models.Balance{Currency: models.DefaultCurrency},
	}
	return s.repo.Create(ctx, u)
}

// VerifyCredentials returns the user when username and password match.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != nil && !u.Status.Active {
		return nil, ErrAccountDisabled
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 {
		return ErrInvalidUsername
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}
