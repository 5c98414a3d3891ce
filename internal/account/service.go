package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service registers and authenticates agents and buyers.
type Service struct {
	store Store
	nowFn func() int64
}

// NewService wires a Service.
func NewService(store Store, now func() int64) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now}, nil
}

// RegisterAgent creates a listing-agent account. New agents start on the
// basic tier with no refill history; the membership ensurer initializes the
// balance on first use.
func (service *Service) RegisterAgent(ctx context.Context, email string, password string, displayName string) (Agent, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return Agent{}, err
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return Agent{}, err
	}
	return service.store.CreateAgent(ctx, Agent{
		Email:          normalizedEmail,
		PasswordHash:   passwordHash,
		DisplayName:    strings.TrimSpace(displayName),
		CreatedUnixUTC: service.nowFn(),
	})
}

// RegisterUser creates a buyer account.
func (service *Service) RegisterUser(ctx context.Context, email string, password string, displayName string) (User, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return User{}, err
	}
	return service.store.CreateUser(ctx, User{
		Email:          normalizedEmail,
		PasswordHash:   passwordHash,
		DisplayName:    strings.TrimSpace(displayName),
		CreatedUnixUTC: service.nowFn(),
	})
}

// LoginAgent verifies agent credentials. An unknown email and a wrong
// password are indistinguishable to the caller.
func (service *Service) LoginAgent(ctx context.Context, email string, password string) (Agent, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return Agent{}, ErrInvalidCredentials
	}
	agent, err := service.store.GetAgentByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return Agent{}, ErrInvalidCredentials
		}
		return Agent{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)) != nil {
		return Agent{}, ErrInvalidCredentials
	}
	return agent, nil
}

// LoginUser verifies buyer credentials.
func (service *Service) LoginUser(ctx context.Context, email string, password string) (User, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	user, err := service.store.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidRegistration)
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
