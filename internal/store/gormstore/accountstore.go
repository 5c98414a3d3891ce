package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casafind/casafind/internal/account"
	"github.com/casafind/casafind/pkg/membership"
	"gorm.io/gorm"
)

// CreateAgent inserts a new agent starting on the basic tier.
func (store *Store) CreateAgent(ctx context.Context, agent account.Agent) (account.Agent, error) {
	row := Agent{
		AgentID:        agent.AgentID,
		Email:          agent.Email,
		PasswordHash:   agent.PasswordHash,
		DisplayName:    agent.DisplayName,
		MembershipTier: membership.TierBasic.String(),
		CreatedAt:      time.Unix(agent.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:      time.Unix(agent.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return account.Agent{}, account.ErrEmailTaken
	}
	if err != nil {
		return account.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return mapAgentIdentity(row), nil
}

// GetAgentByEmail loads the identity view of an agent.
func (store *Store) GetAgentByEmail(ctx context.Context, email string) (account.Agent, error) {
	var row Agent
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.Agent{}, account.ErrAgentNotFound
		}
		return account.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return mapAgentIdentity(row), nil
}

// CreateUser inserts a new buyer.
func (store *Store) CreateUser(ctx context.Context, user account.User) (account.User, error) {
	row := User{
		UserID:       user.UserID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		DisplayName:  user.DisplayName,
		CreatedAt:    time.Unix(user.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return account.User{}, account.ErrEmailTaken
	}
	if err != nil {
		return account.User{}, fmt.Errorf("create user: %w", err)
	}
	return mapUserIdentity(row), nil
}

// GetUserByEmail loads a buyer by email.
func (store *Store) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	var row User
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.User{}, account.ErrUserNotFound
		}
		return account.User{}, fmt.Errorf("get user: %w", err)
	}
	return mapUserIdentity(row), nil
}

func mapAgentIdentity(row Agent) account.Agent {
	return account.Agent{
		AgentID:        row.AgentID,
		Email:          row.Email,
		PasswordHash:   row.PasswordHash,
		DisplayName:    row.DisplayName,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}
}

func mapUserIdentity(row User) account.User {
	return account.User{
		UserID:         row.UserID,
		Email:          row.Email,
		PasswordHash:   row.PasswordHash,
		DisplayName:    row.DisplayName,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}
}
