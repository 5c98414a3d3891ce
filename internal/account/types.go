package account

import "context"

// Role distinguishes listing agents from buyers in issued credentials.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Agent is the identity view of a listing agent. Membership state is owned
// by the membership package and not duplicated here.
type Agent struct {
	AgentID        string
	Email          string
	PasswordHash   string
	DisplayName    string
	CreatedUnixUTC int64
}

// User is a buyer account.
type User struct {
	UserID         string
	Email          string
	PasswordHash   string
	DisplayName    string
	CreatedUnixUTC int64
}

// Store is the persistence contract used by Service.
type Store interface {
	CreateAgent(ctx context.Context, agent Agent) (Agent, error)
	GetAgentByEmail(ctx context.Context, email string) (Agent, error)
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}
