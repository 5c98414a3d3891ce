package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Agent represents the agents table. Membership columns live on the agent
// row so the lifecycle operations are single-row updates.
type Agent struct {
	AgentID             string `gorm:"type:uuid;primaryKey"`
	Email               string `gorm:"not null;uniqueIndex:uniq_agents_email"`
	PasswordHash        string `gorm:"not null"`
	DisplayName         string
	MembershipTier      string `gorm:"not null;default:basic"`
	CreditBalance       int64  `gorm:"not null;default:0"`
	MembershipExpiresAt *time.Time
	CreditsRefilledAt   *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (Agent) TableName() string { return "agents" }

func (agent *Agent) BeforeCreate(tx *gorm.DB) error {
	if agent.AgentID == "" {
		agent.AgentID = uuid.NewString()
	}
	return nil
}

// User represents the users table (buyers).
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"not null;uniqueIndex:uniq_users_email"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	CreatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// Property mirrors the properties table.
type Property struct {
	PropertyID   string `gorm:"type:uuid;primaryKey"`
	AgentID      string `gorm:"type:uuid;not null;index:idx_properties_agent"`
	Title        string `gorm:"not null"`
	Description  string
	PriceCents   int64  `gorm:"not null"`
	Currency     string `gorm:"not null"`
	City         string `gorm:"not null;index:idx_properties_city_status,priority:1"`
	Address      string
	Bedrooms     int
	Bathrooms    int
	AreaSqMeters int64
	Amenities    datatypes.JSON `gorm:"type:jsonb;not null"`
	Status       string         `gorm:"not null;index:idx_properties_city_status,priority:2"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_properties_created"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (Property) TableName() string { return "properties" }

func (property *Property) BeforeCreate(tx *gorm.DB) error {
	if property.PropertyID == "" {
		property.PropertyID = uuid.NewString()
	}
	return nil
}

// Project mirrors the projects table.
type Project struct {
	ProjectID    string `gorm:"type:uuid;primaryKey"`
	AgentID      string `gorm:"type:uuid;not null;index:idx_projects_agent"`
	Name         string `gorm:"not null"`
	Description  string
	City         string `gorm:"not null"`
	UnitsTotal   int    `gorm:"not null"`
	CompletionAt *time.Time
	Status       string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Project) TableName() string { return "projects" }

func (project *Project) BeforeCreate(tx *gorm.DB) error {
	if project.ProjectID == "" {
		project.ProjectID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table. Rows are immutable; the
// payment reference is unique so a replayed settlement cannot insert twice.
type Transaction struct {
	TransactionID    string         `gorm:"type:uuid;primaryKey"`
	AgentID          string         `gorm:"type:uuid;not null;index:idx_transactions_agent"`
	AmountCents      int64          `gorm:"not null"`
	Currency         string         `gorm:"not null"`
	Status           string         `gorm:"not null"`
	PaymentReference string         `gorm:"not null;uniqueIndex:uniq_transactions_payment_reference"`
	Metadata         datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt        time.Time      `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// SavedProperty mirrors the saved_properties bookmark table.
type SavedProperty struct {
	UserID     string    `gorm:"type:uuid;primaryKey"`
	PropertyID string    `gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (SavedProperty) TableName() string { return "saved_properties" }

// Models lists every table for schema migration.
func Models() []any {
	return []any{&Agent{}, &User{}, &Property{}, &Project{}, &Transaction{}, &SavedProperty{}}
}
