package listing

import (
	"context"

	"github.com/casafind/casafind/pkg/membership"
)

// PropertyStatus defines the lifecycle of a listed property.
type PropertyStatus string

const (
	PropertyStatusDraft     PropertyStatus = "draft"
	PropertyStatusPublished PropertyStatus = "published"
	PropertyStatusSold      PropertyStatus = "sold"
)

// Property is a single agent-owned listing. Timestamps are unix UTC seconds.
type Property struct {
	PropertyID     string
	AgentID        string
	Title          string
	Description    string
	PriceCents     int64
	Currency       string
	City           string
	Address        string
	Bedrooms       int
	Bathrooms      int
	AreaSqMeters   int64
	AmenitiesJSON  string
	Status         PropertyStatus
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// ProjectStatus defines the lifecycle of a development project.
type ProjectStatus string

const (
	ProjectStatusPlanned           ProjectStatus = "planned"
	ProjectStatusUnderConstruction ProjectStatus = "under_construction"
	ProjectStatusCompleted         ProjectStatus = "completed"
)

// Project is an agent-owned development with multiple units.
type Project struct {
	ProjectID         string
	AgentID           string
	Name              string
	Description       string
	City              string
	UnitsTotal        int
	CompletionUnixUTC int64
	Status            ProjectStatus
	CreatedUnixUTC    int64
	UpdatedUnixUTC    int64
}

// PropertyFilter narrows a property listing query.
type PropertyFilter struct {
	City   string
	Status PropertyStatus
	Limit  int
}

// Store is the persistence contract used by Service.
type Store interface {
	CreateProperty(ctx context.Context, property Property) (Property, error)
	GetProperty(ctx context.Context, propertyID string) (Property, error)
	ListProperties(ctx context.Context, filter PropertyFilter) ([]Property, error)
	UpdateProperty(ctx context.Context, property Property) error
	DeleteProperty(ctx context.Context, propertyID string) error
	CreateProject(ctx context.Context, project Project) (Project, error)
	GetProject(ctx context.Context, projectID string) (Project, error)
	ListProjects(ctx context.Context, agentID string, limit int) ([]Project, error)
	UpdateProject(ctx context.Context, project Project) error
	DeleteProject(ctx context.Context, projectID string) error
	SaveProperty(ctx context.Context, userID string, propertyID string, nowUnixUTC int64) error
	UnsaveProperty(ctx context.Context, userID string, propertyID string) error
	ListSavedProperties(ctx context.Context, userID string) ([]Property, error)
}

// CreditConsumer spends one membership credit before inventory is created.
type CreditConsumer interface {
	Consume(ctx context.Context, accountID string) (membership.Account, error)
}
