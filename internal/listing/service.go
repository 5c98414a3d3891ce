package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultListLimit = 50

// Service contains the marketplace inventory logic over a Store. Creating
// inventory spends one membership credit through the CreditConsumer.
type Service struct {
	store   Store
	credits CreditConsumer
	nowFn   func() int64
}

// NewService wires a Service.
func NewService(store Store, credits CreditConsumer, now func() int64) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: credit consumer dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, credits: credits, nowFn: now}, nil
}

// CreateProperty spends one credit and persists the listing. Insufficient
// credits abort before anything is written.
func (service *Service) CreateProperty(ctx context.Context, agentID string, draft Property) (Property, error) {
	if err := validateProperty(draft); err != nil {
		return Property{}, err
	}
	if _, err := service.credits.Consume(ctx, agentID); err != nil {
		return Property{}, err
	}
	nowUnixUTC := service.nowFn()
	draft.AgentID = agentID
	if draft.Status == "" {
		draft.Status = PropertyStatusPublished
	}
	if draft.AmenitiesJSON == "" {
		draft.AmenitiesJSON = "[]"
	}
	draft.CreatedUnixUTC = nowUnixUTC
	draft.UpdatedUnixUTC = nowUnixUTC
	return service.store.CreateProperty(ctx, draft)
}

// GetProperty loads a single listing.
func (service *Service) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	return service.store.GetProperty(ctx, propertyID)
}

// ListProperties returns listings matching the filter, newest first.
func (service *Service) ListProperties(ctx context.Context, filter PropertyFilter) ([]Property, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	return service.store.ListProperties(ctx, filter)
}

// UpdateProperty replaces the mutable fields of a listing owned by agentID.
func (service *Service) UpdateProperty(ctx context.Context, agentID string, update Property) (Property, error) {
	if err := validateProperty(update); err != nil {
		return Property{}, err
	}
	current, err := service.store.GetProperty(ctx, update.PropertyID)
	if err != nil {
		return Property{}, err
	}
	if current.AgentID != agentID {
		return Property{}, ErrNotOwner
	}
	update.AgentID = current.AgentID
	update.CreatedUnixUTC = current.CreatedUnixUTC
	update.UpdatedUnixUTC = service.nowFn()
	if update.Status == "" {
		update.Status = current.Status
	}
	if update.AmenitiesJSON == "" {
		update.AmenitiesJSON = current.AmenitiesJSON
	}
	if err := service.store.UpdateProperty(ctx, update); err != nil {
		return Property{}, err
	}
	return update, nil
}

// DeleteProperty removes a listing owned by agentID.
func (service *Service) DeleteProperty(ctx context.Context, agentID string, propertyID string) error {
	current, err := service.store.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if current.AgentID != agentID {
		return ErrNotOwner
	}
	return service.store.DeleteProperty(ctx, propertyID)
}

// CreateProject spends one credit and persists the project.
func (service *Service) CreateProject(ctx context.Context, agentID string, draft Project) (Project, error) {
	if err := validateProject(draft); err != nil {
		return Project{}, err
	}
	if _, err := service.credits.Consume(ctx, agentID); err != nil {
		return Project{}, err
	}
	nowUnixUTC := service.nowFn()
	draft.AgentID = agentID
	if draft.Status == "" {
		draft.Status = ProjectStatusPlanned
	}
	draft.CreatedUnixUTC = nowUnixUTC
	draft.UpdatedUnixUTC = nowUnixUTC
	return service.store.CreateProject(ctx, draft)
}

// GetProject loads a single project.
func (service *Service) GetProject(ctx context.Context, projectID string) (Project, error) {
	return service.store.GetProject(ctx, projectID)
}

// ListProjects returns an agent's projects, newest first. An empty agentID
// lists across all agents.
func (service *Service) ListProjects(ctx context.Context, agentID string, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return service.store.ListProjects(ctx, agentID, limit)
}

// UpdateProject replaces the mutable fields of a project owned by agentID.
func (service *Service) UpdateProject(ctx context.Context, agentID string, update Project) (Project, error) {
	if err := validateProject(update); err != nil {
		return Project{}, err
	}
	current, err := service.store.GetProject(ctx, update.ProjectID)
	if err != nil {
		return Project{}, err
	}
	if current.AgentID != agentID {
		return Project{}, ErrNotOwner
	}
	update.AgentID = current.AgentID
	update.CreatedUnixUTC = current.CreatedUnixUTC
	update.UpdatedUnixUTC = service.nowFn()
	if update.Status == "" {
		update.Status = current.Status
	}
	if err := service.store.UpdateProject(ctx, update); err != nil {
		return Project{}, err
	}
	return update, nil
}

// DeleteProject removes a project owned by agentID.
func (service *Service) DeleteProject(ctx context.Context, agentID string, projectID string) error {
	current, err := service.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if current.AgentID != agentID {
		return ErrNotOwner
	}
	return service.store.DeleteProject(ctx, projectID)
}

// SaveProperty bookmarks a listing for a user. Saving twice is a no-op.
func (service *Service) SaveProperty(ctx context.Context, userID string, propertyID string) error {
	if _, err := service.store.GetProperty(ctx, propertyID); err != nil {
		return err
	}
	return service.store.SaveProperty(ctx, userID, propertyID, service.nowFn())
}

// UnsaveProperty removes a bookmark.
func (service *Service) UnsaveProperty(ctx context.Context, userID string, propertyID string) error {
	return service.store.UnsaveProperty(ctx, userID, propertyID)
}

// ListSavedProperties returns the user's bookmarked listings.
func (service *Service) ListSavedProperties(ctx context.Context, userID string) ([]Property, error) {
	return service.store.ListSavedProperties(ctx, userID)
}

func validateProperty(property Property) error {
	if strings.TrimSpace(property.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidProperty)
	}
	if property.PriceCents <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidProperty)
	}
	if strings.TrimSpace(property.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidProperty)
	}
	if property.AmenitiesJSON != "" && !json.Valid([]byte(property.AmenitiesJSON)) {
		return fmt.Errorf("%w: amenities must be valid json", ErrInvalidProperty)
	}
	switch property.Status {
	case "", PropertyStatusDraft, PropertyStatusPublished, PropertyStatusSold:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProperty, property.Status)
	}
	return nil
}

func validateProject(project Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	if strings.TrimSpace(project.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidProject)
	}
	if project.UnitsTotal < 0 {
		return fmt.Errorf("%w: units must not be negative", ErrInvalidProject)
	}
	switch project.Status {
	case "", ProjectStatusPlanned, ProjectStatusUnderConstruction, ProjectStatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProject, project.Status)
	}
	return nil
}
