package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casafind/casafind/internal/listing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateProperty persists a new listing and returns it with its assigned id.
func (store *Store) CreateProperty(ctx context.Context, property listing.Property) (listing.Property, error) {
	row := propertyRow(property)
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return listing.Property{}, fmt.Errorf("create property: %w", err)
	}
	return mapProperty(row), nil
}

// GetProperty loads a listing by id.
func (store *Store) GetProperty(ctx context.Context, propertyID string) (listing.Property, error) {
	var row Property
	err := store.db.WithContext(ctx).Where("property_id = ?", propertyID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return listing.Property{}, listing.ErrPropertyNotFound
		}
		return listing.Property{}, fmt.Errorf("get property: %w", err)
	}
	return mapProperty(row), nil
}

// ListProperties returns listings matching the filter, newest first.
func (store *Store) ListProperties(ctx context.Context, filter listing.PropertyFilter) ([]listing.Property, error) {
	query := store.db.WithContext(ctx).Model(&Property{})
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []Property
	err := query.Order("created_at DESC").Limit(filter.Limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	properties := make([]listing.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, mapProperty(row))
	}
	return properties, nil
}

// UpdateProperty replaces the mutable columns of a listing.
func (store *Store) UpdateProperty(ctx context.Context, property listing.Property) error {
	result := store.db.WithContext(ctx).
		Model(&Property{}).
		Where("property_id = ?", property.PropertyID).
		Updates(map[string]any{
			"title":          property.Title,
			"description":    property.Description,
			"price_cents":    property.PriceCents,
			"currency":       property.Currency,
			"city":           property.City,
			"address":        property.Address,
			"bedrooms":       property.Bedrooms,
			"bathrooms":      property.Bathrooms,
			"area_sq_meters": property.AreaSqMeters,
			"amenities":      datatypesJSON(property.AmenitiesJSON),
			"status":         string(property.Status),
			"updated_at":     time.Unix(property.UpdatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update property: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return listing.ErrPropertyNotFound
	}
	return nil
}

// DeleteProperty removes a listing and its bookmarks.
func (store *Store) DeleteProperty(ctx context.Context, propertyID string) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("property_id = ?", propertyID).Delete(&SavedProperty{}).Error; err != nil {
			return fmt.Errorf("delete property bookmarks: %w", err)
		}
		result := transaction.Where("property_id = ?", propertyID).Delete(&Property{})
		if result.Error != nil {
			return fmt.Errorf("delete property: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return listing.ErrPropertyNotFound
		}
		return nil
	})
}

// CreateProject persists a new project and returns it with its assigned id.
func (store *Store) CreateProject(ctx context.Context, project listing.Project) (listing.Project, error) {
	row := projectRow(project)
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return listing.Project{}, fmt.Errorf("create project: %w", err)
	}
	return mapProject(row), nil
}

// GetProject loads a project by id.
func (store *Store) GetProject(ctx context.Context, projectID string) (listing.Project, error) {
	var row Project
	err := store.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return listing.Project{}, listing.ErrProjectNotFound
		}
		return listing.Project{}, fmt.Errorf("get project: %w", err)
	}
	return mapProject(row), nil
}

// ListProjects returns projects, newest first, optionally scoped to one agent.
func (store *Store) ListProjects(ctx context.Context, agentID string, limit int) ([]listing.Project, error) {
	query := store.db.WithContext(ctx).Model(&Project{})
	if agentID != "" {
		query = query.Where("agent_id = ?", agentID)
	}
	var rows []Project
	err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]listing.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, mapProject(row))
	}
	return projects, nil
}

// UpdateProject replaces the mutable columns of a project.
func (store *Store) UpdateProject(ctx context.Context, project listing.Project) error {
	result := store.db.WithContext(ctx).
		Model(&Project{}).
		Where("project_id = ?", project.ProjectID).
		Updates(map[string]any{
			"name":          project.Name,
			"description":   project.Description,
			"city":          project.City,
			"units_total":   project.UnitsTotal,
			"completion_at": timePtrOrNil(project.CompletionUnixUTC),
			"status":        string(project.Status),
			"updated_at":    time.Unix(project.UpdatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return listing.ErrProjectNotFound
	}
	return nil
}

// DeleteProject removes a project.
func (store *Store) DeleteProject(ctx context.Context, projectID string) error {
	result := store.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&Project{})
	if result.Error != nil {
		return fmt.Errorf("delete project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return listing.ErrProjectNotFound
	}
	return nil
}

// SaveProperty bookmarks a listing for a user. A repeated save is a no-op.
func (store *Store) SaveProperty(ctx context.Context, userID string, propertyID string, nowUnixUTC int64) error {
	row := SavedProperty{
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  time.Unix(nowUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("save property: %w", err)
	}
	return nil
}

// UnsaveProperty removes a bookmark. Removing a missing bookmark is a no-op.
func (store *Store) UnsaveProperty(ctx context.Context, userID string, propertyID string) error {
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&SavedProperty{}).Error
	if err != nil {
		return fmt.Errorf("unsave property: %w", err)
	}
	return nil
}

// ListSavedProperties returns the user's bookmarked listings, most recently
// saved first.
func (store *Store) ListSavedProperties(ctx context.Context, userID string) ([]listing.Property, error) {
	var rows []Property
	err := store.db.WithContext(ctx).
		Model(&Property{}).
		Joins("JOIN saved_properties ON saved_properties.property_id = properties.property_id").
		Where("saved_properties.user_id = ?", userID).
		Order("saved_properties.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list saved properties: %w", err)
	}
	properties := make([]listing.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, mapProperty(row))
	}
	return properties, nil
}

func propertyRow(property listing.Property) Property {
	return Property{
		PropertyID:   property.PropertyID,
		AgentID:      property.AgentID,
		Title:        property.Title,
		Description:  property.Description,
		PriceCents:   property.PriceCents,
		Currency:     property.Currency,
		City:         property.City,
		Address:      property.Address,
		Bedrooms:     property.Bedrooms,
		Bathrooms:    property.Bathrooms,
		AreaSqMeters: property.AreaSqMeters,
		Amenities:    datatypesJSON(property.AmenitiesJSON),
		Status:       string(property.Status),
		CreatedAt:    time.Unix(property.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:    time.Unix(property.UpdatedUnixUTC, 0).UTC(),
	}
}

func mapProperty(row Property) listing.Property {
	return listing.Property{
		PropertyID:     row.PropertyID,
		AgentID:        row.AgentID,
		Title:          row.Title,
		Description:    row.Description,
		PriceCents:     row.PriceCents,
		Currency:       row.Currency,
		City:           row.City,
		Address:        row.Address,
		Bedrooms:       row.Bedrooms,
		Bathrooms:      row.Bathrooms,
		AreaSqMeters:   row.AreaSqMeters,
		AmenitiesJSON:  string(row.Amenities),
		Status:         listing.PropertyStatus(row.Status),
		CreatedUnixUTC: row.CreatedAt.Unix(),
		UpdatedUnixUTC: row.UpdatedAt.Unix(),
	}
}

func projectRow(project listing.Project) Project {
	return Project{
		ProjectID:    project.ProjectID,
		AgentID:      project.AgentID,
		Name:         project.Name,
		Description:  project.Description,
		City:         project.City,
		UnitsTotal:   project.UnitsTotal,
		CompletionAt: timePtrOrNil(project.CompletionUnixUTC),
		Status:       string(project.Status),
		CreatedAt:    time.Unix(project.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:    time.Unix(project.UpdatedUnixUTC, 0).UTC(),
	}
}

func mapProject(row Project) listing.Project {
	return listing.Project{
		ProjectID:         row.ProjectID,
		AgentID:           row.AgentID,
		Name:              row.Name,
		Description:       row.Description,
		City:              row.City,
		UnitsTotal:        row.UnitsTotal,
		CompletionUnixUTC: unixOrZero(row.CompletionAt),
		Status:            listing.ProjectStatus(row.Status),
		CreatedUnixUTC:    row.CreatedAt.Unix(),
		UpdatedUnixUTC:    row.UpdatedAt.Unix(),
	}
}
