package httpapi

import (
	"encoding/json"

	"github.com/casafind/casafind/internal/listing"
	"github.com/casafind/casafind/pkg/membership"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authPayload struct {
	Token       string `json:"token"`
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type membershipPayload struct {
	AccountID                  string `json:"account_id"`
	Tier                       string `json:"tier"`
	CreditBalance              int64  `json:"credit_balance"`
	MembershipExpiresAtUnixUTC int64  `json:"membership_expires_at_unix_utc"`
	CreditsRefilledAtUnixUTC   int64  `json:"credits_refilled_at_unix_utc"`
}

type propertyRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PriceCents   int64           `json:"price_cents"`
	Currency     string          `json:"currency"`
	City         string          `json:"city"`
	Address      string          `json:"address"`
	Bedrooms     int             `json:"bedrooms"`
	Bathrooms    int             `json:"bathrooms"`
	AreaSqMeters int64           `json:"area_sq_meters"`
	Amenities    json.RawMessage `json:"amenities"`
	Status       string          `json:"status"`
}

type propertyPayload struct {
	PropertyID     string          `json:"property_id"`
	AgentID        string          `json:"agent_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	PriceCents     int64           `json:"price_cents"`
	Currency       string          `json:"currency"`
	City           string          `json:"city"`
	Address        string          `json:"address"`
	Bedrooms       int             `json:"bedrooms"`
	Bathrooms      int             `json:"bathrooms"`
	AreaSqMeters   int64           `json:"area_sq_meters"`
	Amenities      json.RawMessage `json:"amenities"`
	Status         string          `json:"status"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
	UpdatedUnixUTC int64           `json:"updated_unix_utc"`
}

type projectRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	City              string `json:"city"`
	UnitsTotal        int    `json:"units_total"`
	CompletionUnixUTC int64  `json:"completion_unix_utc"`
	Status            string `json:"status"`
}

type projectPayload struct {
	ProjectID         string `json:"project_id"`
	AgentID           string `json:"agent_id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	City              string `json:"city"`
	UnitsTotal        int    `json:"units_total"`
	CompletionUnixUTC int64  `json:"completion_unix_utc"`
	Status            string `json:"status"`
	CreatedUnixUTC    int64  `json:"created_unix_utc"`
	UpdatedUnixUTC    int64  `json:"updated_unix_utc"`
}

type paymentEventRequest struct {
	Type             string `json:"type"`
	AccountID        string `json:"account_id"`
	Plan             string `json:"plan"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	PaymentReference string `json:"payment_reference"`
}

func (request paymentEventRequest) toEvent() membership.PaymentEvent {
	return membership.PaymentEvent{
		Type:             request.Type,
		AccountID:        request.AccountID,
		Plan:             request.Plan,
		AmountCents:      request.AmountCents,
		Currency:         request.Currency,
		PaymentReference: request.PaymentReference,
	}
}

func membershipToPayload(account membership.Account) membershipPayload {
	return membershipPayload{
		AccountID:                  account.AccountID,
		Tier:                       account.Tier.String(),
		CreditBalance:              account.CreditBalance,
		MembershipExpiresAtUnixUTC: account.MembershipExpiresAtUnixUTC,
		CreditsRefilledAtUnixUTC:   account.CreditsRefilledAtUnixUTC,
	}
}

func propertyFromRequest(request propertyRequest) listing.Property {
	amenities := ""
	if len(request.Amenities) > 0 {
		amenities = string(request.Amenities)
	}
	return listing.Property{
		Title:         request.Title,
		Description:   request.Description,
		PriceCents:    request.PriceCents,
		Currency:      request.Currency,
		City:          request.City,
		Address:       request.Address,
		Bedrooms:      request.Bedrooms,
		Bathrooms:     request.Bathrooms,
		AreaSqMeters:  request.AreaSqMeters,
		AmenitiesJSON: amenities,
		Status:        listing.PropertyStatus(request.Status),
	}
}

func propertyToPayload(property listing.Property) propertyPayload {
	amenities := property.AmenitiesJSON
	if amenities == "" {
		amenities = "[]"
	}
	return propertyPayload{
		PropertyID:     property.PropertyID,
		AgentID:        property.AgentID,
		Title:          property.Title,
		Description:    property.Description,
		PriceCents:     property.PriceCents,
		Currency:       property.Currency,
		City:           property.City,
		Address:        property.Address,
		Bedrooms:       property.Bedrooms,
		Bathrooms:      property.Bathrooms,
		AreaSqMeters:   property.AreaSqMeters,
		Amenities:      json.RawMessage(amenities),
		Status:         string(property.Status),
		CreatedUnixUTC: property.CreatedUnixUTC,
		UpdatedUnixUTC: property.UpdatedUnixUTC,
	}
}

func propertiesToPayload(properties []listing.Property) []propertyPayload {
	payload := make([]propertyPayload, 0, len(properties))
	for _, property := range properties {
		payload = append(payload, propertyToPayload(property))
	}
	return payload
}

func projectFromRequest(request projectRequest) listing.Project {
	return listing.Project{
		Name:              request.Name,
		Description:       request.Description,
		City:              request.City,
		UnitsTotal:        request.UnitsTotal,
		CompletionUnixUTC: request.CompletionUnixUTC,
		Status:            listing.ProjectStatus(request.Status),
	}
}

func projectToPayload(project listing.Project) projectPayload {
	return projectPayload{
		ProjectID:         project.ProjectID,
		AgentID:           project.AgentID,
		Name:              project.Name,
		Description:       project.Description,
		City:              project.City,
		UnitsTotal:        project.UnitsTotal,
		CompletionUnixUTC: project.CompletionUnixUTC,
		Status:            string(project.Status),
		CreatedUnixUTC:    project.CreatedUnixUTC,
		UpdatedUnixUTC:    project.UpdatedUnixUTC,
	}
}

func projectsToPayload(projects []listing.Project) []projectPayload {
	payload := make([]projectPayload, 0, len(projects))
	for _, project := range projects {
		payload = append(payload, projectToPayload(project))
	}
	return payload
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
