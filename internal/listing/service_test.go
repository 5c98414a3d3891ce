package listing

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/casafind/casafind/pkg/membership"
)

const fixedNowUnixUTC int64 = 1_700_000_000

func TestCreatePropertyConsumesOneCredit(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 2}
	service := mustNewService(t, store, credits)

	created, err := service.CreateProperty(context.Background(), "agent-1", Property{
		Title:      "Two-bed flat near the river",
		PriceCents: 25_000_000,
		Currency:   "usd",
		City:       "Austin",
		Bedrooms:   2,
		Bathrooms:  1,
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	if credits.consumed != 1 {
		t.Fatalf("expected one credit consumed, got %d", credits.consumed)
	}
	if created.PropertyID == "" {
		t.Fatalf("expected assigned property id")
	}
	if created.Status != PropertyStatusPublished {
		t.Fatalf("expected published status by default, got %s", created.Status)
	}
	if created.AgentID != "agent-1" {
		t.Fatalf("expected owner agent-1, got %s", created.AgentID)
	}
}

func TestCreatePropertyBlockedWithoutCredits(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{err: membership.ErrInsufficientCredits}
	service := mustNewService(t, store, credits)

	_, err := service.CreateProperty(context.Background(), "agent-1", Property{
		Title:      "Studio downtown",
		PriceCents: 9_000_000,
		City:       "Austin",
	})
	if !errors.Is(err, membership.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if len(store.properties) != 0 {
		t.Fatalf("expected nothing persisted, got %d properties", len(store.properties))
	}
}

func TestCreatePropertyRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 5}
	service := mustNewService(t, store, credits)

	cases := []struct {
		name  string
		draft Property
	}{
		{name: "missing title", draft: Property{PriceCents: 100, City: "Austin"}},
		{name: "zero price", draft: Property{Title: "x", City: "Austin"}},
		{name: "missing city", draft: Property{Title: "x", PriceCents: 100}},
		{name: "bad amenities", draft: Property{Title: "x", PriceCents: 100, City: "Austin", AmenitiesJSON: "not-json"}},
		{name: "bad status", draft: Property{Title: "x", PriceCents: 100, City: "Austin", Status: "archived"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := service.CreateProperty(context.Background(), "agent-1", tc.draft); !errors.Is(err, ErrInvalidProperty) {
				t.Fatalf("expected ErrInvalidProperty, got %v", err)
			}
		})
	}
	if credits.consumed != 0 {
		t.Fatalf("expected no credits consumed on validation failure, got %d", credits.consumed)
	}
}

func TestUpdatePropertyChecksOwnership(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 5}
	service := mustNewService(t, store, credits)

	created, err := service.CreateProperty(context.Background(), "agent-1", Property{
		Title:      "Bungalow",
		PriceCents: 12_000_000,
		City:       "Austin",
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}

	created.Title = "Renovated bungalow"
	if _, err := service.UpdateProperty(context.Background(), "agent-2", created); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	updated, err := service.UpdateProperty(context.Background(), "agent-1", created)
	if err != nil {
		t.Fatalf("update property: %v", err)
	}
	if updated.Title != "Renovated bungalow" {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}
}

func TestDeletePropertyChecksOwnership(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 5}
	service := mustNewService(t, store, credits)

	created, err := service.CreateProperty(context.Background(), "agent-1", Property{
		Title:      "Cottage",
		PriceCents: 8_000_000,
		City:       "Austin",
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	if err := service.DeleteProperty(context.Background(), "agent-2", created.PropertyID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := service.DeleteProperty(context.Background(), "agent-1", created.PropertyID); err != nil {
		t.Fatalf("delete property: %v", err)
	}
	if _, err := service.GetProperty(context.Background(), created.PropertyID); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound after delete, got %v", err)
	}
}

func TestCreateProjectConsumesOneCredit(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 3}
	service := mustNewService(t, store, credits)

	created, err := service.CreateProject(context.Background(), "agent-1", Project{
		Name:       "Riverside Towers",
		City:       "Austin",
		UnitsTotal: 120,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if credits.consumed != 1 {
		t.Fatalf("expected one credit consumed, got %d", credits.consumed)
	}
	if created.Status != ProjectStatusPlanned {
		t.Fatalf("expected planned status by default, got %s", created.Status)
	}
}

func TestSavePropertyIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 5}
	service := mustNewService(t, store, credits)

	created, err := service.CreateProperty(context.Background(), "agent-1", Property{
		Title:      "Loft",
		PriceCents: 30_000_000,
		City:       "Austin",
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	if err := service.SaveProperty(context.Background(), "user-1", created.PropertyID); err != nil {
		t.Fatalf("save property: %v", err)
	}
	if err := service.SaveProperty(context.Background(), "user-1", created.PropertyID); err != nil {
		t.Fatalf("repeated save should be a no-op, got %v", err)
	}
	saved, err := service.ListSavedProperties(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list saved: %v", err)
	}
	if len(saved) != 1 || saved[0].PropertyID != created.PropertyID {
		t.Fatalf("unexpected saved listings: %+v", saved)
	}
	if err := service.UnsaveProperty(context.Background(), "user-1", created.PropertyID); err != nil {
		t.Fatalf("unsave property: %v", err)
	}
	saved, err = service.ListSavedProperties(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list saved: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected empty saved list, got %d", len(saved))
	}
}

func TestSaveUnknownProperty(t *testing.T) {
	t.Parallel()
	store := newStubListingStore()
	credits := &stubConsumer{balance: 5}
	service := mustNewService(t, store, credits)

	if err := service.SaveProperty(context.Background(), "user-1", "missing"); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound, got %v", err)
	}
}

// --- helpers ---

type stubConsumer struct {
	balance  int64
	consumed int
	err      error
}

func (c *stubConsumer) Consume(ctx context.Context, accountID string) (membership.Account, error) {
	if c.err != nil {
		return membership.Account{}, c.err
	}
	if c.balance < 1 {
		return membership.Account{}, membership.ErrInsufficientCredits
	}
	c.balance--
	c.consumed++
	return membership.Account{AccountID: accountID, CreditBalance: c.balance}, nil
}

type stubListingStore struct {
	properties map[string]Property
	projects   map[string]Project
	saved      map[string]map[string]int64
	sequence   int
}

func newStubListingStore() *stubListingStore {
	return &stubListingStore{
		properties: make(map[string]Property),
		projects:   make(map[string]Project),
		saved:      make(map[string]map[string]int64),
	}
}

func (s *stubListingStore) nextID(prefix string) string {
	s.sequence++
	return prefix + "-" + strconv.Itoa(s.sequence)
}

func (s *stubListingStore) CreateProperty(ctx context.Context, property Property) (Property, error) {
	property.PropertyID = s.nextID("prop")
	s.properties[property.PropertyID] = property
	return property, nil
}

func (s *stubListingStore) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	property, ok := s.properties[propertyID]
	if !ok {
		return Property{}, ErrPropertyNotFound
	}
	return property, nil
}

func (s *stubListingStore) ListProperties(ctx context.Context, filter PropertyFilter) ([]Property, error) {
	var out []Property
	for _, property := range s.properties {
		if filter.City != "" && property.City != filter.City {
			continue
		}
		if filter.Status != "" && property.Status != filter.Status {
			continue
		}
		out = append(out, property)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedUnixUTC > out[j].CreatedUnixUTC })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *stubListingStore) UpdateProperty(ctx context.Context, property Property) error {
	if _, ok := s.properties[property.PropertyID]; !ok {
		return ErrPropertyNotFound
	}
	s.properties[property.PropertyID] = property
	return nil
}

func (s *stubListingStore) DeleteProperty(ctx context.Context, propertyID string) error {
	if _, ok := s.properties[propertyID]; !ok {
		return ErrPropertyNotFound
	}
	delete(s.properties, propertyID)
	return nil
}

func (s *stubListingStore) CreateProject(ctx context.Context, project Project) (Project, error) {
	project.ProjectID = s.nextID("proj")
	s.projects[project.ProjectID] = project
	return project, nil
}

func (s *stubListingStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	project, ok := s.projects[projectID]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return project, nil
}

func (s *stubListingStore) ListProjects(ctx context.Context, agentID string, limit int) ([]Project, error) {
	var out []Project
	for _, project := range s.projects {
		if agentID != "" && project.AgentID != agentID {
			continue
		}
		out = append(out, project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedUnixUTC > out[j].CreatedUnixUTC })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubListingStore) UpdateProject(ctx context.Context, project Project) error {
	if _, ok := s.projects[project.ProjectID]; !ok {
		return ErrProjectNotFound
	}
	s.projects[project.ProjectID] = project
	return nil
}

func (s *stubListingStore) DeleteProject(ctx context.Context, projectID string) error {
	if _, ok := s.projects[projectID]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, projectID)
	return nil
}

func (s *stubListingStore) SaveProperty(ctx context.Context, userID string, propertyID string, nowUnixUTC int64) error {
	if s.saved[userID] == nil {
		s.saved[userID] = make(map[string]int64)
	}
	s.saved[userID][propertyID] = nowUnixUTC
	return nil
}

func (s *stubListingStore) UnsaveProperty(ctx context.Context, userID string, propertyID string) error {
	delete(s.saved[userID], propertyID)
	return nil
}

func (s *stubListingStore) ListSavedProperties(ctx context.Context, userID string) ([]Property, error) {
	var out []Property
	for propertyID := range s.saved[userID] {
		if property, ok := s.properties[propertyID]; ok {
			out = append(out, property)
		}
	}
	return out, nil
}

func mustNewService(t *testing.T, store Store, credits CreditConsumer) *Service {
	t.Helper()
	service, err := NewService(store, credits, func() int64 { return fixedNowUnixUTC })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}
