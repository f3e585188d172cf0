package cache

import (
	"context"
	"strings"

	"github.com/ninjahq/ninja-backend/internal/models"
)

// App returns a copy of the app matching (id, publisher) after
// normalization, or nil when no such app exists. A blank publisher matches
// apps whose publisher is also blank.
func (m *Manager) App(ctx context.Context, id, publisher string) (*models.App, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	apps, err := m.Apps(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Matches(id, publisher) {
			app := apps[i]
			return &app, nil
		}
	}
	return nil, nil
}

// AppsByID resolves many app ids at once, keeping the first hit per id.
// Results are keyed by the id as given.
func (m *Manager) AppsByID(ctx context.Context, ids []string) (map[string]models.App, error) {
	apps, err := m.Apps(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.App, len(ids))
	for _, id := range ids {
		if _, done := result[id]; done {
			continue
		}
		want := models.Normalize(id)
		if want == "" {
			continue
		}
		for i := range apps {
			if models.Normalize(apps[i].ID) == want {
				result[id] = apps[i]
				break
			}
		}
	}
	return result, nil
}

// Organization returns a copy of the organization with the given id, or nil.
func (m *Manager) Organization(ctx context.Context, id string) (*models.Organization, error) {
	orgs, err := m.Organizations(ctx)
	if err != nil {
		return nil, err
	}
	want := models.Normalize(id)
	if want == "" {
		return nil, nil
	}
	for i := range orgs {
		if models.Normalize(orgs[i].ID) == want {
			org := orgs[i]
			return &org, nil
		}
	}
	return nil, nil
}

// User returns the profile with the given id. The id match is exact and
// case-sensitive.
func (m *Manager) User(ctx context.Context, id string) (*models.UserProfile, error) {
	users, err := m.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			user := users[i]
			return &user, nil
		}
	}
	return nil, nil
}

// UserByProfileOrEmail binds a request to a profile by profile id first,
// then by normalized email.
func (m *Manager) UserByProfileOrEmail(ctx context.Context, profileID, email string) (*models.UserProfile, error) {
	if profileID != "" {
		user, err := m.User(ctx, profileID)
		if err != nil || user != nil {
			return user, err
		}
	}
	want := models.Normalize(email)
	if want == "" {
		return nil, nil
	}
	users, err := m.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if models.Normalize(users[i].Email) == want || models.Normalize(users[i].GitEmail) == want {
			user := users[i]
			return &user, nil
		}
	}
	return nil, nil
}

// BlockedStatus returns the blocked entry for an organization, or nil.
func (m *Manager) BlockedStatus(ctx context.Context, orgID string) (*models.BlockedEntry, error) {
	blocked, err := m.Blocked(ctx)
	if err != nil {
		return nil, err
	}
	if entry, ok := blocked.Orgs[orgID]; ok {
		return &entry, nil
	}
	// Blob producers are not consistent about id casing.
	want := models.Normalize(orgID)
	for id, entry := range blocked.Orgs {
		if models.Normalize(id) == want {
			e := entry
			return &e, nil
		}
	}
	return nil, nil
}

// DunningEntry returns the dunning entry for an organization, or nil.
// Follows the dunning snapshot's fail-open behavior.
func (m *Manager) DunningEntry(ctx context.Context, orgID string) *models.DunningEntry {
	want := models.Normalize(orgID)
	for _, entry := range m.Dunning(ctx) {
		if models.Normalize(entry.OrganizationID) == want {
			e := entry
			return &e
		}
	}
	return nil
}

// UpdateApp replaces (or appends) one app in the cached snapshot. Skipped
// when the snapshot is not loaded; the next refresh will pick it up.
func (m *Manager) UpdateApp(app models.App) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[KindApps]
	if !ok {
		return
	}
	apps := e.data.([]models.App)
	next := make([]models.App, len(apps))
	copy(next, apps)
	replaced := false
	for i := range next {
		if next[i].Matches(app.ID, app.Publisher) {
			next[i] = app
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, app)
	}
	m.entries[KindApps] = entry{data: next, loadedAt: e.loadedAt}
}

// UpdateOrganization replaces (or appends) one organization in the cached
// snapshot. Skipped when the snapshot is not loaded.
func (m *Manager) UpdateOrganization(org models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[KindOrganizations]
	if !ok {
		return
	}
	orgs := e.data.([]models.Organization)
	next := make([]models.Organization, len(orgs))
	copy(next, orgs)
	want := models.Normalize(org.ID)
	replaced := false
	for i := range next {
		if models.Normalize(next[i].ID) == want {
			next[i] = org
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, org)
	}
	m.entries[KindOrganizations] = entry{data: next, loadedAt: e.loadedAt}
}
