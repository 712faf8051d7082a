package account

import (
	"context"
	"testing"

	"github.com/guitaripod/pixie/internal/models"
)

type fakeUsers struct {
	byProvider map[string]*models.User
	created    []*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byProvider: map[string]*models.User{}}
}

func (f *fakeUsers) key(provider, providerID string) string { return provider + ":" + providerID }

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.byProvider[f.key(u.Provider, u.ProviderID)] = u
	f.created = append(f.created, u)
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byProvider {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error) {
	return f.byProvider[f.key(provider, providerID)], nil
}

func (f *fakeUsers) GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	for _, u := range f.byProvider {
		if u.APIKey == apiKey {
			return u, nil
		}
	}
	return nil, nil
}

func TestFindOrCreate_CreatesOnFirstLogin(t *testing.T) {
	users := newFakeUsers()
	svc := New(users)

	u, err := svc.FindOrCreate(context.Background(), Identity{
		Provider: models.ProviderGitHub, ProviderID: "123", Email: "a@b.com", Name: "A",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.APIKey == "" {
		t.Error("expected a generated API key")
	}
	if len(users.created) != 1 {
		t.Fatalf("expected exactly one Create call, got %d", len(users.created))
	}
}

func TestFindOrCreate_ReturnsExistingUser(t *testing.T) {
	users := newFakeUsers()
	svc := New(users)
	ctx := context.Background()
	identity := Identity{Provider: models.ProviderGoogle, ProviderID: "456", Email: "x@y.com"}

	first, err := svc.FindOrCreate(ctx, identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := svc.FindOrCreate(ctx, identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID || second.APIKey != first.APIKey {
		t.Error("expected second call to return the same user without minting a new key")
	}
	if len(users.created) != 1 {
		t.Errorf("expected only one Create call across both logins, got %d", len(users.created))
	}
}
