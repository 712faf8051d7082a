// Package account upserts users by (provider, provider_id) on behalf of every
// identity surface — OAuth authorization code, native ID-token exchange, and
// the CLI device-code grant — so each one shares exactly one "find or create"
// path instead of reimplementing it.
package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
	"github.com/guitaripod/pixie/internal/service"
)

// Service finds or creates the local User row backing an external identity.
type Service struct {
	users repository.UserRepository
}

// New creates an account service.
func New(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// Identity is what an OAuth/native/device exchange has learned about the
// caller from the upstream provider, prior to it being turned into a User.
type Identity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
}

// FindOrCreate returns the existing user for (provider, provider_id), or
// creates one with a freshly minted API key and a zero credit balance.
// The user_credits row is not created here: the mutating
// repository.CreditRepository methods (Deduct, Add, AdminAdjust) create the
// zero-balance row on first use, and GetBalance reports 0 while it is absent.
func (s *Service) FindOrCreate(ctx context.Context, id Identity) (*models.User, error) {
	existing, err := s.users.GetByProviderID(ctx, id.Provider, id.ProviderID)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:         uuid.New().String(),
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		Email:      id.Email,
		Name:       id.Name,
		APIKey:     service.GenerateAPIKey(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperror.Wrap(err)
	}
	return u, nil
}

// GetByID loads a previously created user, used to resolve a device-code flow
// that another poll already completed.
func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if u == nil {
		return nil, apperror.New(apperror.NotFound, "user not found")
	}
	return u, nil
}
