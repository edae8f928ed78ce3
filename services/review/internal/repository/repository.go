package repository

import (
	"context"

	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// StoreDirectory is the read-only view of the stores a user owns.
type StoreDirectory interface {
	// ListByOwner returns the owner's stores in a stable order.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error)
}

// TokenStore persists the OAuth token pair for each user.
type TokenStore interface {
	// Get returns the user's token pair or an apperrors NotFound error.
	Get(ctx context.Context, userID string) (*domain.TokenState, error)

	// Save stores the token pair, replacing any previous one.
	Save(ctx context.Context, userID string, token *domain.TokenState) error

	// Delete removes the token pair. Deleting a missing pair is not an error.
	Delete(ctx context.Context, userID string) error
}
