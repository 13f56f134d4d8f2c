package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/priyal/paygraph/internal/domain"
)

// UserService manages user vertices: creation and point lookups. Balances
// are never mutated through this service; the only balance write path is
// the transfer transaction owned by PaymentService.
type UserService struct {
	store Store
	newID func() string
}

// NewUserService constructs a UserService backed by the given store.
func NewUserService(store Store) *UserService {
	return &UserService{
		store: store,
		newID: func() string { return uuid.New().String() },
	}
}

// CreateUser provisions one user vertex with a zero balance. ProfileRef
// keys the external profile record store; this core only carries it.
func (s *UserService) CreateUser(ctx context.Context, handle, profileRef string) (domain.User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return domain.User{}, errors.New("handle is required")
	}
	return s.store.CreateUser(ctx, domain.User{
		ID:         s.newID(),
		Handle:     handle,
		ProfileRef: profileRef,
	})
}

// Provision creates a user vertex with a caller-supplied identifier and
// opening balance. This is the account-provisioning path used by offline
// seeding tools, not reachable through the API layer.
func (s *UserService) Provision(ctx context.Context, user domain.User) (domain.User, error) {
	if strings.TrimSpace(user.Handle) == "" {
		return domain.User{}, errors.New("handle is required")
	}
	if user.ID == "" {
		user.ID = s.newID()
	}
	return s.store.CreateUser(ctx, user)
}

// FindByID returns the user with the given identifier, or nil when absent.
// Callers decide whether absence is an error.
func (s *UserService) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	return s.store.FindUserByID(ctx, userID)
}

// FindByHandle returns the user with the given handle, or nil when absent.
func (s *UserService) FindByHandle(ctx context.Context, handle string) (*domain.User, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, errors.New("handle is required")
	}
	return s.store.FindUserByHandle(ctx, handle)
}

// ListAll returns every user ordered by handle ascending.
func (s *UserService) ListAll(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}
