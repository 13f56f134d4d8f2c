package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/events"
)

// Role selects the direction of a payment-history query.
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// ErrInvalidRole reports an unknown payment-history role.
var ErrInvalidRole = errors.New("role must be sender or recipient")

// PaymentService is the transfer engine and payment query engine. Transfer
// is the single entry point for balance mutation; its internal steps are
// not separately callable.
type PaymentService struct {
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
	nowFn     func() time.Time
	newID     func() string
}

// NewPaymentService constructs a PaymentService. A nil publisher disables
// event publication.
func NewPaymentService(store Store, publisher events.Publisher, logger *slog.Logger) *PaymentService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PaymentService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		nowFn:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *PaymentService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Transfer atomically moves amount from sender to recipient and records
// the payment as a transaction vertex with INITIATED_PAYMENT and
// FOR_RECIPIENT edges. Preconditions are checked in order: amount strictly
// positive, sender differs from recipient, sender exists, sender balance
// covers the amount. The last two run inside the store's write
// transaction together with the mutation.
func (s *PaymentService) Transfer(ctx context.Context, senderID, recipientID string, amount float64, description string) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("amount %.2f: %w", amount, domain.ErrInvalidAmount)
	}
	if senderID == recipientID {
		return domain.Transaction{}, domain.ErrSelfTransfer
	}

	tx := domain.Transaction{
		ID:          s.newID(),
		Amount:      amount,
		Description: description,
		Timestamp:   s.nowFn().UTC(),
		Status:      domain.StatusCompleted,
	}

	created, err := s.store.CreatePayment(ctx, senderID, recipientID, tx)
	if err != nil {
		return domain.Transaction{}, err
	}

	// The transfer is committed at this point; a publish failure must not
	// fail it retroactively.
	if err := s.publisher.Publish(ctx, events.PaymentCompleted{
		TransactionID: created.ID,
		SenderID:      senderID,
		RecipientID:   recipientID,
		Amount:        created.Amount,
		Description:   created.Description,
		OccurredAt:    created.Timestamp,
	}); err != nil && s.logger != nil {
		s.logger.Warn("payment event publish failed", "error", err, "transactionId", created.ID)
	}

	return created, nil
}

// PaymentsBy returns the user's payment history for the given role,
// newest first.
func (s *PaymentService) PaymentsBy(ctx context.Context, role Role, userID string) ([]domain.PaymentRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	switch role {
	case RoleSender:
		return s.store.PaymentsBySender(ctx, userID)
	case RoleRecipient:
		return s.store.PaymentsByRecipient(ctx, userID)
	default:
		return nil, fmt.Errorf("%q: %w", role, ErrInvalidRole)
	}
}

// FindPaymentPath searches for chains of 1..maxSteps payment steps
// connecting the two handles, at most 10 results, shortest first. No upper
// bound is enforced on maxSteps; traversal cost grows combinatorially in
// dense graphs, so callers choose their own ceiling.
func (s *PaymentService) FindPaymentPath(ctx context.Context, startHandle, endHandle string, maxSteps int) ([]domain.PaymentPath, error) {
	startHandle = strings.TrimSpace(startHandle)
	endHandle = strings.TrimSpace(endHandle)
	if startHandle == "" || endHandle == "" {
		return nil, errors.New("start and end handles are required")
	}
	if maxSteps < 1 {
		return nil, domain.ErrInvalidMaxSteps
	}
	return s.store.FindPaymentPaths(ctx, startHandle, endHandle, maxSteps)
}
