package ledger

import (
	"context"

	"github.com/priyal/paygraph/internal/domain"
)

// Store is the persistence contract required by the ledger services. It is
// implemented by the Neo4j-backed repository and by the in-memory store.
//
// CreatePayment must run the existence check, the funds check, the
// transaction vertex creation, and both balance updates atomically: a
// failed precondition leaves zero new vertices and zero balance change.
type Store interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	FindUserByHandle(ctx context.Context, handle string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	CreatePayment(ctx context.Context, senderID, recipientID string, tx domain.Transaction) (domain.Transaction, error)
	PaymentsBySender(ctx context.Context, userID string) ([]domain.PaymentRecord, error)
	PaymentsByRecipient(ctx context.Context, userID string) ([]domain.PaymentRecord, error)
	FindPaymentPaths(ctx context.Context, startHandle, endHandle string, maxSteps int) ([]domain.PaymentPath, error)
}
