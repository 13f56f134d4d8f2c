package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/graph"
)

// Repository persists the payment graph through a graph.Client. Every write
// runs inside one scoped write transaction so a failed precondition or a
// mid-flight error leaves zero new vertices and zero balance change.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// CreateUser creates a user vertex with the supplied opening balance
// (zero for API-created users). The handle uniqueness check runs inside
// the same write transaction as the create.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		return domain.User{}, errors.New("user id is required")
	}
	if user.Handle == "" {
		return domain.User{}, errors.New("handle is required")
	}

	out, err := r.client.WriteTx(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		existing, err := tx.Run(ctx, userByHandleCypher, map[string]any{
			"handle": user.Handle,
		})
		if err != nil {
			return nil, err
		}
		if len(existing.Records) > 0 {
			return nil, fmt.Errorf("handle %q: %w", user.Handle, domain.ErrDuplicateHandle)
		}

		res, err := tx.Run(ctx, createUserCypher, map[string]any{
			"userId":     user.ID,
			"handle":     user.Handle,
			"profileRef": user.ProfileRef,
			"balance":    user.Balance,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, errors.New("create returned no user record")
		}
		return userFromRecord(res.Records[0])
	})
	if err != nil {
		// Two transactions can pass the in-transaction handle check
		// concurrently; the uniqueness constraint rejects the loser at
		// commit time.
		if isConstraintViolation(err) {
			err = fmt.Errorf("handle %q: %w", user.Handle, domain.ErrDuplicateHandle)
		}
		return domain.User{}, domain.NewStoreError(fmt.Sprintf("create user %s", user.Handle), err)
	}
	return out.(domain.User), nil
}

const constraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

func isConstraintViolation(err error) bool {
	var neoErr *db.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == constraintViolationCode
}

// FindUserByID returns the user vertex with the given identifier, or nil
// when no vertex matches. Absence is not an error for point lookups.
func (r *Repository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.findUser(ctx, userByIDCypher, map[string]any{"userId": userID}, "find user by id")
}

// FindUserByHandle returns the user vertex with the given handle, or nil
// when no vertex matches.
func (r *Repository) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	return r.findUser(ctx, userByHandleCypher, map[string]any{"handle": handle}, "find user by handle")
}

func (r *Repository) findUser(ctx context.Context, cypher string, params map[string]any, op string) (*domain.User, error) {
	out, err := r.client.ReadTx(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return (*domain.User)(nil), nil
		}
		user, err := userFromRecord(res.Records[0])
		if err != nil {
			return nil, err
		}
		return &user, nil
	})
	if err != nil {
		return nil, domain.NewStoreError(op, err)
	}
	return out.(*domain.User), nil
}

// ListUsers returns all user vertices ordered by handle ascending.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	out, err := r.client.ReadTx(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		res, err := tx.Run(ctx, listUsersCypher, nil)
		if err != nil {
			return nil, err
		}
		users := make([]domain.User, 0, len(res.Records))
		for _, record := range res.Records {
			user, err := userFromRecord(record)
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
		return users, nil
	})
	if err != nil {
		return nil, domain.NewStoreError("list users", err)
	}
	return out.([]domain.User), nil
}

// CreatePayment executes the atomic transfer: existence and funds checks,
// transaction vertex creation with both relationships, and both balance
// updates, all inside one write transaction. Any violated precondition
// aborts before mutation and rolls the transaction back. The balance
// precondition read runs under the sender vertex's write lock (see
// senderBalanceCypher), which serializes concurrent transfers debiting the
// same sender. Opposing transfers that deadlock on vertex locks are
// aborted by Neo4j's deadlock detection and surface as store failures.
func (r *Repository) CreatePayment(ctx context.Context, senderID, recipientID string, tx domain.Transaction) (domain.Transaction, error) {
	out, err := r.client.WriteTx(ctx, func(ctx context.Context, gtx graph.Tx) (any, error) {
		balanceRes, err := gtx.Run(ctx, senderBalanceCypher, map[string]any{
			"senderId": senderID,
		})
		if err != nil {
			return nil, err
		}
		if len(balanceRes.Records) == 0 {
			return nil, fmt.Errorf("sender %s: %w", senderID, domain.ErrSenderNotFound)
		}
		balance := toFloat64(balanceRes.Records[0]["balance"])
		if balance < tx.Amount {
			return nil, fmt.Errorf("balance %.2f below amount %.2f: %w", balance, tx.Amount, domain.ErrInsufficientFunds)
		}

		res, err := gtx.Run(ctx, createPaymentCypher, map[string]any{
			"senderId":      senderID,
			"recipientId":   recipientID,
			"transactionId": tx.ID,
			"amount":        tx.Amount,
			"description":   tx.Description,
			"timestamp":     formatTime(tx.Timestamp),
			"status":        domain.StatusCompleted,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			// Recipient vertex missing: the MATCH produced no row, so no
			// mutation happened. Rolled back all the same.
			return nil, fmt.Errorf("recipient %s: %w", recipientID, domain.ErrUserNotFound)
		}
		return transactionFromRecord(res.Records[0])
	})
	if err != nil {
		return domain.Transaction{}, domain.NewStoreError("create payment", err)
	}
	return out.(domain.Transaction), nil
}

// PaymentsBySender returns payments initiated by the user, newest first.
func (r *Repository) PaymentsBySender(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	return r.listPayments(ctx, paymentsBySenderCypher, userID, "payments by sender")
}

// PaymentsByRecipient returns payments received by the user, newest first.
func (r *Repository) PaymentsByRecipient(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	return r.listPayments(ctx, paymentsByRecipientCypher, userID, "payments by recipient")
}

func (r *Repository) listPayments(ctx context.Context, cypher, userID, op string) ([]domain.PaymentRecord, error) {
	out, err := r.client.ReadTx(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}
		records := make([]domain.PaymentRecord, 0, len(res.Records))
		for _, record := range res.Records {
			row, err := paymentRecordFromRecord(record)
			if err != nil {
				return nil, err
			}
			records = append(records, row)
		}
		return records, nil
	})
	if err != nil {
		return nil, domain.NewStoreError(op, err)
	}
	return out.([]domain.PaymentRecord), nil
}

// FindPaymentPaths searches for chains of 1..maxSteps consecutive payment
// steps connecting the two handles, at most 10 results, shortest first.
// maxSteps is interpolated as a validated integer because Cypher does not
// parameterize pattern quantifiers.
func (r *Repository) FindPaymentPaths(ctx context.Context, startHandle, endHandle string, maxSteps int) ([]domain.PaymentPath, error) {
	if maxSteps < 1 {
		return nil, domain.ErrInvalidMaxSteps
	}

	query := fmt.Sprintf(paymentPathCypherTemplate, maxSteps)
	out, err := r.client.ReadTx(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"startHandle": startHandle,
			"endHandle":   endHandle,
		})
		if err != nil {
			return nil, err
		}
		paths := make([]domain.PaymentPath, 0, len(res.Records))
		for _, record := range res.Records {
			path, err := projectPathRecord(record)
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		return paths, nil
	})
	if err != nil {
		return nil, domain.NewStoreError("find payment paths", err)
	}
	return out.([]domain.PaymentPath), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

const createUserCypher = `
CREATE (u:User {
	userId: $userId,
	handle: $handle,
	profileRef: $profileRef,
	balance: $balance
})
RETURN u.userId AS userId,
       u.handle AS handle,
       u.balance AS balance,
       u.profileRef AS profileRef
`

const userByIDCypher = `
MATCH (u:User {userId: $userId})
RETURN u.userId AS userId,
       u.handle AS handle,
       u.balance AS balance,
       u.profileRef AS profileRef
`

const userByHandleCypher = `
MATCH (u:User {handle: $handle})
RETURN u.userId AS userId,
       u.handle AS handle,
       u.balance AS balance,
       u.profileRef AS profileRef
`

const listUsersCypher = `
MATCH (u:User)
RETURN u.userId AS userId,
       u.handle AS handle,
       u.balance AS balance,
       u.profileRef AS profileRef
ORDER BY u.handle ASC
`

// The SET/REMOVE pair takes the sender vertex's write lock before the
// balance is read. A plain MATCH read takes no lock under Neo4j's
// read-committed transactions, so two concurrent transfers could otherwise
// both observe the pre-decrement balance and both pass the funds check.
// With the lock held, the second transfer blocks here until the first
// commits and then reads the decremented balance.
const senderBalanceCypher = `
MATCH (s:User {userId: $senderId})
SET s._lock = true
REMOVE s._lock
RETURN s.balance AS balance
`

const createPaymentCypher = `
MATCH (sender:User {userId: $senderId})
MATCH (recipient:User {userId: $recipientId})
CREATE (sender)-[:INITIATED_PAYMENT]->(t:Transaction {
	transactionId: $transactionId,
	amount: $amount,
	description: $description,
	timestamp: $timestamp,
	status: $status
})-[:FOR_RECIPIENT]->(recipient)
SET sender.balance = sender.balance - $amount,
    recipient.balance = recipient.balance + $amount
RETURN t.transactionId AS transactionId,
       t.amount AS amount,
       t.description AS description,
       t.timestamp AS timestamp,
       t.status AS status
`

const paymentsBySenderCypher = `
MATCH (s:User {userId: $userId})-[:INITIATED_PAYMENT]->(t:Transaction)-[:FOR_RECIPIENT]->(r:User)
RETURN s.handle AS senderHandle,
       r.handle AS recipientHandle,
       t.transactionId AS transactionId,
       t.amount AS amount,
       t.description AS description,
       t.timestamp AS timestamp,
       t.status AS status
ORDER BY t.timestamp DESC
`

const paymentsByRecipientCypher = `
MATCH (s:User)-[:INITIATED_PAYMENT]->(t:Transaction)-[:FOR_RECIPIENT]->(r:User {userId: $userId})
RETURN s.handle AS senderHandle,
       r.handle AS recipientHandle,
       t.transactionId AS transactionId,
       t.amount AS amount,
       t.description AS description,
       t.timestamp AS timestamp,
       t.status AS status
ORDER BY t.timestamp DESC
`

// Each repetition of the quantified pattern is one payment step: two edges
// through a Transaction vertex. size(relationships(p))/2 therefore counts
// logical steps.
const paymentPathCypherTemplate = `
MATCH p = (start:User {handle: $startHandle})
	(()-[:INITIATED_PAYMENT]->(:Transaction)-[:FOR_RECIPIENT]->()){1,%d}
	(end:User {handle: $endHandle})
RETURN nodes(p) AS pathNodes,
       [rel IN relationships(p) | type(rel)] AS relTypes,
       size(relationships(p))/2 AS numSteps
ORDER BY numSteps ASC
LIMIT 10
`
