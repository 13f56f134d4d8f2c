package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/graph"
)

func TestRepository_CreateUser(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{})
	mem.PushResult(graph.Result{Records: []graph.Record{
		{
			"userId":     "user-1",
			"handle":     "alice",
			"balance":    0.0,
			"profileRef": "profile-1",
		},
	}})

	user, err := repo.CreateUser(context.Background(), domain.User{
		ID:         "user-1",
		Handle:     "alice",
		ProfileRef: "profile-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if user.ID != "user-1" || user.Handle != "alice" {
		t.Errorf("unexpected user %+v", user)
	}
	if user.Balance != 0 {
		t.Errorf("expected zero balance, got %f", user.Balance)
	}

	stmts := mem.Statements()
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if stmts[0].Query != userByHandleCypher {
		t.Errorf("first statement should check handle uniqueness, got:\n%s", stmts[0].Query)
	}
	if stmts[1].Query != createUserCypher {
		t.Errorf("unexpected create query:\n%s", stmts[1].Query)
	}
	if !stmts[1].Write {
		t.Errorf("create must run in a write transaction")
	}
	if stmts[1].Params["handle"] != "alice" {
		t.Errorf("handle param mismatch: %v", stmts[1].Params["handle"])
	}
	if stmts[1].Params["balance"] != 0.0 {
		t.Errorf("balance param mismatch: %v", stmts[1].Params["balance"])
	}
	if mem.Commits() != 1 {
		t.Errorf("expected 1 commit, got %d", mem.Commits())
	}
}

func TestRepository_CreateUser_DuplicateHandle(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"userId": "user-1", "handle": "alice", "balance": 10.0, "profileRef": ""},
	}})

	_, err := repo.CreateUser(context.Background(), domain.User{ID: "user-2", Handle: "alice"})
	if !errors.Is(err, domain.ErrDuplicateHandle) {
		t.Fatalf("expected ErrDuplicateHandle, got %v", err)
	}

	if len(mem.Statements()) != 1 {
		t.Errorf("no create statement should run after a duplicate check, got %d", len(mem.Statements()))
	}
	if mem.Rollbacks() != 1 {
		t.Errorf("expected 1 rollback, got %d", mem.Rollbacks())
	}
}

func TestRepository_FindUserByHandle_Miss(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	user, err := repo.FindUserByHandle(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user on miss, got %+v", user)
	}

	stmts := mem.Statements()
	if len(stmts) != 1 || stmts[0].Write {
		t.Fatalf("expected a single read statement, got %+v", stmts)
	}
}

func TestRepository_ListUsers_OrderedByHandle(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"userId": "user-1", "handle": "alice", "balance": 5.0, "profileRef": ""},
		{"userId": "user-2", "handle": "bob", "balance": 7.5, "profileRef": ""},
	}})

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	stmts := mem.Statements()
	if !strings.Contains(stmts[0].Query, "ORDER BY u.handle ASC") {
		t.Errorf("list query missing handle ordering:\n%s", stmts[0].Query)
	}
}

func TestRepository_CreatePayment(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	mem.PushResult(graph.Result{Records: []graph.Record{
		{"balance": 100.0},
	}})
	mem.PushResult(graph.Result{Records: []graph.Record{
		{
			"transactionId": "tx-1",
			"amount":        40.0,
			"description":   "rent",
			"timestamp":     ts.Format(time.RFC3339Nano),
			"status":        domain.StatusCompleted,
		},
	}})

	created, err := repo.CreatePayment(context.Background(), "user-1", "user-2", domain.Transaction{
		ID:          "tx-1",
		Amount:      40,
		Description: "rent",
		Timestamp:   ts,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if created.ID != "tx-1" || created.Amount != 40 {
		t.Errorf("unexpected transaction %+v", created)
	}
	if created.Status != domain.StatusCompleted {
		t.Errorf("expected completed status, got %q", created.Status)
	}
	if !created.Timestamp.Equal(ts) {
		t.Errorf("timestamp mismatch: want %v got %v", ts, created.Timestamp)
	}

	stmts := mem.Statements()
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if stmts[0].Query != senderBalanceCypher {
		t.Errorf("first statement should read the sender balance, got:\n%s", stmts[0].Query)
	}
	if stmts[1].Query != createPaymentCypher {
		t.Errorf("unexpected payment query:\n%s", stmts[1].Query)
	}
	if stmts[1].Params["status"] != domain.StatusCompleted {
		t.Errorf("status param mismatch: %v", stmts[1].Params["status"])
	}
	if mem.Commits() != 1 {
		t.Errorf("expected 1 commit, got %d", mem.Commits())
	}
}

func TestRepository_CreatePayment_BalanceReadLocksSender(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"balance": 100.0},
	}})
	mem.PushResult(graph.Result{Records: []graph.Record{
		{"transactionId": "tx-1", "amount": 10.0, "status": domain.StatusCompleted},
	}})

	if _, err := repo.CreatePayment(context.Background(), "user-1", "user-2", domain.Transaction{ID: "tx-1", Amount: 10}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The funds check is only safe if the balance read holds the sender
	// vertex's write lock; a bare MATCH would let two concurrent transfers
	// both observe the pre-decrement balance.
	balanceStmt := mem.Statements()[0]
	if !strings.Contains(balanceStmt.Query, "SET s._lock") || !strings.Contains(balanceStmt.Query, "REMOVE s._lock") {
		t.Errorf("balance read must take the sender vertex write lock:\n%s", balanceStmt.Query)
	}
	if !balanceStmt.Write {
		t.Errorf("balance read must run inside the write transaction")
	}
}

func TestRepository_CreateUser_ConstraintViolationMapsToDuplicateHandle(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{})
	mem.FailOnStatement(2, &db.Neo4jError{
		Code: constraintViolationCode,
		Msg:  "Node already exists with label `User` and property `handle` = 'alice'",
	})

	_, err := repo.CreateUser(context.Background(), domain.User{ID: "user-2", Handle: "alice"})
	if !errors.Is(err, domain.ErrDuplicateHandle) {
		t.Fatalf("expected ErrDuplicateHandle for a constraint violation, got %v", err)
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("constraint violation is a business failure, not a store failure: %v", err)
	}
}

func TestRepository_CreatePayment_SenderMissing(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{})

	_, err := repo.CreatePayment(context.Background(), "ghost", "user-2", domain.Transaction{ID: "tx-1", Amount: 10})
	if !errors.Is(err, domain.ErrSenderNotFound) {
		t.Fatalf("expected ErrSenderNotFound, got %v", err)
	}
	if len(mem.Statements()) != 1 {
		t.Errorf("expected the transfer to abort after the balance read, got %d statements", len(mem.Statements()))
	}
	if mem.Rollbacks() != 1 {
		t.Errorf("expected 1 rollback, got %d", mem.Rollbacks())
	}
}

func TestRepository_CreatePayment_InsufficientFunds(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"balance": 25.0},
	}})

	_, err := repo.CreatePayment(context.Background(), "user-1", "user-2", domain.Transaction{ID: "tx-1", Amount: 60})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(mem.Statements()) != 1 {
		t.Errorf("no mutation statement should run on insufficient funds, got %d", len(mem.Statements()))
	}
	if mem.Rollbacks() != 1 {
		t.Errorf("expected 1 rollback, got %d", mem.Rollbacks())
	}
}

func TestRepository_CreatePayment_RecipientMissing(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"balance": 100.0},
	}})
	mem.PushResult(graph.Result{})

	_, err := repo.CreatePayment(context.Background(), "user-1", "ghost", domain.Transaction{ID: "tx-1", Amount: 10})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if mem.Rollbacks() != 1 {
		t.Errorf("expected 1 rollback, got %d", mem.Rollbacks())
	}
}

func TestRepository_CreatePayment_StatementFailureRollsBack(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{Records: []graph.Record{
		{"balance": 100.0},
	}})
	mem.FailOnStatement(2, errors.New("connection reset"))

	_, err := repo.CreatePayment(context.Background(), "user-1", "user-2", domain.Transaction{ID: "tx-1", Amount: 10})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected a store failure, got %v", err)
	}
	if mem.Rollbacks() != 1 {
		t.Errorf("expected 1 rollback, got %d", mem.Rollbacks())
	}
	if mem.Commits() != 0 {
		t.Errorf("expected no commits, got %d", mem.Commits())
	}
}

func TestRepository_PaymentsBySender_OrderedNewestFirst(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	mem.PushResult(graph.Result{Records: []graph.Record{
		{
			"transactionId":   "tx-1",
			"senderHandle":    "alice",
			"recipientHandle": "bob",
			"amount":          40.0,
			"description":     "rent",
			"timestamp":       ts,
			"status":          domain.StatusCompleted,
		},
	}})

	records, err := repo.PaymentsBySender(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SenderHandle != "alice" || records[0].RecipientHandle != "bob" {
		t.Errorf("unexpected record %+v", records[0])
	}

	stmts := mem.Statements()
	if !strings.Contains(stmts[0].Query, "ORDER BY t.timestamp DESC") {
		t.Errorf("history query missing newest-first ordering:\n%s", stmts[0].Query)
	}
}

func TestRepository_FindPaymentPaths_QueryShape(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	mem.PushResult(graph.Result{})

	paths, err := repo.FindPaymentPaths(context.Background(), "alice", "dave", 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no paths, got %d", len(paths))
	}

	stmts := mem.Statements()
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	query := stmts[0].Query
	if !strings.Contains(query, "{1,3}") {
		t.Errorf("expected quantifier {1,3} in query:\n%s", query)
	}
	if !strings.Contains(query, "LIMIT 10") {
		t.Errorf("path query must cap at 10 results:\n%s", query)
	}
	if !strings.Contains(query, "ORDER BY numSteps ASC") {
		t.Errorf("path query must order shortest first:\n%s", query)
	}
	if stmts[0].Write {
		t.Errorf("path search must run in a read transaction")
	}
	if stmts[0].Params["startHandle"] != "alice" || stmts[0].Params["endHandle"] != "dave" {
		t.Errorf("handle params mismatch: %+v", stmts[0].Params)
	}
}

func TestRepository_FindPaymentPaths_RejectsInvalidMaxSteps(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	for _, steps := range []int{0, -1} {
		if _, err := repo.FindPaymentPaths(context.Background(), "alice", "bob", steps); !errors.Is(err, domain.ErrInvalidMaxSteps) {
			t.Errorf("maxSteps=%d: expected ErrInvalidMaxSteps, got %v", steps, err)
		}
	}
	if len(mem.Statements()) != 0 {
		t.Errorf("no query should run for invalid maxSteps")
	}
}
