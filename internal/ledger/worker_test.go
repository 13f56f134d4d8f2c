package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/priyal/paygraph/internal/domain"
)

func TestBulkLoader_ProvisionAndReplay(t *testing.T) {
	users, payments, store := newTestServices(t, nil)
	loader := NewBulkLoader(users, payments, 3)

	seeds := make([]domain.User, 0, 10)
	for i := 0; i < 10; i++ {
		seeds = append(seeds, domain.User{
			ID:      fmt.Sprintf("user-%d", i),
			Handle:  fmt.Sprintf("handle-%d", i),
			Balance: 100,
		})
	}
	if err := loader.ProvisionUsers(context.Background(), seeds); err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}

	transfers := make([]TransferInstruction, 0, 10)
	for i := 0; i < 10; i++ {
		transfers = append(transfers, TransferInstruction{
			SenderID:    fmt.Sprintf("user-%d", i),
			RecipientID: fmt.Sprintf("user-%d", (i+1)%10),
			Amount:      10,
		})
	}
	if err := loader.ApplyTransfers(context.Background(), transfers); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	all, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	var total float64
	for _, user := range all {
		// Each user sends and receives 10, so every balance is unchanged.
		if user.Balance != 100 {
			t.Errorf("user %s balance %f, want 100", user.Handle, user.Balance)
		}
		total += user.Balance
	}
	if total != 1000 {
		t.Errorf("total balance not conserved: %f", total)
	}
}

func TestBulkLoader_AggregatesFailures(t *testing.T) {
	users, payments, _ := newTestServices(t, nil)
	loader := NewBulkLoader(users, payments, 2)

	if err := loader.ProvisionUsers(context.Background(), []domain.User{
		{ID: "user-1", Handle: "alice", Balance: 100},
		{ID: "user-2", Handle: "bob", Balance: 100},
	}); err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}

	err := loader.ApplyTransfers(context.Background(), []TransferInstruction{
		{SenderID: "user-1", RecipientID: "user-2", Amount: 10},
		{SenderID: "ghost-1", RecipientID: "user-2", Amount: 10},
		{SenderID: "ghost-2", RecipientID: "user-2", Amount: 10},
	})
	if err == nil {
		t.Fatalf("expected aggregated errors")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %T: %v", err, err)
	}
	if len(taskErr.Errors) != 2 {
		t.Fatalf("expected 2 failures, got %d: %v", len(taskErr.Errors), taskErr.Errors)
	}
	for _, inner := range taskErr.Errors {
		if !errors.Is(inner, domain.ErrSenderNotFound) {
			t.Errorf("unexpected inner error: %v", inner)
		}
	}
}

func TestBulkLoader_EmptyInput(t *testing.T) {
	users, payments, _ := newTestServices(t, nil)
	loader := NewBulkLoader(users, payments, 2)

	if err := loader.ProvisionUsers(context.Background(), nil); err != nil {
		t.Fatalf("expected nil for empty input, got %v", err)
	}
	if err := loader.ApplyTransfers(context.Background(), nil); err != nil {
		t.Fatalf("expected nil for empty input, got %v", err)
	}
}
