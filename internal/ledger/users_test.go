package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/repository/memory"
)

func TestUserService_CreateUser(t *testing.T) {
	users := NewUserService(memory.NewStore())

	user, err := users.CreateUser(context.Background(), "alice", "profile-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if user.ID == "" {
		t.Errorf("user id must be assigned")
	}
	if user.Handle != "alice" || user.ProfileRef != "profile-1" {
		t.Errorf("unexpected user %+v", user)
	}
	if user.Balance != 0 {
		t.Errorf("new users must start with a zero balance, got %f", user.Balance)
	}
}

func TestUserService_CreateUser_TrimsHandle(t *testing.T) {
	store := memory.NewStore()
	users := NewUserService(store)

	user, err := users.CreateUser(context.Background(), "  alice  ", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Handle != "alice" {
		t.Errorf("handle not trimmed: %q", user.Handle)
	}

	found, err := users.FindByHandle(context.Background(), "alice")
	if err != nil || found == nil {
		t.Fatalf("trimmed handle not findable: %v, %v", found, err)
	}
}

func TestUserService_CreateUser_RequiresHandle(t *testing.T) {
	users := NewUserService(memory.NewStore())

	if _, err := users.CreateUser(context.Background(), "   ", ""); err == nil {
		t.Fatalf("expected error for blank handle")
	}
}

func TestUserService_CreateUser_DuplicateHandle(t *testing.T) {
	users := NewUserService(memory.NewStore())

	if _, err := users.CreateUser(context.Background(), "alice", ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := users.CreateUser(context.Background(), "alice", ""); !errors.Is(err, domain.ErrDuplicateHandle) {
		t.Fatalf("expected ErrDuplicateHandle, got %v", err)
	}
}

func TestUserService_Provision(t *testing.T) {
	users := NewUserService(memory.NewStore())

	user, err := users.Provision(context.Background(), domain.User{
		ID:      "seed-1",
		Handle:  "alice",
		Balance: 250,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "seed-1" {
		t.Errorf("expected caller-supplied id to be kept, got %q", user.ID)
	}
	if user.Balance != 250 {
		t.Errorf("opening balance dropped: %f", user.Balance)
	}

	generated, err := users.Provision(context.Background(), domain.User{Handle: "bob"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if generated.ID == "" {
		t.Errorf("missing id must be generated")
	}
}

func TestUserService_Lookups_ValidateInput(t *testing.T) {
	users := NewUserService(memory.NewStore())

	if _, err := users.FindByID(context.Background(), ""); err == nil {
		t.Errorf("expected error for blank user id")
	}
	if _, err := users.FindByHandle(context.Background(), "  "); err == nil {
		t.Errorf("expected error for blank handle")
	}
}

func TestUserService_ListAll(t *testing.T) {
	users := NewUserService(memory.NewStore())
	for _, handle := range []string{"carol", "alice", "bob"} {
		if _, err := users.CreateUser(context.Background(), handle, ""); err != nil {
			t.Fatalf("create %s: %v", handle, err)
		}
	}

	all, err := users.ListAll(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	for i, handle := range want {
		if all[i].Handle != handle {
			t.Errorf("position %d: want %s got %s", i, handle, all[i].Handle)
		}
	}
}
