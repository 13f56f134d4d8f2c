package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/priyal/paygraph/internal/domain"
)

// TaskError accumulates multiple errors produced during bulk loading.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// TransferInstruction is one seeded payment to replay.
type TransferInstruction struct {
	SenderID    string  `json:"senderId"`
	RecipientID string  `json:"recipientId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// BulkLoader provisions users and replays transfers using worker pools.
// Seed datasets draw every transfer from opening balances, so instructions
// are order-independent and safe to apply concurrently.
type BulkLoader struct {
	users    *UserService
	payments *PaymentService
	workers  int
}

// NewBulkLoader creates a BulkLoader with the provided concurrency.
func NewBulkLoader(users *UserService, payments *PaymentService, workers int) *BulkLoader {
	if workers <= 0 {
		workers = 4
	}
	return &BulkLoader{
		users:    users,
		payments: payments,
		workers:  workers,
	}
}

// ProvisionUsers creates the provided user vertices concurrently.
func (b *BulkLoader) ProvisionUsers(ctx context.Context, users []domain.User) error {
	return b.run(ctx, len(users), func(idx int) error {
		_, err := b.users.Provision(ctx, users[idx])
		return err
	})
}

// ApplyTransfers replays transfer instructions concurrently.
func (b *BulkLoader) ApplyTransfers(ctx context.Context, transfers []TransferInstruction) error {
	return b.run(ctx, len(transfers), func(idx int) error {
		in := transfers[idx]
		_, err := b.payments.Transfer(ctx, in.SenderID, in.RecipientID, in.Amount, in.Description)
		return err
	})
}

func (b *BulkLoader) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
