// Package memory implements the ledger store against an in-process
// adjacency structure instead of a graph database. It backs unit tests and
// local development when no graph URI is configured. Because it has no
// transactional isolation to lean on, the transfer critical section is
// guarded by per-user locks acquired in a fixed order.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/priyal/paygraph/internal/domain"
)

type paymentEdge struct {
	tx          domain.Transaction
	senderID    string
	recipientID string
}

// Store is an in-memory property graph of user vertices and payment edges.
type Store struct {
	mu            sync.RWMutex
	usersByID     map[string]domain.User
	idByHandle    map[string]string
	payments      map[string]paymentEdge
	outgoing      map[string][]string // senderID -> transaction IDs, append order

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewStore instantiates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		usersByID:  make(map[string]domain.User),
		idByHandle: make(map[string]string),
		payments:   make(map[string]paymentEdge),
		outgoing:   make(map[string][]string),
		userLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if _, ok := s.userLocks[userID]; !ok {
		s.userLocks[userID] = &sync.Mutex{}
	}
	return s.userLocks[userID]
}

// CreateUser creates a user vertex with the supplied opening balance.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.NewStoreError("create user", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.idByHandle[user.Handle]; taken {
		return domain.User{}, fmt.Errorf("handle %q: %w", user.Handle, domain.ErrDuplicateHandle)
	}
	if existing, taken := s.usersByID[user.ID]; taken {
		return domain.User{}, fmt.Errorf("user id %q already provisioned for handle %q", user.ID, existing.Handle)
	}
	s.usersByID[user.ID] = user
	s.idByHandle[user.Handle] = user.ID
	return user, nil
}

// FindUserByID returns the user with the given identifier, or nil on a miss.
func (s *Store) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("find user by id", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.usersByID[userID]; ok {
		return &user, nil
	}
	return nil, nil
}

// FindUserByHandle returns the user with the given handle, or nil on a miss.
func (s *Store) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("find user by handle", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.idByHandle[handle]; ok {
		user := s.usersByID[id]
		return &user, nil
	}
	return nil, nil
}

// ListUsers returns all users ordered by handle ascending.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("list users", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Handle < users[j].Handle })
	return users, nil
}

// CreatePayment executes the atomic transfer. Both user locks are held for
// the whole check-then-mutate sequence, acquired in ID order so two
// opposing transfers cannot deadlock; the store mutex is taken only around
// map access, so transfers on disjoint user pairs run concurrently. A
// failed precondition leaves the graph untouched.
func (s *Store) CreatePayment(ctx context.Context, senderID, recipientID string, tx domain.Transaction) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, domain.NewStoreError("create payment", err)
	}
	if senderID == recipientID {
		return domain.Transaction{}, domain.ErrSelfTransfer
	}

	senderLock := s.userLock(senderID)
	recipientLock := s.userLock(recipientID)
	if senderID < recipientID {
		senderLock.Lock()
		recipientLock.Lock()
	} else {
		recipientLock.Lock()
		senderLock.Lock()
	}
	defer senderLock.Unlock()
	defer recipientLock.Unlock()

	s.mu.RLock()
	sender, senderOK := s.usersByID[senderID]
	_, recipientOK := s.usersByID[recipientID]
	s.mu.RUnlock()

	if !senderOK {
		return domain.Transaction{}, fmt.Errorf("sender %s: %w", senderID, domain.ErrSenderNotFound)
	}
	if sender.Balance < tx.Amount {
		return domain.Transaction{}, fmt.Errorf("balance %.2f below amount %.2f: %w", sender.Balance, tx.Amount, domain.ErrInsufficientFunds)
	}
	if !recipientOK {
		return domain.Transaction{}, fmt.Errorf("recipient %s: %w", recipientID, domain.ErrUserNotFound)
	}

	tx.Status = domain.StatusCompleted

	// Holding both user locks is what keeps the balances read above valid
	// here: only transfers mutate balances, and any transfer touching
	// either user would block on the locks we hold.
	s.mu.Lock()
	defer s.mu.Unlock()
	sender = s.usersByID[senderID]
	recipient := s.usersByID[recipientID]
	sender.Balance -= tx.Amount
	recipient.Balance += tx.Amount
	s.usersByID[senderID] = sender
	s.usersByID[recipientID] = recipient
	s.payments[tx.ID] = paymentEdge{tx: tx, senderID: senderID, recipientID: recipientID}
	s.outgoing[senderID] = append(s.outgoing[senderID], tx.ID)
	return tx, nil
}

// PaymentsBySender returns payments initiated by the user, newest first.
func (s *Store) PaymentsBySender(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	return s.listPayments(ctx, func(edge paymentEdge) bool { return edge.senderID == userID })
}

// PaymentsByRecipient returns payments received by the user, newest first.
func (s *Store) PaymentsByRecipient(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	return s.listPayments(ctx, func(edge paymentEdge) bool { return edge.recipientID == userID })
}

func (s *Store) listPayments(ctx context.Context, match func(paymentEdge) bool) ([]domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("list payments", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.PaymentRecord, 0)
	for _, edge := range s.payments {
		if !match(edge) {
			continue
		}
		records = append(records, domain.PaymentRecord{
			TransactionID:   edge.tx.ID,
			SenderHandle:    s.usersByID[edge.senderID].Handle,
			RecipientHandle: s.usersByID[edge.recipientID].Handle,
			Amount:          edge.tx.Amount,
			Description:     edge.tx.Description,
			Timestamp:       edge.tx.Timestamp,
			Status:          edge.tx.Status,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

type partialPath struct {
	userID string
	txIDs  []string
}

// FindPaymentPaths runs a bounded breadth-first search over the adjacency
// structure: sender -> outgoing transactions -> recipient. Depth is capped
// at maxSteps, each transaction edge is used at most once per path, and
// the search short-circuits once 10 paths are found. Breadth-first
// expansion yields results ordered by path length ascending.
func (s *Store) FindPaymentPaths(ctx context.Context, startHandle, endHandle string, maxSteps int) ([]domain.PaymentPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("find payment paths", err)
	}
	if maxSteps < 1 {
		return nil, domain.ErrInvalidMaxSteps
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	startID, ok := s.idByHandle[startHandle]
	endID, endOK := s.idByHandle[endHandle]
	if !ok || !endOK {
		return []domain.PaymentPath{}, nil
	}

	const maxResults = 10

	paths := make([]domain.PaymentPath, 0, maxResults)
	frontier := []partialPath{{userID: startID}}
	for depth := 1; depth <= maxSteps && len(frontier) > 0 && len(paths) < maxResults; depth++ {
		var next []partialPath
		for _, partial := range frontier {
			for _, txID := range s.outgoing[partial.userID] {
				if containsID(partial.txIDs, txID) {
					continue
				}
				extended := partialPath{
					userID: s.payments[txID].recipientID,
					txIDs:  append(append([]string(nil), partial.txIDs...), txID),
				}
				if extended.userID == endID {
					paths = append(paths, s.buildPath(startID, extended.txIDs))
					if len(paths) == maxResults {
						return paths, nil
					}
				}
				next = append(next, extended)
			}
		}
		frontier = next
	}
	return paths, nil
}

func (s *Store) buildPath(startID string, txIDs []string) domain.PaymentPath {
	entries := make([]domain.PathEntry, 0, 2*len(txIDs)+1)
	entries = append(entries, domain.PathEntry{
		Type:   domain.EntryTypeUser,
		Handle: s.usersByID[startID].Handle,
	})
	for _, txID := range txIDs {
		edge := s.payments[txID]
		entries = append(entries, domain.PathEntry{
			Type:          domain.EntryTypeTransaction,
			TransactionID: edge.tx.ID,
			Amount:        edge.tx.Amount,
			Description:   edge.tx.Description,
			Timestamp:     edge.tx.Timestamp,
		})
		entries = append(entries, domain.PathEntry{
			Type:   domain.EntryTypeUser,
			Handle: s.usersByID[edge.recipientID].Handle,
		})
	}
	return domain.PaymentPath{Steps: len(txIDs), Entries: entries}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
