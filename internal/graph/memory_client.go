package graph

import (
	"context"
	"sync"
)

// MemoryClient is a statement-playback implementation of the Client
// interface used for unit testing repository logic without a running graph
// database. It records every executed statement and replays canned results
// in order.
type MemoryClient struct {
	mu         sync.Mutex
	statements []ExecutedStatement
	results    []Result
	err        error
	failAfter  int // fail the Nth Run call (1-based); 0 disables

	connectivity error
	runCount     int
	rollbacks    int
	commits      int
}

// ExecutedStatement captures a cypher statement and parameters executed
// against the graph, along with the access mode of its transaction.
type ExecutedStatement struct {
	Query  string
	Params map[string]any
	Write  bool
}

// NewMemoryClient instantiates the in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError configures the client to return the provided error for every
// subsequent statement.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// FailOnStatement makes the Nth executed statement (1-based) return err,
// so tests can observe a transaction aborting mid-flight.
func (m *MemoryClient) FailOnStatement(n int, err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// PushResult appends a result returned by the next Run call.
func (m *MemoryClient) PushResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
}

func (m *MemoryClient) ReadTx(ctx context.Context, work UnitOfWork) (any, error) {
	return m.runTx(ctx, work, false)
}

func (m *MemoryClient) WriteTx(ctx context.Context, work UnitOfWork) (any, error) {
	return m.runTx(ctx, work, true)
}

func (m *MemoryClient) runTx(ctx context.Context, work UnitOfWork, write bool) (any, error) {
	out, err := work(ctx, &memoryTx{client: m, write: write})
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.rollbacks++
		return nil, err
	}
	m.commits++
	return out, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error { return nil }

// Statements returns a snapshot of executed statements in order.
func (m *MemoryClient) Statements() []ExecutedStatement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedStatement(nil), m.statements...)
}

// Rollbacks reports how many transactions ended with an error.
func (m *MemoryClient) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

// Commits reports how many transactions completed normally.
func (m *MemoryClient) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

type memoryTx struct {
	client *MemoryClient
	write  bool
}

func (t *memoryTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m := t.client
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runCount++
	if m.err != nil && (m.failAfter == 0 || m.runCount >= m.failAfter) {
		return Result{}, m.err
	}

	m.statements = append(m.statements, ExecutedStatement{
		Query:  cypher,
		Params: cloneMap(params),
		Write:  t.write,
	})

	if len(m.results) == 0 {
		return Result{}, nil
	}
	res := m.results[0]
	m.results = m.results[1:]
	return res, nil
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
