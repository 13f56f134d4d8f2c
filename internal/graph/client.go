package graph

import (
	"context"
	"errors"
)

// UnitOfWork is a function executed inside a single scoped transaction. Any
// error returned rolls the transaction back; a nil error commits it.
type UnitOfWork func(ctx context.Context, tx Tx) (any, error)

// Client defines the minimal contract required by the repositories to
// interact with the underlying graph database. Both methods open a scoped
// session, wrap the unit of work in one explicit transaction, and release
// the session on every exit path. No retries happen at this layer.
type Client interface {
	ReadTx(ctx context.Context, work UnitOfWork) (any, error)
	WriteTx(ctx context.Context, work UnitOfWork) (any, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the handle a unit of work uses to run statements inside its
// transaction.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Record groups key-value pairs returned from the graph engine. Values keep
// the driver's native representation; the repository projector converts
// them to domain shapes.
type Record map[string]any

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
