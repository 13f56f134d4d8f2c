package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// NewNeo4jClient establishes a Bolt connection using the official Neo4j
// driver and verifies connectivity before returning.
func NewNeo4jClient(ctx context.Context, opts Options) (Client, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	if err := ensureConstraints(ctx, driver, opts.Database); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	return &neo4jClient{
		driver:   driver,
		database: opts.Database,
	}, nil
}

// Identifier and handle uniqueness are enforced by the database, not only
// by the repository's in-transaction checks: those checks are unlocked
// reads and two concurrent creates can both pass them. The constraint
// rejects the loser at commit time.
var schemaConstraints = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.userId IS UNIQUE`,
	`CREATE CONSTRAINT user_handle_unique IF NOT EXISTS FOR (u:User) REQUIRE u.handle IS UNIQUE`,
	`CREATE CONSTRAINT transaction_id_unique IF NOT EXISTS FOR (t:Transaction) REQUIRE t.transactionId IS UNIQUE`,
}

func ensureConstraints(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	for _, statement := range schemaConstraints {
		res, err := session.Run(ctx, statement, nil)
		if err != nil {
			return fmt.Errorf("apply schema constraint: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("apply schema constraint: %w", err)
		}
	}
	return nil
}

type neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
}

// WriteTx runs the unit of work inside one explicit write transaction.
// Explicit transactions are used instead of the driver's managed ones so
// that failed transactions surface to the caller without transparent
// retries; retry policy belongs to the caller.
func (c *neo4jClient) WriteTx(ctx context.Context, work UnitOfWork) (any, error) {
	return c.runInTx(ctx, neo4j.AccessModeWrite, work)
}

// ReadTx runs the unit of work inside one explicit read transaction.
func (c *neo4jClient) ReadTx(ctx context.Context, work UnitOfWork) (any, error) {
	return c.runInTx(ctx, neo4j.AccessModeRead, work)
}

func (c *neo4jClient) runInTx(ctx context.Context, mode neo4j.AccessMode, work UnitOfWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	out, err := work(ctx, &neo4jTx{tx: tx})
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return out, nil
}

func (c *neo4jClient) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

type neo4jTx struct {
	tx neo4j.ExplicitTransaction
}

func (t *neo4jTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, err
	}
	return consumeResult(ctx, res)
}

// consumeResult drains the statement cursor inside the transaction; records
// must be collected before commit or rollback invalidates them.
func consumeResult(ctx context.Context, res neo4j.ResultWithContext) (Result, error) {
	var records []Record
	for res.Next(ctx) {
		rec := res.Record()
		record := make(Record, len(rec.Keys))
		for _, key := range rec.Keys {
			value, _ := rec.Get(key)
			record[key] = value
		}
		records = append(records, record)
	}
	if err := res.Err(); err != nil {
		return Result{}, err
	}
	return Result{Records: records}, nil
}
