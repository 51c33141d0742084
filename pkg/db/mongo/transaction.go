package mongo

import (
	"context"
	stderrors "errors"
	"fmt"

	apperrors "hulu/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver"
)

// TransactionFunc runs inside a transaction. With the mongo implementation ctx is a
// mongo.SessionContext, so repositories called with it join the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

const writeConflictCode = 112

// IsTransientConflict reports whether err is a write conflict or a transient
// transaction error that is safe to retry from the top.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}

	var labeled mongo.LabeledError
	if stderrors.As(err, &labeled) && labeled.HasErrorLabel(driver.TransientTransactionError) {
		return true
	}

	var cmdErr mongo.CommandError
	if stderrors.As(err, &cmdErr) && cmdErr.Code == writeConflictCode {
		return true
	}

	var writeErr mongo.WriteException
	if stderrors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == writeConflictCode {
				return true
			}
		}
	}

	return false
}

// NoopTransactionManager runs fn directly. Used by tests and by single-node setups
// where the repositories provide their own atomicity.
type NoopTransactionManager struct{}

func (NoopTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
