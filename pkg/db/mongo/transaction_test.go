package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver"
)

func TestIsTransientConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"write conflict command error", mongo.CommandError{Code: 112, Name: "WriteConflict"}, true},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{driver.TransientTransactionError}}, true},
		{"wrapped write exception", fmt.Errorf("insert: %w", mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{Code: 112, Message: "write conflict"}},
		}), true},
		{"duplicate key", mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000"}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientConflict(tt.err))
		})
	}
}

func TestNoopTransactionManager(t *testing.T) {
	called := false
	err := NoopTransactionManager{}.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	want := errors.New("abort")
	err = NoopTransactionManager{}.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}
