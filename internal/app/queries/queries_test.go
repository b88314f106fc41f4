package queries_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogshare/internal/app/queries"
)

type lengthQuery struct{ Text string }

func (lengthQuery) Key() string { return "test.length" }

type missingQuery struct{}

func (missingQuery) Key() string { return "test.missing" }

func TestAskReturnsTypedResult(t *testing.T) {
	bus := queries.NewInMemoryBus()
	boom := errors.New("boom")
	queries.Register[lengthQuery, int](bus, queries.HandlerFunc[lengthQuery, int](
		func(ctx context.Context, q lengthQuery) (int, error) {
			if q.Text == "" {
				return 0, boom
			}
			return len(q.Text), nil
		}))

	n, err := queries.Ask[lengthQuery, int](context.Background(), bus, lengthQuery{Text: "fido"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = queries.Ask[lengthQuery, int](context.Background(), bus, lengthQuery{})
	assert.ErrorIs(t, err, boom)

	_, err = queries.Ask[missingQuery, int](context.Background(), bus, missingQuery{})
	assert.ErrorIs(t, err, queries.ErrHandlerNotFound)
}
