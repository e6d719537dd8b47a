package contract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type order struct {
	ID     string
	Amount int
}

func TestDecodeBuildsTypedRecordFromData(t *testing.T) {
	rec := Record{Operation: OperationInsert, Data: map[string]any{"id": "o1", "amount": 42}}

	typed, err := Decode(rec, func(data map[string]any) (order, error) {
		return order{ID: data["id"].(string), Amount: data["amount"].(int)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, order{ID: "o1", Amount: 42}, typed.Value)
	require.Equal(t, OperationInsert, typed.Operation)
}

func TestDecodePropagatesDecodeError(t *testing.T) {
	wantErr := errors.New("bad shape")
	rec := Record{Data: map[string]any{}}

	_, err := Decode(rec, func(map[string]any) (order, error) {
		return order{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
