package docstream

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ILLUVRSE/streamkit/internal/cdc/contract"
)

func mustMarshal(t *testing.T, v interface{}) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestToRecordMapsInsertUpdateReplaceToFullDocument(t *testing.T) {
	doc := mustMarshal(t, bson.M{"_id": "o1", "amount": int32(100)})

	for _, opType := range []string{"insert", "update", "replace"} {
		event := changeEvent{OperationType: opType, FullDocument: doc}
		rec, ok := toRecord(event)
		require.True(t, ok, opType)
		require.Equal(t, "o1", rec.Data["_id"])
		require.EqualValues(t, 100, rec.Data["amount"])
	}
	require.Equal(t, contract.OperationInsert, mustToRecord(t, changeEvent{OperationType: "insert", FullDocument: doc}).Operation)
	require.Equal(t, contract.OperationUpdate, mustToRecord(t, changeEvent{OperationType: "update", FullDocument: doc}).Operation)
	require.Equal(t, contract.OperationUpdate, mustToRecord(t, changeEvent{OperationType: "replace", FullDocument: doc}).Operation)
}

func mustToRecord(t *testing.T, event changeEvent) contract.Record {
	t.Helper()
	rec, ok := toRecord(event)
	require.True(t, ok)
	return rec
}

func TestToRecordMapsDeleteToDocumentKey(t *testing.T) {
	key := mustMarshal(t, bson.M{"_id": "o1"})
	event := changeEvent{OperationType: "delete", DocumentKey: key}

	rec, ok := toRecord(event)
	require.True(t, ok)
	require.Equal(t, contract.OperationDelete, rec.Operation)
	require.Equal(t, "o1", rec.Data["_id"])
}

func TestToRecordFallsBackToUppercasedOperationType(t *testing.T) {
	key := mustMarshal(t, bson.M{"_id": "o1"})
	event := changeEvent{OperationType: "invalidate", DocumentKey: key}

	rec, ok := toRecord(event)
	require.True(t, ok)
	require.Equal(t, contract.Operation("INVALIDATE"), rec.Operation)
}

func TestToRecordReturnsFalseWhenDocumentIsMissing(t *testing.T) {
	_, ok := toRecord(changeEvent{OperationType: "insert"})
	require.False(t, ok)
}

func TestToRecordReturnsFalseOnUnparseableDocument(t *testing.T) {
	_, ok := toRecord(changeEvent{OperationType: "insert", FullDocument: bson.Raw{0x01, 0x02}})
	require.False(t, ok)
}

func TestToUpperOnlyTouchesLowercaseASCII(t *testing.T) {
	require.Equal(t, "INVALIDATE", toUpper("invalidate"))
	require.Equal(t, "DROP_DATABASE", toUpper("drop_DATABASE"))
}

func TestEncodeDecodeTokenRoundTrip(t *testing.T) {
	token := mustMarshal(t, bson.M{"_data": "8264F0A1B2000000012B0229296E04"})

	encoded, err := encodeToken(token)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := decodeToken(encoded)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, bson.Unmarshal(decoded, &m))
	require.Equal(t, "8264F0A1B2000000012B0229296E04", m["_data"])
}

func TestEncodeTokenNilReturnsEmptyString(t *testing.T) {
	encoded, err := encodeToken(nil)
	require.NoError(t, err)
	require.Equal(t, "", encoded)
}
