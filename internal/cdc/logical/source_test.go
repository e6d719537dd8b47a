package logical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/cdc/contract"
)

type fakeSlotReader struct {
	payloads    []string
	newPosition string
	readErr     error
	execCalls   []string
}

func (f *fakeSlotReader) ReadSince(ctx context.Context, position string) ([]string, string, error) {
	if f.readErr != nil {
		return nil, "", f.readErr
	}
	return f.payloads, f.newPosition, nil
}

func (f *fakeSlotReader) CurrentPosition(ctx context.Context) (string, error) {
	return "0/0", nil
}

func (f *fakeSlotReader) Exec(ctx context.Context, stmt string) error {
	f.execCalls = append(f.execCalls, stmt)
	return nil
}

func TestReadChangesSinceDecodesInsertUpdateDelete(t *testing.T) {
	reader := &fakeSlotReader{
		newPosition: "0/1A2B",
		payloads: []string{
			`{"change":[{"kind":"insert","schema":"public","table":"orders","columnnames":["id","amount"],"columnvalues":[1,100]}]}`,
			`{"change":[{"kind":"update","columnnames":["id","amount"],"columnvalues":[1,200]}]}`,
			`{"change":[{"kind":"delete","oldkeys":{"keynames":["id"],"keyvalues":[1]}}]}`,
		},
	}
	src := NewLogicalSource(reader, Config{})

	records, pos, err := src.ReadChangesSince(context.Background(), "0/0")
	require.NoError(t, err)
	require.Equal(t, "0/1A2B", pos)
	require.Len(t, records, 3)

	require.Equal(t, contract.OperationInsert, records[0].Operation)
	require.Equal(t, float64(100), records[0].Data["amount"])

	require.Equal(t, contract.OperationUpdate, records[1].Operation)
	require.Equal(t, float64(200), records[1].Data["amount"])

	require.Equal(t, contract.OperationDelete, records[2].Operation)
	require.Equal(t, float64(1), records[2].Data["id"])
}

func TestReadChangesSinceSkipsMalformedPayloadWithoutFailing(t *testing.T) {
	reader := &fakeSlotReader{
		newPosition: "0/1A2B",
		payloads: []string{
			`not valid json`,
			`{"change":[{"kind":"insert","columnnames":["id"],"columnvalues":[1]}]}`,
		},
	}
	src := NewLogicalSource(reader, Config{})

	records, _, err := src.ReadChangesSince(context.Background(), "0/0")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestConfigureCDCOnServerIsIdempotent(t *testing.T) {
	reader := &fakeSlotReader{}
	src := NewLogicalSource(reader, Config{ReplicaIdentity: "FULL", Table: "orders"})

	require.NoError(t, src.ConfigureCDCOnServer(context.Background()))
	require.NoError(t, src.ConfigureCDCOnServer(context.Background()))

	require.Len(t, reader.execCalls, 1)
	require.Contains(t, reader.execCalls[0], "REPLICA IDENTITY FULL")
}
