// Package docstream implements CDC against a document database's native
// change-stream cursor (MongoDB), resuming from an opaque server-supplied
// resume token.
package docstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ILLUVRSE/streamkit/internal/cdc/contract"
)

// Config configures a DocStreamSource.
type Config struct {
	Database   string
	Collection string
	// PollTimeout bounds how long a single ReadChangesSince call waits for
	// the next batch of events before returning an empty one.
	PollTimeout time.Duration
}

// DocStreamSource implements contract.Reader against a MongoDB change
// stream. Positions are the change stream's resume token, JSON-encoded.
//
// The position checkpoint advances after a successful emit, not before:
// updating first and then failing to emit (e.g. a sink error propagating
// out of Process) would silently drop the record on restart, which the
// worker's at-least-once contract cannot tolerate.
type DocStreamSource struct {
	client *mongo.Client
	cfg    Config
	stream *mongo.ChangeStream
}

// NewDocStreamSource builds a DocStreamSource.
func NewDocStreamSource(client *mongo.Client, cfg Config) *DocStreamSource {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	return &DocStreamSource{client: client, cfg: cfg}
}

func (s *DocStreamSource) collection() *mongo.Collection {
	return s.client.Database(s.cfg.Database).Collection(s.cfg.Collection)
}

// CurrentPosition opens a change stream at the current tip (no
// resume_after) purely to obtain its initial resume token, then closes it;
// ReadChangesSince reopens with resume_after on the first real read.
func (s *DocStreamSource) CurrentPosition(ctx context.Context) (string, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.collection().Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return "", fmt.Errorf("%w: open change stream: %v", contract.ErrSourceTransient, err)
	}
	defer cs.Close(ctx)
	return encodeToken(cs.ResumeToken())
}

// ReadChangesSince resumes the change stream at position (if any) and
// drains whatever is immediately available, up to PollTimeout.
func (s *DocStreamSource) ReadChangesSince(ctx context.Context, position string) ([]contract.Record, string, error) {
	if s.stream == nil {
		if err := s.openAt(ctx, position); err != nil {
			return nil, position, err
		}
	}

	deadline := time.Now().Add(s.cfg.PollTimeout)
	var records []contract.Record
	lastPosition := position

	for time.Now().Before(deadline) {
		readCtx, cancel := context.WithDeadline(ctx, deadline)
		hasNext := s.stream.TryNext(readCtx)
		cancel()
		if !hasNext {
			if err := s.stream.Err(); err != nil {
				_ = s.stream.Close(ctx)
				s.stream = nil
				return records, lastPosition, fmt.Errorf("%w: change stream: %v", contract.ErrSourceTransient, err)
			}
			break
		}

		var event changeEvent
		if err := s.stream.Decode(&event); err != nil {
			continue // bad payload: skipped, not fatal
		}
		rec, ok := toRecord(event)
		if ok {
			records = append(records, rec)
		}

		// Resume token checkpoint advances after a record is built, not
		// before — see the DocStreamSource doc comment.
		token, err := encodeToken(s.stream.ResumeToken())
		if err == nil {
			lastPosition = token
		}
	}
	return records, lastPosition, nil
}

func (s *DocStreamSource) openAt(ctx context.Context, position string) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if position != "" {
		token, err := decodeToken(position)
		if err != nil {
			return fmt.Errorf("%w: decode resume token: %v", contract.ErrSerialization, err)
		}
		opts = opts.SetResumeAfter(token)
	}
	cs, err := s.collection().Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return fmt.Errorf("%w: open change stream: %v", contract.ErrSourceTransient, err)
	}
	s.stream = cs
	return nil
}

// changeEvent covers the subset of MongoDB's change event shape
// DocStreamSource needs.
type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	DocumentKey   bson.Raw `bson:"documentKey"`
}

func toRecord(event changeEvent) (contract.Record, bool) {
	var op contract.Operation
	var doc bson.Raw

	switch event.OperationType {
	case "insert", "update", "replace":
		op = map[string]contract.Operation{
			"insert":  contract.OperationInsert,
			"update":  contract.OperationUpdate,
			"replace": contract.OperationUpdate,
		}[event.OperationType]
		doc = event.FullDocument
	case "delete":
		op = contract.OperationDelete
		doc = event.DocumentKey
	default:
		op = contract.Operation(toUpper(event.OperationType))
		doc = event.DocumentKey
	}

	if doc == nil {
		return contract.Record{}, false
	}
	var data map[string]interface{}
	if err := bson.Unmarshal(doc, &data); err != nil {
		return contract.Record{}, false
	}
	return contract.Record{Operation: op, Data: data}, true
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func encodeToken(token bson.Raw) (string, error) {
	if token == nil {
		return "", nil
	}
	var m map[string]interface{}
	if err := bson.Unmarshal(token, &m); err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeToken(position string) (bson.Raw, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(position), &m); err != nil {
		return nil, err
	}
	return bson.Marshal(m)
}
