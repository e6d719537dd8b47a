package relational

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/ILLUVRSE/streamkit/internal/cdc/contract"
)

// Config configures a RelationalSource.
type Config struct {
	CaptureInstance string // passed as the first argument to ChangesFunc
	ChangesFunc     string // server function name; default "get_all_changes"
	CurrentLSNQuery string // query returning the current tip LSN; default "SELECT sys.fn_cdc_get_max_lsn()"
	Table           string // table/view RelationalSource.InitialLoad scans for the initial snapshot
}

// RelationalSource implements contract.Reader and contract.InitialLoader
// against a server exposing change rows through a table-valued function.
// Positions are hex-encoded LSN bytes.
type RelationalSource struct {
	db  *sql.DB
	cfg Config
}

// NewRelationalSource builds a RelationalSource with cfg defaults filled
// in.
func NewRelationalSource(db *sql.DB, cfg Config) *RelationalSource {
	if cfg.ChangesFunc == "" {
		cfg.ChangesFunc = "get_all_changes"
	}
	if cfg.CurrentLSNQuery == "" {
		cfg.CurrentLSNQuery = "SELECT sys.fn_cdc_get_max_lsn()"
	}
	return &RelationalSource{db: db, cfg: cfg}
}

// CurrentPosition returns the server's current tip LSN, hex-encoded.
func (s *RelationalSource) CurrentPosition(ctx context.Context) (string, error) {
	var raw []byte
	if err := s.db.QueryRowContext(ctx, s.cfg.CurrentLSNQuery).Scan(&raw); err != nil {
		return "", fmt.Errorf("%w: current lsn: %v", contract.ErrSourceTransient, err)
	}
	return hex.EncodeToString(raw), nil
}

// operationFromCode maps the server's numeric operation code to a
// contract.Operation: 1->Delete(old), 2->Insert, 3->filtered out
// (update-old), 4->Update(new), 5->Delete(new).
func operationFromCode(code int) (contract.Operation, bool) {
	switch code {
	case 1:
		return contract.OperationDelete, true
	case 2:
		return contract.OperationInsert, true
	case 3:
		return "", false // update-old row, filtered out
	case 4:
		return contract.OperationUpdate, true
	case 5:
		return contract.OperationDelete, true
	default:
		return contract.OperationUnknown, true
	}
}

// ReadChangesSince queries get_all_changes(capture_instance, from, to,
// 'all update old') and returns every change in server order, along with
// the new position: the highest LSN among the returned rows, or from when
// no row is newer; when from is empty and no row comes back, the current
// tip.
func (s *RelationalSource) ReadChangesSince(ctx context.Context, from string) ([]contract.Record, string, error) {
	to, err := s.CurrentPosition(ctx)
	if err != nil {
		return nil, "", err
	}

	var fromLSN []byte
	if from != "" {
		fromLSN, err = hex.DecodeString(from)
		if err != nil {
			return nil, "", fmt.Errorf("%w: decode from-lsn %q: %v", contract.ErrSerialization, from, err)
		}
	}
	toLSN, err := hex.DecodeString(to)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode to-lsn %q: %v", contract.ErrSerialization, to, err)
	}

	query := fmt.Sprintf(`SELECT * FROM %s($1, $2, $3, 'all update old')`, s.cfg.ChangesFunc)
	rows, err := s.db.QueryContext(ctx, query, s.cfg.CaptureInstance, fromLSN, toLSN)
	if err != nil {
		return nil, "", fmt.Errorf("%w: query %s: %v", contract.ErrSourceTransient, s.cfg.ChangesFunc, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, "", fmt.Errorf("%w: columns: %v", contract.ErrSourceTransient, err)
	}

	var records []contract.Record
	maxLSN := fromLSN
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range dest {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, "", fmt.Errorf("%w: scan: %v", contract.ErrSourceTransient, err)
		}

		row := make(map[string]interface{}, len(cols))
		var lsn []byte
		var opCode int
		for i, col := range cols {
			val := *(dest[i].(*interface{}))
			switch col {
			case "__$start_lsn", "lsn":
				if b, ok := val.([]byte); ok {
					lsn = b
				}
			case "__$operation", "operation":
				switch n := val.(type) {
				case int64:
					opCode = int(n)
				case int32:
					opCode = int(n)
				case int:
					opCode = n
				}
			default:
				row[col] = val
			}
		}

		op, keep := operationFromCode(opCode)
		if !keep {
			continue
		}
		if Compare(lsn, maxLSN) > 0 {
			maxLSN = lsn
		}
		records = append(records, contract.Record{
			Operation: op,
			Data:      row,
			Position:  hex.EncodeToString(lsn),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: row iteration: %v", contract.ErrSourceTransient, err)
	}

	if len(maxLSN) == 0 {
		return records, to, nil
	}
	return records, hex.EncodeToString(maxLSN), nil
}

// InitialLoad scans Table in full and emits each row as an InitialLoad
// record; the worker stamps the operation and source id.
func (s *RelationalSource) InitialLoad(ctx context.Context, emit func(contract.Record)) error {
	if s.cfg.Table == "" {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, s.cfg.Table))
	if err != nil {
		return fmt.Errorf("%w: initial load query: %v", contract.ErrSourceTransient, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: initial load columns: %v", contract.ErrSourceTransient, err)
	}
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range dest {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("%w: initial load scan: %v", contract.ErrSourceTransient, err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = *(dest[i].(*interface{}))
		}
		emit(contract.Record{Data: row})
	}
	return rows.Err()
}
