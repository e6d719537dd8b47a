package contract

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Reader is the piece of a CDC source that differs per backend
// (relational polling, logical replication, document change streams):
// read every change since a position, returning the batch in server
// order and the position to resume from next.
type Reader interface {
	CurrentPosition(ctx context.Context) (string, error)
	ReadChangesSince(ctx context.Context, from string) (batch []Record, to string, err error)
}

// InitialLoader performs the one-time full scan/snapshot a source runs
// before tailing changes, if configured to do so.
type InitialLoader interface {
	InitialLoad(ctx context.Context, emit func(Record)) error
}

// ServerConfigurer idempotently creates the server-side CDC artefacts
// (publication, capture instance, slot). Duplicate-creation errors are
// the configurer's responsibility to swallow.
type ServerConfigurer interface {
	ConfigureCDCOnServer(ctx context.Context) error
}

// Config holds the CDC source operator's general-contract configuration,
// independent of backend.
type Config struct {
	SourceID             string // "<namespace>.<name>"
	DoInitialLoad        bool
	PollInterval         time.Duration
	MaxBackoff           time.Duration
	ConfigureCDCOnServer bool
}

// Worker drives the general CDC lifecycle against a backend-specific
// Reader, optional InitialLoader and ServerConfigurer. It implements
// engine.Source[Record].
type Worker struct {
	cfg         Config
	reader      Reader
	loader      InitialLoader    // optional
	configurer  ServerConfigurer // optional
	checkpoints *CheckpointStore

	stopped atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker builds a Worker. loader and configurer may be nil.
func NewWorker(cfg Config, reader Reader, loader InitialLoader, configurer ServerConfigurer, checkpoints *CheckpointStore) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Worker{
		cfg:         cfg,
		reader:      reader,
		loader:      loader,
		configurer:  configurer,
		checkpoints: checkpoints,
		stopCh:      make(chan struct{}),
	}
}

// Start runs server configuration, initial load, and position seeding
// synchronously, then spawns the background poll loop. Initial-load
// failures abort Start and leave initial_load_done unset.
func (w *Worker) Start(ctx context.Context, emit func(Record)) error {
	if w.cfg.ConfigureCDCOnServer && w.configurer != nil {
		if err := w.configurer.ConfigureCDCOnServer(ctx); err != nil {
			log.Printf("[cdc.%s] configure cdc on server: %v (continuing; duplicate-creation errors are expected)", w.cfg.SourceID, err)
		}
	}

	if w.cfg.DoInitialLoad {
		done, err := w.checkpoints.InitialLoadDone(ctx)
		if err != nil {
			return fmt.Errorf("cdc %s: check initial_load_done: %w", w.cfg.SourceID, err)
		}
		if !done {
			if w.loader == nil {
				return fmt.Errorf("cdc %s: do_initial_load set but source has no InitialLoader", w.cfg.SourceID)
			}
			if err := w.loader.InitialLoad(ctx, func(r Record) {
				r.SourceID = w.cfg.SourceID
				r.Operation = OperationInitialLoad
				emit(r)
			}); err != nil {
				return fmt.Errorf("cdc %s: initial load: %w", w.cfg.SourceID, err)
			}
			if err := w.checkpoints.MarkInitialLoadDone(ctx); err != nil {
				return fmt.Errorf("cdc %s: mark initial_load_done: %w", w.cfg.SourceID, err)
			}
		}
	}

	if _, ok, err := w.checkpoints.LoadPosition(ctx); err != nil {
		return fmt.Errorf("cdc %s: load position: %w", w.cfg.SourceID, err)
	} else if !ok {
		tip, err := w.reader.CurrentPosition(ctx)
		if err != nil {
			return fmt.Errorf("cdc %s: current position: %w", w.cfg.SourceID, err)
		}
		if err := w.checkpoints.SavePosition(ctx, tip); err != nil {
			return fmt.Errorf("cdc %s: save initial position: %w", w.cfg.SourceID, err)
		}
	}

	w.wg.Add(1)
	go w.loop(ctx, emit)
	return nil
}

// Stop sets the stopped flag and joins the worker; in-flight reads are
// allowed to complete.
func (w *Worker) Stop() error {
	w.stopped.Store(true)
	close(w.stopCh)
	w.wg.Wait()
	return nil
}

func (w *Worker) loop(ctx context.Context, emit func(Record)) {
	defer w.wg.Done()

	backoff := time.Second
	for !w.stopped.Load() {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if err := w.runCycle(ctx, emit); err != nil {
			log.Printf("[cdc.%s] cycle error: %v", w.cfg.SourceID, err)
			if !w.sleep(backoff) {
				return
			}
			backoff *= 2
			if backoff > w.cfg.MaxBackoff {
				backoff = w.cfg.MaxBackoff
			}
			continue
		}

		if !w.sleep(w.cfg.PollInterval) {
			return
		}
		backoff = time.Second
	}
}

// sleep waits for d or the stop signal, whichever comes first. It returns
// false if the worker was stopped during the wait.
func (w *Worker) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// runCycle is one poll-loop iteration: read the batch since the last
// position, dedup adjacent records by hash, emit, and advance both
// checkpoints.
func (w *Worker) runCycle(ctx context.Context, emit func(Record)) error {
	pos, _, err := w.checkpoints.LoadPosition(ctx)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	batch, newPos, err := w.reader.ReadChangesSince(ctx, pos)
	if err != nil {
		return fmt.Errorf("%w: read changes since %q: %v", ErrSourceTransient, pos, err)
	}
	last, _, err := w.checkpoints.LoadLastHash(ctx)
	if err != nil {
		return fmt.Errorf("load last hash: %w", err)
	}

	for _, change := range batch {
		if w.stopped.Load() {
			break
		}
		h := HashRecordData(change.Data)
		if h == last {
			continue // dedup adjacent duplicates
		}
		change.SourceID = w.cfg.SourceID
		emit(change)
		last = h
		if err := w.checkpoints.SaveLastHash(ctx, last); err != nil {
			return fmt.Errorf("save last hash: %w", err)
		}
	}

	if len(batch) > 0 {
		if err := w.checkpoints.SavePosition(ctx, newPos); err != nil {
			return fmt.Errorf("save position: %w", err)
		}
	}
	return nil
}
