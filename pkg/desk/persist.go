package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haivivi/deskmate/pkg/kv"
	"github.com/haivivi/deskmate/pkg/storage"
	"github.com/sethvargo/go-retry"
)

// PersistedConversation is the document written after every completed
// turn.
type PersistedConversation struct {
	ID           string `json:"id"`
	Conversation []Turn `json:"conversation"`
}

// Sink durably stores conversation documents. Upsert must be idempotent
// for a given document id.
type Sink interface {
	Upsert(ctx context.Context, doc *PersistedConversation) error
}

// Reader is implemented by sinks that can read documents back.
type Reader interface {
	Get(ctx context.Context, id string) (*PersistedConversation, error)
	List(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned by Reader.Get for unknown ids.
var ErrNotFound = errors.New("desk: conversation not found")

// KVSink stores documents as JSON under {prefix}:{id}.
type KVSink struct {
	store  kv.Store
	prefix kv.Key
}

// NewKVSink returns a sink over store. A nil prefix means
// kv.Key{"conversations"}.
func NewKVSink(store kv.Store, prefix kv.Key) *KVSink {
	if len(prefix) == 0 {
		prefix = kv.Key{"conversations"}
	}
	return &KVSink{store: store, prefix: prefix}
}

func (s *KVSink) key(id string) kv.Key {
	return append(slices.Clone(s.prefix), id)
}

func (s *KVSink) Upsert(ctx context.Context, doc *PersistedConversation) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.key(doc.ID), data)
}

func (s *KVSink) Get(ctx context.Context, id string) (*PersistedConversation, error) {
	data, err := s.store.Get(ctx, s.key(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var doc PersistedConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("desk: decode conversation %s: %w", id, err)
	}
	return &doc, nil
}

func (s *KVSink) List(ctx context.Context) ([]string, error) {
	var ids []string
	for e, err := range s.store.List(ctx, s.prefix) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, e.Key[len(e.Key)-1])
	}
	return ids, nil
}

// FileSink stores documents as {dir}/{id}.json in a FileStore.
type FileSink struct {
	files storage.FileStore
	dir   string
}

// NewFileSink returns a sink over files. An empty dir means "conversations".
func NewFileSink(files storage.FileStore, dir string) *FileSink {
	if dir == "" {
		dir = "conversations"
	}
	return &FileSink{files: files, dir: dir}
}

func (s *FileSink) path(id string) string {
	return path.Join(s.dir, id+".json")
}

func (s *FileSink) Upsert(ctx context.Context, doc *PersistedConversation) error {
	w, err := s.files.Write(ctx, s.path(doc.ID))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *FileSink) Get(ctx context.Context, id string) (*PersistedConversation, error) {
	r, err := s.files.Read(ctx, s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc PersistedConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("desk: decode conversation %s: %w", id, err)
	}
	return &doc, nil
}

func (s *FileSink) List(ctx context.Context) ([]string, error) {
	paths, err := s.files.List(ctx, s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if name := path.Base(p); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

var (
	_ Reader = (*KVSink)(nil)
	_ Reader = (*FileSink)(nil)
)

// Persister saves a fresh document per completed turn. Failed saves are
// retried with exponential backoff and then held in a pending buffer that
// is flushed before the next save and by Flush. It is safe for concurrent
// use.
type Persister struct {
	Sink Sink

	// Retries < 0 disables retry. Zero means DefaultRetries.
	Retries      int
	RetryBackoff time.Duration

	// NewID generates document ids. Defaults to uuid.NewString.
	NewID func() string

	Logger *slog.Logger

	mu      sync.Mutex
	pending []*PersistedConversation
}

// Save writes the transcript under a fresh id and returns that id. The
// document is buffered when the sink keeps failing; the returned error
// reports the failure but the document is not lost.
func (p *Persister) Save(ctx context.Context, turns []Turn) (string, error) {
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	doc := &PersistedConversation{ID: newID(), Conversation: slices.Clone(turns)}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked(ctx)
	if err := p.upsert(ctx, doc); err != nil {
		p.pending = append(p.pending, doc)
		p.logger().Error("persist failed, buffered", "doc", doc.ID, "pending", len(p.pending), "error", err)
		return doc.ID, fmt.Errorf("desk: persist %s: %w", doc.ID, err)
	}
	return doc.ID, nil
}

// Flush retries buffered documents and returns how many remain.
func (p *Persister) Flush(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.flushLocked(ctx)
	return len(p.pending), err
}

// Pending returns the number of buffered documents.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Persister) flushLocked(ctx context.Context) error {
	var (
		remain []*PersistedConversation
		errs   []error
	)
	for _, doc := range p.pending {
		if err := p.upsert(ctx, doc); err != nil {
			remain = append(remain, doc)
			errs = append(errs, err)
			continue
		}
		p.logger().Info("flushed buffered conversation", "doc", doc.ID)
	}
	p.pending = remain
	return errors.Join(errs...)
}

func (p *Persister) upsert(ctx context.Context, doc *PersistedConversation) error {
	retries := p.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	if retries < 0 {
		retries = 0
	}
	backoff := p.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	b := retry.WithMaxRetries(uint64(retries), retry.NewExponential(backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := p.Sink.Upsert(ctx, doc); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (p *Persister) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
