// Package audit records every write operation the server performs. Entries
// always go to the log; when a bucket is configured they are also archived
// as one JSON object per entry in S3-compatible storage.
//
// Statement parameters are never recorded.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/umarmk/mcp-server/internal/filestore"
	"github.com/umarmk/mcp-server/internal/logger"
)

// KeyPrefix is the object key prefix every archived entry lives under.
const KeyPrefix = "audit/"

// Entry is one audited operation.
type Entry struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Tool         string    `json:"tool"`
	Schema       string    `json:"schema,omitempty"`
	Table        string    `json:"table,omitempty"`
	SQL          string    `json:"sql"`
	Status       string    `json:"status"` // ok or error
	ErrorKind    string    `json:"error_kind,omitempty"`
	RowsAffected int64     `json:"rows_affected"`
	DurationMS   int64     `json:"duration_ms"`
}

// Key returns the object key the entry is archived under.
func (e Entry) Key() string {
	return fmt.Sprintf("%s%s/%s.json", KeyPrefix, e.Time.UTC().Format("2006/01/02"), e.ID)
}

// Recorder writes audit entries. A nil *Recorder discards them.
type Recorder struct {
	log    *logger.Logger
	store  filestore.Store
	bucket string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithArchive archives entries to bucket in store.
func WithArchive(store filestore.Store, bucket string) Option {
	return func(r *Recorder) {
		r.store = store
		r.bucket = bucket
	}
}

// NewRecorder returns a Recorder that logs through log.
func NewRecorder(log *logger.Logger, opts ...Option) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	r := &Recorder{log: log}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Archived reports whether entries are written to object storage.
func (r *Recorder) Archived() bool {
	return r != nil && r.store != nil && r.bucket != ""
}

// Prepare creates the archive bucket when it is missing.
func (r *Recorder) Prepare(ctx context.Context) error {
	if !r.Archived() {
		return nil
	}
	return r.store.EnsureBucket(ctx, r.bucket)
}

// Record logs e and archives it when configured. Archive failures are logged
// and never returned; the audited operation has already happened.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	r.log.InfoWith("audit", map[string]interface{}{
		"audit_id":      e.ID,
		"tool":          e.Tool,
		"table":         e.Table,
		"status":        e.Status,
		"error_kind":    e.ErrorKind,
		"rows_affected": e.RowsAffected,
		"duration_ms":   e.DurationMS,
	})

	if !r.Archived() {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		r.log.WarnWith("audit entry encode failed", err, map[string]interface{}{"audit_id": e.ID})
		return
	}
	if err := r.store.PutObject(ctx, r.bucket, e.Key(), body, "application/json"); err != nil {
		r.log.WarnWith("audit archive write failed", err, map[string]interface{}{"audit_id": e.ID})
	}
}

// List returns archived entries under prefix (relative to KeyPrefix), newest
// first, at most limit of them when limit > 0.
func (r *Recorder) List(ctx context.Context, prefix string, limit int) ([]filestore.ObjectInfo, error) {
	if !r.Archived() {
		return nil, errNotArchived
	}
	objs, err := r.store.ListObjects(ctx, r.bucket, filestore.ListOptions{
		Prefix:    KeyPrefix + prefix,
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].LastModified.After(objs[j].LastModified) })
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}

// Get reads one archived entry back.
func (r *Recorder) Get(ctx context.Context, key string) (*Entry, error) {
	if !r.Archived() {
		return nil, errNotArchived
	}
	rc, err := r.store.GetObject(ctx, r.bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode audit entry %s: %w", key, err)
	}
	return &e, nil
}
