package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/filestore"
	"github.com/umarmk/mcp-server/internal/logger"
)

type memStore struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	mtime   map[string]time.Time
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{buckets: map[string]bool{}, objects: map[string][]byte{}, mtime: map[string]time.Time{}}
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, data []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	m.mtime[bucket+"/"+key] = time.Now()
	return nil
}

func (m *memStore) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []filestore.ObjectInfo
	for k, v := range m.objects {
		key := strings.TrimPrefix(k, bucket+"/")
		if key == k || !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		out = append(out, filestore.ObjectInfo{Key: key, Size: int64(len(v)), LastModified: m.mtime[k]})
	}
	return out, nil
}

func (m *memStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidArgument, "no such key")
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

func sampleEntry(id string, at time.Time) Entry {
	return Entry{
		ID:           id,
		Time:         at,
		Tool:         "delete_records",
		Schema:       "public",
		Table:        "items",
		SQL:          `DELETE FROM "public"."items" WHERE "id" = $1`,
		Status:       "ok",
		RowsAffected: 1,
		DurationMS:   3,
	}
}

func TestEntryKey(t *testing.T) {
	e := sampleEntry("abc", time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("X", -2*3600)))
	assert.Equal(t, "audit/2026/10/20/abc.json", e.Key())
}

func TestRecord_LogsEntry(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf})

	NewRecorder(log).Record(context.Background(), sampleEntry("id-1", time.Now()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["message"])
	assert.Equal(t, "id-1", line["audit_id"])
	assert.Equal(t, "delete_records", line["tool"])
	assert.NotContains(t, buf.String(), "$1", "SQL text stays out of the log line")
}

func TestRecord_Archives(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(logger.Nop(), WithArchive(store, "audit-bucket"))
	require.NoError(t, r.Prepare(context.Background()))
	assert.True(t, store.buckets["audit-bucket"])

	e := sampleEntry("id-2", time.Now())
	r.Record(context.Background(), e)

	got, err := r.Get(context.Background(), e.Key())
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.SQL, got.SQL)
	assert.Equal(t, int64(1), got.RowsAffected)
}

func TestRecord_ArchiveFailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	store.putErr = errors.New("bucket unreachable")
	r := NewRecorder(logger.New(&logger.Config{Level: "warn", Output: &buf}), WithArchive(store, "b"))

	assert.NotPanics(t, func() { r.Record(context.Background(), sampleEntry("id-3", time.Now())) })
	assert.Contains(t, buf.String(), "audit archive write failed")
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(logger.Nop(), WithArchive(store, "b"))
	day := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		r.Record(context.Background(), sampleEntry(id, day))
		time.Sleep(2 * time.Millisecond)
	}

	objs, err := r.List(context.Background(), "2026/10/19", 2)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "audit/2026/10/19/c.json", objs[0].Key)
	assert.Equal(t, "audit/2026/10/19/b.json", objs[1].Key)
}

func TestList_WithoutArchive(t *testing.T) {
	_, err := NewRecorder(nil).List(context.Background(), "", 0)
	assert.Equal(t, errs.ErrKindInvalidArgument, errs.KindOf(err))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.False(t, r.Archived())
	assert.NotPanics(t, func() { r.Record(context.Background(), Entry{}) })
	assert.NoError(t, r.Prepare(context.Background()))
}
