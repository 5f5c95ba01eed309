package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id, category, fileType string, uploadedAt time.Time) *FileRecord {
	name := id + ".png"
	return &FileRecord{
		FileID:       id,
		OriginalName: name,
		SafeFilename: id + "_" + name,
		FilePath:     UploadKey(id + "_" + name),
		FileSize:     3,
		FileType:     fileType,
		Category:     category,
		MimeType:     "image/png",
		UploadedAt:   uploadedAt.UTC().Truncate(time.Microsecond),
		Status:       StatusUploaded,
	}
}

// testRecordStore exercises the RecordStore contract against any backend
func testRecordStore(t *testing.T, store RecordStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	a := newRecord("a-"+t.Name(), "general", "image", base)
	b := newRecord("b-"+t.Name(), "invoices", "document", base.Add(time.Minute))
	c := newRecord("c-"+t.Name(), "general", "document", base.Add(2*time.Minute))

	for _, rec := range []*FileRecord{c, a, b} {
		require.NoError(t, store.Insert(ctx, rec))
	}

	t.Run("insert rejects duplicates", func(t *testing.T) {
		assert.Error(t, store.Insert(ctx, a))
	})

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, a.FileID)
		require.NoError(t, err)
		assert.Equal(t, a.OriginalName, got.OriginalName)
		assert.Equal(t, StatusUploaded, got.Status)
		assert.True(t, a.UploadedAt.Equal(got.UploadedAt))

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list in upload order with filters", func(t *testing.T) {
		all, err := store.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{a.FileID, b.FileID, c.FileID}, ids(all))

		general, err := store.List(ctx, Filter{Category: "general"})
		require.NoError(t, err)
		assert.Equal(t, []string{a.FileID, c.FileID}, ids(general))

		docs, err := store.List(ctx, Filter{FileType: "document", Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{b.FileID}, ids(docs))
	})

	t.Run("update", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		updated, err := store.Update(ctx, a.FileID, func(r *FileRecord) error {
			r.Status = StatusReady
			r.ProcessInfo = map[string]interface{}{"width": 10, "thumbnail": ProcessedKey("thumb.jpg")}
			r.ProcessedAt = &now
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, StatusReady, updated.Status)

		got, err := store.Get(ctx, a.FileID)
		require.NoError(t, err)
		assert.Equal(t, StatusReady, got.Status)
		assert.EqualValues(t, 10, got.ProcessInfo["width"])
		assert.Equal(t, ProcessedKey("thumb.jpg"), got.Thumbnail())
		require.NotNil(t, got.ProcessedAt)
		assert.True(t, now.Equal(*got.ProcessedAt))
	})

	t.Run("update error writes nothing", func(t *testing.T) {
		_, err := store.Update(ctx, b.FileID, func(r *FileRecord) error {
			r.Status = StatusError
			return fmt.Errorf("nope")
		})
		require.Error(t, err)

		got, err := store.Get(ctx, b.FileID)
		require.NoError(t, err)
		assert.Equal(t, StatusUploaded, got.Status)

		_, err = store.Update(ctx, "missing", func(r *FileRecord) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, c.FileID, func(r *FileRecord) error {
					r.FileSize++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, c.FileID)
		require.NoError(t, err)
		assert.EqualValues(t, 13, got.FileSize)
	})

	t.Run("older than", func(t *testing.T) {
		old, err := store.OlderThan(ctx, base.Add(90*time.Second))
		require.NoError(t, err)
		assert.Equal(t, []string{a.FileID, b.FileID}, ids(old))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, b.FileID))
		assert.ErrorIs(t, store.Delete(ctx, b.FileID), ErrNotFound)

		all, err := store.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{a.FileID, c.FileID}, ids(all))
	})

	require.NoError(t, store.Ping(ctx))
}

func ids(recs []*FileRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.FileID
	}
	return out
}

func TestMemoryRecordStore(t *testing.T) {
	testRecordStore(t, NewMemoryRecordStore())
}

func TestMemoryRecordStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	rec := newRecord("x", "general", "image", time.Now())
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	got.Status = StatusError

	again, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, again.Status)
}

func newDiskStore(t *testing.T) (*DiskBlobStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewDiskBlobStore(filepath.Join(root, "uploads"), filepath.Join(root, "processed"))
	require.NoError(t, err)
	return store, root
}

func TestDiskBlobStore(t *testing.T) {
	ctx := context.Background()
	store, root := newDiskStore(t)

	key := UploadKey("id_scan.png")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("abc"), 3, "image/png"))

	data, err := os.ReadFile(filepath.Join(root, "uploads", "id_scan.png"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "abc", string(got))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDiskBlobStoreRejectsBadKeys(t *testing.T) {
	store, _ := newDiskStore(t)

	for _, key := range []string{"nonamespace", "other/file", "uploads/../secret", "uploads/a/b", "uploads/", "uploads/.."} {
		_, err := store.Path(key)
		assert.Error(t, err, key)
	}
}

type failingRecords struct {
	*MemoryRecordStore
}

func (f failingRecords) Insert(ctx context.Context, rec *FileRecord) error {
	return fmt.Errorf("insert failed")
}

func TestStorageManagerStoreUploadRollsBackBlob(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newDiskStore(t)
	sm := NewStorageManager(failingRecords{NewMemoryRecordStore()}, blobs)

	rec := newRecord("r", "general", "image", time.Now())
	require.Error(t, sm.StoreUpload(ctx, rec, []byte("abc")))

	exists, err := blobs.Exists(ctx, rec.FilePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStorageManagerDeleteRemovesBlobsAndRecord(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newDiskStore(t)
	records := NewMemoryRecordStore()
	sm := NewStorageManager(records, blobs)

	rec := newRecord("r", "general", "image", time.Now())
	require.NoError(t, sm.StoreUpload(ctx, rec, []byte("abc")))

	thumb := ProcessedKey("thumb_r.jpg")
	require.NoError(t, blobs.Put(ctx, thumb, strings.NewReader("t"), 1, "image/jpeg"))
	_, err := records.Update(ctx, "r", func(r *FileRecord) error {
		r.ProcessInfo = map[string]interface{}{"thumbnail": thumb}
		return nil
	})
	require.NoError(t, err)

	deleted, err := sm.Delete(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "r", deleted.FileID)

	for _, key := range []string{rec.FilePath, thumb} {
		exists, err := blobs.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}

	_, err = sm.Delete(ctx, "r")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageManagerCleanup(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newDiskStore(t)
	sm := NewStorageManager(NewMemoryRecordStore(), blobs)

	now := time.Now()
	require.NoError(t, sm.StoreUpload(ctx, newRecord("old", "general", "image", now.Add(-48*time.Hour)), []byte("1")))
	require.NoError(t, sm.StoreUpload(ctx, newRecord("new", "general", "image", now), []byte("2")))

	n, err := sm.Cleanup(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := sm.Records().List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(remaining))
}

func TestStorageManagerSweeper(t *testing.T) {
	blobs, _ := newDiskStore(t)
	sm := NewStorageManager(NewMemoryRecordStore(), blobs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sm.StoreUpload(ctx, newRecord("old", "general", "image", time.Now().Add(-time.Hour)), []byte("1")))

	done := make(chan struct{})
	go func() {
		sm.RunSweeper(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := sm.Records().Get(context.Background(), "old")
		return err == ErrNotFound
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
