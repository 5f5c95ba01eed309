package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/doctranslate/internal/files"
	"github.com/adverant/nexus/doctranslate/internal/logging"
	"github.com/adverant/nexus/doctranslate/internal/preprocess"
	"github.com/adverant/nexus/doctranslate/internal/queue"
	"github.com/adverant/nexus/doctranslate/internal/storage"
)

func newFileServer(t *testing.T, maxSize int64) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	processedDir := filepath.Join(root, "processed")

	blobs, err := storage.NewDiskBlobStore(uploadDir, processedDir)
	require.NoError(t, err)
	sm := storage.NewStorageManager(storage.NewMemoryRecordStore(), blobs)

	dispatcher := queue.NewInlineDispatcher(5 * time.Second)
	svc := files.NewService(sm, preprocess.NewPreprocessor(nil, 2048), dispatcher, files.Config{MaxFileSize: maxSize})
	require.NoError(t, dispatcher.Start(svc.Preprocess))

	handler := NewFilesHandler(svc, FilesConfig{
		Version:      "test",
		UploadDir:    uploadDir,
		ProcessedDir: processedDir,
		RecordStore:  "memory",
		BlobStore:    "disk",
	})
	srv := httptest.NewServer(NewRouter(logging.NewNopLogger(), handler))
	t.Cleanup(func() {
		srv.Close()
		_ = dispatcher.Stop(context.Background())
	})
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func uploadFile(t *testing.T, srv *httptest.Server, query, filename string, data []byte) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, data)
	resp, err := http.Post(srv.URL+"/upload"+query, contentType, body)
	require.NoError(t, err)
	return resp
}

func TestFileLifecycle(t *testing.T) {
	srv := newFileServer(t, 1<<20)

	resp := uploadFile(t, srv, "?category=scans", "scan.png", testPNG(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	up := decodeBody(t, resp)
	assert.Equal(t, true, up["success"])
	assert.Equal(t, "scan.png", up["filename"])
	assert.Equal(t, "image", up["file_type"])
	fileID := up["file_id"].(string)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/file/" + fileID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var info map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return false
		}
		return info["status"] == "ready"
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(srv.URL + "/file/" + fileID)
	require.NoError(t, err)
	info := decodeBody(t, resp)
	assert.Equal(t, "scans", info["category"])
	processInfo := info["process_info"].(map[string]interface{})
	assert.EqualValues(t, 400, processInfo["width"])
	assert.EqualValues(t, 300, processInfo["height"])

	dl, err := http.Get(srv.URL + "/download/" + fileID)
	require.NoError(t, err)
	data, err := io.ReadAll(dl.Body)
	dl.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "image/png", dl.Header.Get("Content-Type"))
	assert.Contains(t, dl.Header.Get("Content-Disposition"), `filename=scan.png`)
	assert.Equal(t, testPNG(t), data)

	list, err := http.Get(srv.URL + "/files?category=scans")
	require.NoError(t, err)
	listed := decodeBody(t, list)
	assert.EqualValues(t, 1, listed["total"])

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/file/"+fileID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, true, decodeBody(t, del)["success"])

	gone, err := http.Get(srv.URL + "/file/" + fileID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, gone)["error"])
}

func TestUploadRejections(t *testing.T) {
	srv := newFileServer(t, 100)

	resp := uploadFile(t, srv, "", "tool.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeBody(t, resp)["error"])

	resp = uploadFile(t, srv, "", "big.txt", make([]byte, 200))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "FILE_TOO_LARGE", decodeBody(t, resp)["error"])

	body, contentType := multipartBody(t, "other", "a.txt", []byte("x"))
	missing, err := http.Post(srv.URL+"/upload", contentType, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
	missing.Body.Close()
}

func TestListAndCleanupParams(t *testing.T) {
	srv := newFileServer(t, 1<<20)

	bad, err := http.Get(srv.URL + "/files?limit=zero")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	bad.Body.Close()

	resp := uploadFile(t, srv, "", "a.txt", []byte("hello"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cleanup, err := http.Post(srv.URL+"/cleanup?older_than_hours=0", "", nil)
	require.NoError(t, err)
	out := decodeBody(t, cleanup)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 1, out["deleted_count"])

	badCleanup, err := http.Post(srv.URL+"/cleanup?older_than_hours=soon", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, badCleanup.StatusCode)
	badCleanup.Body.Close()
}

func TestFileServiceHealth(t *testing.T) {
	srv := newFileServer(t, 1<<20)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "file-service", out["service"])
	storageInfo := out["storage"].(map[string]interface{})
	assert.Equal(t, "memory", storageInfo["record_store"])
}
