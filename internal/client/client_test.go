package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
)

// loadedObject builds a raw-mode object over a fresh payload and loads it.
func loadedObject(t *testing.T, content []byte) *object.Object {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	obj, err := object.New(option.DefaultRegistry(), path, "raw",
		option.Values{option.Target: "/dev/sda"}, 4)
	require.NoError(t, err)
	require.NoError(t, obj.Load(context.Background(), progress.Nop{}))

	return obj
}

// TestRequestSigning checks every API request carries the authorization
// and signed headers.
func TestRequestSigning(t *testing.T) {
	t.Parallel()

	var captured http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"uid":"deadbeef"}`))
	}))
	defer server.Close()

	c := New(server.URL, "ACCESS", "SECRET")

	uid, err := c.UploadMetadata(context.Background(), map[string]any{"product": "p"})
	require.NoError(t, err)
	require.Equal(t, "deadbeef", uid)

	require.Contains(t, captured.Get("Authorization"), "EFOTA-V1 Credential=ACCESS, ")
	require.Contains(t, captured.Get("Authorization"), "SignedHeaders=content-type;host;timestamp;x-request-id, ")
	require.NotEmpty(t, captured.Get("Timestamp"))
	require.NotEmpty(t, captured.Get("X-Request-Id"))
	require.Equal(t, "application/json", captured.Get("Content-Type"))
}

// TestUploadMetadataError surfaces the server's error list on rejection.
func TestUploadMetadataError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":["missing product"]}`))
	}))
	defer server.Close()

	c := New(server.URL, "ACCESS", "SECRET")

	_, err := c.UploadMetadata(context.Background(), map[string]any{})

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.Equal(t, http.StatusBadRequest, uploadErr.Status)
	require.Equal(t, []string{"missing product"}, uploadErr.Details)
}

// TestServerUnreachable distinguishes connection failures from error
// responses.
func TestServerUnreachable(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1", "ACCESS", "SECRET")

	_, err := c.UploadMetadata(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrServerUnreachable)
}

// TestUploadObjectExists treats a 200 negotiation response as a no-op.
func TestUploadObjectExists(t *testing.T) {
	t.Parallel()

	var negotiated bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		negotiated = true

		var fingerprint map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fingerprint))
		require.Contains(t, fingerprint, "sha256sum")
		require.Contains(t, fingerprint, "md5")
		require.Contains(t, fingerprint, "chunks")

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	obj := loadedObject(t, []byte("abcdefgh"))
	c := New(server.URL, "ACCESS", "SECRET")

	result, err := c.UploadObject(context.Background(), "uid1", obj, nil)
	require.NoError(t, err)
	require.Equal(t, UploadExists, result)
	require.True(t, negotiated)
}

// TestUploadObjectStreams follows the 201 instructions and streams the
// payload to the storage URL.
func TestUploadObjectStreams(t *testing.T) {
	t.Parallel()

	content := []byte("abcdefgh")
	var stored []byte

	mux := http.NewServeMux()

	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/packages/uid1/objects/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"storage":"s3","url":"` + server.URL + `/storage/one-time"}`))
	})
	mux.HandleFunc("/storage/one-time", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Empty(t, r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		stored = body

		w.WriteHeader(http.StatusOK)
	})

	obj := loadedObject(t, content)
	c := New(server.URL, "ACCESS", "SECRET")

	result, err := c.UploadObject(context.Background(), "uid1", obj, nil)
	require.NoError(t, err)
	require.Equal(t, UploadSuccess, result)
	require.Equal(t, content, stored)
}

// TestUploadObjectDummyStorage accepts the dummy backend without any
// transfer.
func TestUploadObjectDummyStorage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"storage":"dummy","url":""}`))
	}))
	defer server.Close()

	obj := loadedObject(t, []byte("abcdefgh"))
	c := New(server.URL, "ACCESS", "SECRET")

	result, err := c.UploadObject(context.Background(), "uid1", obj, nil)
	require.NoError(t, err)
	require.Equal(t, UploadSuccess, result)
}

// TestUploadObjectStorageFailure reports a failed transfer as a result,
// not a hard error, so the remaining objects still get their chance.
func TestUploadObjectStorageFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/packages/uid1/objects/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"storage":"s3","url":"` + server.URL + `/storage/one-time"}`))
	})
	mux.HandleFunc("/storage/one-time", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	obj := loadedObject(t, []byte("abcdefgh"))
	c := New(server.URL, "ACCESS", "SECRET")

	result, err := c.UploadObject(context.Background(), "uid1", obj, nil)
	require.NoError(t, err)
	require.Equal(t, UploadFailed, result)
}

// TestFinishPush accepts only 204.
func TestFinishPush(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/packages/uid1/finish", r.URL.Path)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "ACCESS", "SECRET")
	require.NoError(t, c.FinishPush(context.Background(), "uid1"))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer failing.Close()

	c = New(failing.URL, "ACCESS", "SECRET")

	var uploadErr *UploadError
	require.ErrorAs(t, c.FinishPush(context.Background(), "uid1"), &uploadErr)
	require.Equal(t, http.StatusConflict, uploadErr.Status)
}

// TestDownloadMetadata decodes the package document.
func TestDownloadMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/packages/uid1", r.URL.Path)

		_, _ = w.Write([]byte(`{"product":"p","version":"2.0"}`))
	}))
	defer server.Close()

	c := New(server.URL, "ACCESS", "SECRET")

	metadata, err := c.DownloadMetadata(context.Background(), "uid1")
	require.NoError(t, err)
	require.Equal(t, "p", metadata["product"])
	require.Equal(t, "2.0", metadata["version"])
}

// TestDownloadObject writes the payload to the object's filename.
func TestDownloadObject(t *testing.T) {
	t.Parallel()

	content := []byte("downloaded payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "payload.bin")

	obj, err := object.New(option.DefaultRegistry(), path, "raw",
		option.Values{option.Target: "/dev/sda"}, 0)
	require.NoError(t, err)

	c := New(server.URL, "ACCESS", "SECRET")
	require.NoError(t, c.DownloadObject(context.Background(), "uid1", obj))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

// TestGetStatus decodes the lifecycle state.
func TestGetStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/packages/uid1/status", r.URL.Path)

		_, _ = w.Write([]byte(`{"status":"done"}`))
	}))
	defer server.Close()

	c := New(server.URL, "ACCESS", "SECRET")

	state, err := c.GetStatus(context.Background(), "uid1")
	require.NoError(t, err)
	require.Equal(t, "done", state)
}
