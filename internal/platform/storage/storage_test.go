package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGet(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "proposals/AB-0001/2026.pdf", "application/pdf", []byte("%PDF")))

	data, err := store.Get(ctx, "proposals/AB-0001/2026.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	_, err = store.Get(ctx, "proposals/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../../escape.txt", "text/plain", []byte("x")))
	data, err := store.Get(context.Background(), "escape.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestSupabasePutGet(t *testing.T) {
	var mu sync.Mutex
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "svc" || r.Header.Get("Authorization") != "Bearer svc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"not_found","message":"Object not found"}`))
				return
			}
			_, _ = w.Write(body)
		}
	}))
	defer srv.Close()

	store, err := NewSupabase(srv.URL+"/", "svc", "propostas", srv.Client())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "proposals/X.pdf", "application/pdf", []byte("pdf")))
	_, ok := objects["/storage/v1/object/propostas/proposals/X.pdf"]
	assert.True(t, ok)

	data, err := store.Get(ctx, "proposals/X.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), data)

	_, err = store.Get(ctx, "proposals/Y.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(Options{Driver: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = New(Options{Driver: "s3"})
	assert.Error(t, err)

	_, err = New(Options{Driver: "supabase", SupabaseURL: "ftp://x", ServiceKey: "k", Bucket: "b"})
	assert.Error(t, err)
}
