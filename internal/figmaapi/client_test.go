package figmaapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileSendsAuthAndCacheBusting(t *testing.T) {
	var gotAuth, gotCacheControl, gotPragma string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCacheControl = r.Header.Get("Cache-Control")
		gotPragma = r.Header.Get("Pragma")
		_, _ = w.Write([]byte(`{"name":"Landing","document":{"id":"0:0","name":"Document","type":"DOCUMENT"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	file, err := c.File(context.Background(), "tok_123", "ABC123")
	assert.Nil(t, err)
	assert.Equal(t, "Landing", file.Name)
	assert.Equal(t, "Bearer tok_123", gotAuth)
	assert.Equal(t, "no-cache, no-store, must-revalidate", gotCacheControl)
	assert.Equal(t, "no-cache", gotPragma)
}

func TestErrFieldOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"err":"file not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.File(context.Background(), "tok", "MISSING")
	assert.EqualError(t, err, "figma: file not found")
}

func TestNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.File(context.Background(), "expired", "ABC123")
	assert.EqualError(t, err, "figma: HTTP 403: Forbidden")
}

func TestRenderImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "119:1968", r.URL.Query().Get("ids"))
		assert.Equal(t, "png", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"err":null,"images":{"119:1968":"https://figma-render.example/abc.png"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	url, err := c.RenderImage(context.Background(), "tok", "ABC123", "119:1968")
	assert.Nil(t, err)
	assert.Equal(t, "https://figma-render.example/abc.png", url)
}

func TestRenderImageMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"err":null,"images":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.RenderImage(context.Background(), "tok", "ABC123", "119:1968")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "no image URL")
}
