package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/position", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude": 6.683, "longitude": -1.55}`))
	}))
	defer srv.Close()

	c := New(srv.URL, false, time.Second)
	pos, err := c.Current(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, &Position{Latitude: 6.683, Longitude: -1.55}, pos)
}

func TestCurrentSkip(t *testing.T) {
	c := New("http://unused", true, time.Second)
	pos, err := c.Current(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, pos)
}

func TestCurrentBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, false, time.Second)
	_, err := c.Current(context.Background())
	assert.Error(t, err)
}

func TestCurrentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL, false, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Current(ctx)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, false, time.Second)
	assert.NoError(t, c.Health(context.Background()))

	c.Skip = true
	c.BaseURL = "http://unreachable.invalid"
	assert.NoError(t, c.Health(context.Background()))
}
