package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(append([]byte(r.URL.Path+":"), body...))
	}))
	defer srv.Close()

	client := NewHTTPClient()
	headers := http.Header{"Authorization": []string{"Basic abc"}}

	code, body, respHeaders, err := client.Get(context.Background(), srv.URL+"/v1/orders/1", headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "/v1/orders/1:", string(body))
	assert.Equal(t, http.MethodGet, respHeaders.Get("X-Method"))
	assert.Equal(t, "Basic abc", respHeaders.Get("X-Auth"))

	code, body, respHeaders, err = client.Post(context.Background(), srv.URL+"/v1/orders", headers, []byte(`{"amount":100}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, `/v1/orders:{"amount":100}`, string(body))
	assert.Equal(t, http.MethodPost, respHeaders.Get("X-Method"))
}

func TestHTTPClient_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := NewHTTPClient().Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
