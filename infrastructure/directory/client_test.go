package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/AzielCF/az-audit/pkg/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	retry := httpretry.NewClient(5*time.Second, httpretry.WithMaxRetries(0))
	return NewClient(baseURL, "test-token", retry)
}

func TestClient_GetSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"id":"org-1"}`)
	}))
	defer server.Close()

	body, err := newTestClient(server.URL).Get(context.Background(), "/organization", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"org-1"}`, string(body))
}

func TestClient_GetListFollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RawQuery {
		case "page=2":
			fmt.Fprint(w, `{"value":[{"id":"u3"}]}`)
		default:
			fmt.Fprintf(w, `{"value":[{"id":"u1"},{"id":"u2"}],"@odata.nextLink":%q}`, server.URL+"/users?page=2")
		}
	}))
	defer server.Close()

	items, err := newTestClient(server.URL).GetList(context.Background(), "/users", nil)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.JSONEq(t, `{"id":"u3"}`, string(items[2]))
}

func TestClient_GetListPassesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("$top"))
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer server.Close()

	query := url.Values{}
	query.Set("$top", "100")

	items, err := newTestClient(server.URL).GetList(context.Background(), "/users", query)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"not found"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Get(context.Background(), "/missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_BadJSONPageIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetList(context.Background(), "/users", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
