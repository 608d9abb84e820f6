package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AzielCF/az-audit/infrastructure/directory"
	"github.com/AzielCF/az-audit/pkg/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_GetUsersCachesRemoteReads(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `{"value":[
			{"id":"u1","userPrincipalName":"a@contoso.com","accountEnabled":true,"isAdmin":true},
			{"id":"u2","userPrincipalName":"b@contoso.com","accountEnabled":false}
		]}`)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, "token", httpretry.NewClient(5*time.Second))
	svc := NewDirectoryService(client, newTestCache(newFakeCacheStore()))

	users, err := svc.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.True(t, users[0].IsAdmin)
	assert.False(t, users[1].AccountEnabled)

	// Second read is a cache hit
	_, err = svc.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDirectory_GetSubscribedSkus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[
			{"skuId":"sku-a","skuPartNumber":"ENTERPRISEPACK","consumedUnits":105,"prepaidUnits":{"enabled":100}}
		]}`)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, "token", httpretry.NewClient(5*time.Second))
	svc := NewDirectoryService(client, newTestCache(newFakeCacheStore()))

	skus, err := svc.GetSubscribedSkus(context.Background())
	require.NoError(t, err)
	require.Len(t, skus, 1)
	assert.Equal(t, "ENTERPRISEPACK", skus[0].SkuPartNumber)
	assert.Equal(t, 105, skus[0].ConsumedUnits)
	assert.Equal(t, 100, skus[0].PrepaidUnits.Enabled)
}

func TestDirectory_GetOrganizationUnwrapsSingleton(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"org-1","displayName":"Contoso","securityDefaultsEnabled":true}]}`)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, "token", httpretry.NewClient(5*time.Second))
	svc := NewDirectoryService(client, newTestCache(newFakeCacheStore()))

	org, err := svc.GetOrganization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "org-1", org.ID)
	assert.Equal(t, "Contoso", org.DisplayName)
	assert.True(t, org.SecurityDefault)
}
