package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := &Client{
		BaseURL:             server.URL,
		ExpiredPlansEnabled: true,
		HTTPClient:          server.Client(),
	}
	return client, server
}

func TestFetchSitesWrappedPayload(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sitesEndpoint, r.URL.Path)
		w.Write([]byte(`{"data":[
			{"_id":"abc","name":"Alpha","plan":"basic","created_at":"2024-01-01T00:00:00Z","user":12},
			{"siteId":"def","siteName":"Beta","plan":"Premium","createdAt":"2024-02-01"}
		]}`))
	})
	defer server.Close()

	sites, err := client.FetchSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "abc", sites[0].ID)
	assert.Equal(t, "Alpha", sites[0].Name)
	assert.Equal(t, 12, sites[0].Users)
	require.NotNil(t, sites[0].CreatedAt)

	assert.Equal(t, "def", sites[1].ID)
	assert.Equal(t, "Beta", sites[1].Name)
	assert.Equal(t, "Premium", sites[1].Plan)
	require.NotNil(t, sites[1].CreatedAt)
	assert.Equal(t, "2024-02-01", sites[1].CreatedAt.Format("2006-01-02"))
}

func TestFetchSitesBareArrayPayload(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"s1","name":"Solo","plan":"basic"}]`))
	})
	defer server.Close()

	sites, err := client.FetchSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "s1", sites[0].ID)
	assert.Nil(t, sites[0].CreatedAt)
}

func TestFetchSitesSkipsEntriesWithoutID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"name":"NoID"},{"id":"ok","name":"Good"}]}`))
	})
	defer server.Close()

	sites, err := client.FetchSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "ok", sites[0].ID)
}

func TestFetchSitesServerError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.FetchSites(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchSitesMalformedPayload(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":"not an array"`))
	})
	defer server.Close()

	_, err := client.FetchSites(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchExpiredPlansDisabled(t *testing.T) {
	called := false
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	defer server.Close()
	client.ExpiredPlansEnabled = false

	plans := client.FetchExpiredPlans(context.Background())
	assert.Nil(t, plans)
	assert.False(t, called)
}

func TestFetchExpiredPlansFailSoft(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	plans := client.FetchExpiredPlans(context.Background())
	assert.Nil(t, plans)
}

func TestFetchExpiredPlansNormalization(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, expiredPlansEndpoint, r.URL.Path)
		w.Write([]byte(`{"data":[
			{"siteId":"e1","siteName":"Expired One","plan":"premium","expiredAt":"2024-06-30"},
			{"site_id":"e2","name":"Expired Two","plan":"basic","expired_at":"not a date"}
		]}`))
	})
	defer server.Close()

	plans := client.FetchExpiredPlans(context.Background())
	require.Len(t, plans, 2)

	assert.Equal(t, "e1", plans[0].SiteID)
	assert.Equal(t, "Expired One", plans[0].SiteName)
	require.NotNil(t, plans[0].ExpiredAt)

	assert.Equal(t, "e2", plans[1].SiteID)
	assert.Nil(t, plans[1].ExpiredAt)
}

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-02T15:04:05Z", true},
		{"2024-01-02T15:04:05.123Z", true},
		{"2024-01-02 15:04:05", true},
		{"2024-01-02", true},
		{"", false},
		{"yesterday", false},
		{"02/01/2024", false},
	}
	for _, c := range cases {
		got := parseDate(c.in)
		if c.ok && got == nil {
			t.Fatalf("parseDate(%q) = nil, want a value", c.in)
		}
		if !c.ok && got != nil {
			t.Fatalf("parseDate(%q) = %v, want nil", c.in, got)
		}
	}
}
