package discovery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/taskdash-api/shared/discovery"
)

func newConsul(t *testing.T, handler http.Handler) *discovery.Consul {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	consul, err := discovery.NewConsul(discovery.ConsulConfig{
		Address:     strings.TrimPrefix(srv.URL, "http://"),
		ServiceName: "auth-service",
		ServiceHost: "10.0.0.5",
		CheckPeriod: "10s",
	})
	require.NoError(t, err)

	return consul
}

func TestServiceResolver_PrefersServiceAddress(t *testing.T) {
	consul := newConsul(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health/service/face-recognition", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "passing")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"Node":{"Address":"10.0.0.1"},"Service":{"Address":"10.0.0.2","Port":5001}}]`)
	}))

	url, err := discovery.NewServiceResolver(consul, "face-recognition", "").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:5001", url)
}

func TestServiceResolver_FallsBackToNodeAddress(t *testing.T) {
	consul := newConsul(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"Node":{"Address":"10.0.0.1"},"Service":{"Address":"","Port":5001}}]`)
	}))

	url, err := discovery.NewServiceResolver(consul, "face-recognition", "https").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1:5001", url)
}

func TestServiceResolver_NoInstances(t *testing.T) {
	consul := newConsul(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))

	_, err := discovery.NewServiceResolver(consul, "face-recognition", "").Resolve(context.Background())
	require.ErrorIs(t, err, discovery.ErrNoHealthyInstances)
}

func TestConsul_RegisterAndDeregister(t *testing.T) {
	var registered map[string]any
	var deregistered string

	consul := newConsul(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/agent/service/register":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
			deregistered = strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
		default:
			http.NotFound(w, r)
		}
	}))

	deregister, err := consul.Register(":9090")
	require.NoError(t, err)

	assert.Equal(t, "auth-service", registered["Name"])
	assert.Equal(t, "10.0.0.5", registered["Address"])
	assert.EqualValues(t, 9090, registered["Port"])
	check, ok := registered["Check"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5:9090", check["GRPC"])

	require.NoError(t, deregister())
	assert.Equal(t, "auth-service-10.0.0.5-9090", deregistered)
}

func TestConsul_RegisterRejectsBadAddress(t *testing.T) {
	consul := newConsul(t, http.NotFoundHandler())

	_, err := consul.Register("no-port")
	require.Error(t, err)
}
