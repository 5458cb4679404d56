package rpc

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
)

// testConfig is a plaintext configuration with fast retry tunables so the
// backoff paths finish within test time.
func testConfig() *Config {
	return &Config{
		TLS:        false,
		SystemName: "testconsumer",
		Address:    "localhost",
		Port:       9999,

		RequestTimeout:   2 * time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		OrchestrationTTL: 30 * time.Second,
		TokenSkew:        time.Second,
	}
}

func hostPort(t *testing.T, rawurl string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawurl)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func matchedCandidate(address string, port int, uri, secure string, metadata map[string]string) core.MatchedService {
	return core.MatchedService{
		Provider: core.System{
			ID:         1,
			SystemName: "testprovider",
			Address:    address,
			Port:       port,
		},
		Service:    core.ServiceDefinition{ID: 1, ServiceDefinition: "test-service"},
		ServiceURI: uri,
		Secure:     secure,
		Metadata:   metadata,
		Version:    1,
	}
}
