package acme

import (
	"context"
	"testing"
	"time"

	"github.com/caasmo/restinpieces/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenewalHandler(t *testing.T) {
	cfg := validConfig()
	store := newMemStore()
	stub := &stubLego{
		uri:     "https://ca.test/acct/1",
		certPEM: testCertPEM(t, "example.com", time.Now().Add(90*24*time.Hour)),
		keyPEM:  []byte("key-data"),
	}
	runner := newTestRunner(t, &cfg, store, stub)
	handler := NewRenewalHandler(runner, testLogger())

	require.NoError(t, handler.Handle(context.Background(), db.Job{ID: 7, JobType: "certificate_renewal"}))
	assert.Equal(t, 1, stub.obtainCalls)
	assert.NotEmpty(t, store.puts)
}

func TestRenewalHandlerPropagatesFailure(t *testing.T) {
	cfg := validConfig()
	cfg.Domains = " , "
	runner := newTestRunner(t, &cfg, newMemStore(), &stubLego{})
	handler := NewRenewalHandler(runner, testLogger())

	err := handler.Handle(context.Background(), db.Job{ID: 8})
	assert.Error(t, err)
}
