package awssm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sm "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	secrets map[string]string

	getErr error
	putErr error

	created []string
	puts    []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{secrets: make(map[string]string)}
}

func (f *fakeClient) GetSecretValue(ctx context.Context, params *sm.GetSecretValueInput, optFns ...func(*sm.Options)) (*sm.GetSecretValueOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	return &sm.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func (f *fakeClient) PutSecretValue(ctx context.Context, params *sm.PutSecretValueInput, optFns ...func(*sm.Options)) (*sm.PutSecretValueOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	name := aws.ToString(params.SecretId)
	if _, ok := f.secrets[name]; !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	f.puts = append(f.puts, name)
	f.secrets[name] = aws.ToString(params.SecretString)
	return &sm.PutSecretValueOutput{}, nil
}

func (f *fakeClient) CreateSecret(ctx context.Context, params *sm.CreateSecretInput, optFns ...func(*sm.Options)) (*sm.CreateSecretOutput, error) {
	name := aws.ToString(params.Name)
	f.created = append(f.created, name)
	f.secrets[name] = aws.ToString(params.SecretString)
	return &sm.CreateSecretOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestStore(t *testing.T, client Client) *Store {
	t.Helper()
	store, err := New(context.Background(), Config{}, testLogger(), WithClient(client))
	require.NoError(t, err)
	return store
}

func TestNewWithoutRegionOrClient(t *testing.T) {
	_, err := New(context.Background(), Config{}, testLogger())
	assert.Error(t, err)
}

func TestGetMissingSecretIsAbsence(t *testing.T) {
	store := newTestStore(t, newFakeClient())

	value, ok, err := store.Get(context.Background(), "acme-dir-acct-json")
	require.NoError(t, err, "a missing secret is a normal state, not a failure")
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestGetPresent(t *testing.T) {
	client := newFakeClient()
	client.secrets["acme-dir-acct-json"] = `{"id":"x"}`
	store := newTestStore(t, client)

	value, ok, err := store.Get(context.Background(), "acme-dir-acct-json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"x"}`, value)
}

func TestGetFailure(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("throttled")
	store := newTestStore(t, client)

	_, _, err := store.Get(context.Background(), "acme-dir-acct-json")
	assert.Error(t, err)
}

func TestPutCreatesOnFirstUse(t *testing.T) {
	client := newFakeClient()
	store := newTestStore(t, client)

	require.NoError(t, store.Put(context.Background(), "acme-dir-acct-json", `{"id":"x"}`))
	assert.Equal(t, []string{"acme-dir-acct-json"}, client.created)
	assert.Empty(t, client.puts)
	assert.Equal(t, `{"id":"x"}`, client.secrets["acme-dir-acct-json"])
}

func TestPutVersionsExistingSecret(t *testing.T) {
	client := newFakeClient()
	client.secrets["acme-dir-acct-json"] = "old"
	store := newTestStore(t, client)

	require.NoError(t, store.Put(context.Background(), "acme-dir-acct-json", "new"))
	assert.Equal(t, []string{"acme-dir-acct-json"}, client.puts)
	assert.Empty(t, client.created)
	assert.Equal(t, "new", client.secrets["acme-dir-acct-json"])
}

func TestPutFailure(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("access denied")
	store := newTestStore(t, client)

	err := store.Put(context.Background(), "acme-dir-acct-json", "x")
	assert.Error(t, err)
	assert.Empty(t, client.created)
}
