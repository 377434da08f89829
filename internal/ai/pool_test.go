package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Complete(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestPoolRoundRobinRotation(t *testing.T) {
	a := &fakeProvider{name: "a", reply: "ra"}
	b := &fakeProvider{name: "b", reply: "rb"}
	pool := NewPool(zerolog.Nop(), a, b)

	ans, err := pool.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "a", ans.Provider)

	ans, err = pool.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "b", ans.Provider)

	ans, err = pool.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "a", ans.Provider)
}

func TestPoolFailover(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("rate limited")}
	b := &fakeProvider{name: "b", reply: "respuesta"}
	pool := NewPool(zerolog.Nop(), a, b)

	ans, err := pool.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "b", ans.Provider)
	assert.Equal(t, "respuesta", ans.Text)
	assert.Equal(t, 1, a.calls)
}

func TestPoolAllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b", err: errors.New("also down")}
	pool := NewPool(zerolog.Nop(), a, b)

	_, err := pool.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPoolEmpty(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	_, err := pool.Complete(context.Background(), "p")
	assert.Error(t, err)
}
