package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteenadvisor"
)

type flakyCompleter struct {
	err   error
	calls int
}

func (f *flakyCompleter) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}

func TestBreakerCompleter(t *testing.T) {
	backend := &flakyCompleter{err: errors.New("503")}
	b := NewBreakerCompleter("test", backend, canteenadvisor.BreakerConfig{FailureThreshold: 2, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Complete(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// open breaker fails fast without reaching the backend
	_, err := b.Complete(ctx, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, backend.calls)
}

func TestBreakerCompleter_PassesThrough(t *testing.T) {
	backend := &flakyCompleter{}
	b := NewBreakerCompleter("test", backend, canteenadvisor.BreakerConfig{})

	out, err := b.Complete(context.Background(), []canteenadvisor.Message{{Role: canteenadvisor.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerCompleter_CancellationDoesNotTrip(t *testing.T) {
	backend := &flakyCompleter{err: context.Canceled}
	b := NewBreakerCompleter("test", backend, canteenadvisor.BreakerConfig{FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), nil)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
