package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
	id string
}

func (m *mockProvider) ID() string    { return m.id }
func (m *mockProvider) Enabled() bool { return true }
func (m *mockProvider) Call(ctx context.Context, msgs []Message) (string, error) {
	args := m.Called(ctx, msgs)
	return args.String(0), args.Error(1)
}

func TestPoolQuerySuccess(t *testing.T) {
	mp := &mockProvider{id: "alpha"}
	mp.On("Call", mock.Anything, mock.Anything).Return("answer", nil).Once()
	pool := NewPool([]ModelProvider{mp})

	resp, err := pool.Query(context.Background(), "alpha", []Message{UserMessage("q")})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "alpha", resp.ModelID)
	assert.Equal(t, "answer", resp.Content)
	mp.AssertExpectations(t)
}

func TestPoolQueryAbsorbsFailures(t *testing.T) {
	mp := &mockProvider{id: "alpha"}
	mp.On("Call", mock.Anything, mock.Anything).Return("", &StatusError{StatusCode: 503, Message: "down"})
	pool := NewPool([]ModelProvider{mp})

	resp, err := pool.Query(context.Background(), "alpha", []Message{UserMessage("q")})
	assert.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = pool.Query(context.Background(), "missing", []Message{UserMessage("q")})
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestPoolQueryRejectsEmptyMessages(t *testing.T) {
	pool := NewPool(nil)
	_, err := pool.Query(context.Background(), "alpha", nil)
	assert.Error(t, err)
}

func TestPoolAppliesTimeout(t *testing.T) {
	mp := &mockProvider{id: "slow"}
	mp.On("Call", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Return("", context.DeadlineExceeded)
	pool := NewPool([]ModelProvider{mp}, WithTimeout(50*time.Millisecond))

	resp, err := pool.Query(context.Background(), "slow", []Message{UserMessage("q")})
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestPoolBreakerShortCircuits(t *testing.T) {
	mp := &mockProvider{id: "flaky"}
	mp.On("Call", mock.Anything, mock.Anything).Return("", errors.New("boom")).Twice()
	pool := NewPool([]ModelProvider{mp}, WithBreakers(2, time.Hour))

	for i := 0; i < 4; i++ {
		resp, err := pool.Query(context.Background(), "flaky", []Message{UserMessage("q")})
		assert.NoError(t, err)
		assert.Nil(t, resp)
	}
	mp.AssertNumberOfCalls(t, "Call", 2)
}
