package execution

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"council/internal/gateway/broker"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("insufficient buying power"), false},
		{errors.New("Insufficient funds for order"), false},
		{errors.New("invalid symbol: ZZZZ"), false},
		{errors.New("asset XYZ is not tradable"), false},
		{errors.New("account suspended"), false},
		{errors.New("forbidden"), false},
		{&broker.APIError{StatusCode: 401, Message: "request is not authorized"}, false},
		{&broker.APIError{StatusCode: 403, Message: "nope"}, false},
		{errors.New("request timeout"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("rate limit exceeded"), true},
		{&broker.APIError{StatusCode: 429, Message: "slow down"}, true},
		{&broker.APIError{StatusCode: 503, Message: "maintenance"}, true},
		{errors.New("temporary failure in name resolution"), true},
		{errors.New("service unavailable, try again"), true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{&net.OpError{Op: "dial", Err: timeoutErr{}}, true},
		{errors.New("something odd happened"), false},
		{&broker.APIError{StatusCode: 422, Message: "qty must be positive"}, false},
		// numbers in addresses or quantities never decide the class
		{errors.New("read tcp 10.0.0.5:54013->52.1.1.1:443: connection reset by peer"), true},
		{errors.New("dial tcp 10.4.0.3:8403: i/o timeout"), true},
		{&broker.APIError{StatusCode: 422, Message: "qty 5000 exceeds max position"}, false},
		{&broker.APIError{StatusCode: 400, Message: "rate limit on order size, try again"}, false},
		{errors.New("order 500123 rejected"), false},
		// terminal wins when both kinds of pattern appear
		{errors.New("503 upstream: insufficient buying power"), false},
		{&panicError{value: "timeout"}, false},
		{nil, false},
	}
	for _, tc := range cases {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		assert.Equal(t, tc.want, IsRetryable(tc.err), name)
	}
}
