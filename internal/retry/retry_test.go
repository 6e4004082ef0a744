package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/PabloGalante/keepsake/internal/retry"
)

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func TestDo_NonRateLimitErrorIsNotRetried(t *testing.T) {
	timer := newFakeTimer()
	boom := errors.New("500 internal error")
	calls := 0

	err := retry.Do(context.Background(), retry.Policy{MaxRetries: 5, InitialDelay: time.Second}, func(context.Context) error {
		calls++
		return boom
	}, retry.WithTimer(timer))

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.delays)
}

func TestDo_RateLimitExhaustsBudget(t *testing.T) {
	for _, budget := range []int{0, 1, 3, 5} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			timer := newFakeTimer()
			rateLimited := errors.New("Error 429, Status: RESOURCE_EXHAUSTED")
			calls := 0

			err := retry.Do(context.Background(), retry.Policy{MaxRetries: budget, InitialDelay: 100 * time.Millisecond}, func(context.Context) error {
				calls++
				return rateLimited
			}, retry.WithTimer(timer))

			require.Equal(t, rateLimited, err, "last error must come back unchanged")
			assert.Equal(t, budget+1, calls)

			var want []time.Duration
			d := 100 * time.Millisecond
			for i := 0; i < budget; i++ {
				want = append(want, d)
				d *= 2
			}
			assert.Equal(t, want, timer.delays)
		})
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	timer := newFakeTimer()
	calls := 0

	got, err := retry.DoValue(context.Background(), retry.Policy{MaxRetries: 3, InitialDelay: time.Second}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("quota exhausted")
		}
		return "letter", nil
	}, retry.WithTimer(timer))

	require.NoError(t, err)
	assert.Equal(t, "letter", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
}

func TestDo_NotifySeesEveryRetry(t *testing.T) {
	var seen []time.Duration
	_ = retry.Do(context.Background(), retry.Policy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond}, func(context.Context) error {
		return errors.New("429")
	}, retry.WithTimer(newFakeTimer()), retry.WithNotify(func(_ error, d time.Duration) {
		seen = append(seen, d)
	}))

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, seen)
}

func TestDo_CustomPredicate(t *testing.T) {
	transient := errors.New("transient")
	calls := 0

	err := retry.Do(context.Background(), retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return errors.Is(err, transient) },
	}, func(context.Context) error {
		calls++
		return transient
	}, retry.WithTimer(newFakeTimer()))

	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retry.Do(ctx, retry.Policy{MaxRetries: 10, InitialDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("429")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Message: slow down"), true},
		{errors.New("RESOURCE_EXHAUSTED"), true},
		{errors.New("quota Exhausted for today"), true},
		{fmt.Errorf("letter: %w", errors.New("status 429")), true},
		{fmt.Errorf("gemini letter: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}), true},
		{errors.New("500 internal"), false},
		{errors.New("permission denied"), false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retry.IsRateLimited(tc.err), "%v", tc.err)
	}
}
