package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/model"
)

const testWindow = 30 * time.Millisecond

type quoteCall struct {
	ctx   context.Context
	req   actions.PriceRequest
	reply chan quoteReply
}

type quoteReply struct {
	quote model.PriceQuote
	err   error
}

// stubQuoter передаёт каждый вызов в тест и ждёт ответа.
type stubQuoter struct {
	calls chan quoteCall
}

func newStubQuoter() *stubQuoter {
	return &stubQuoter{calls: make(chan quoteCall, 8)}
}

func (s *stubQuoter) GetPlanPrice(ctx context.Context, req actions.PriceRequest) (model.PriceQuote, error) {
	c := quoteCall{ctx: ctx, req: req, reply: make(chan quoteReply, 1)}
	s.calls <- c
	r := <-c.reply
	return r.quote, r.err
}

func (s *stubQuoter) next(t *testing.T) quoteCall {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(time.Second):
		t.Fatalf("price request was not issued")
		return quoteCall{}
	}
}

func (s *stubQuoter) assertNoCall(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected price request: %+v", c.req)
	case <-time.After(wait):
	}
}

func draft(duration int) model.ActionDraft {
	return model.ActionDraft{
		CustomerID:     1,
		PlanID:         2,
		Duration:       duration,
		MealTypeIDs:    []int64{1, 2},
		DeliveryDayIDs: []int64{3},
	}
}

func quoteOf(total int64) model.PriceQuote {
	q := model.ZeroPriceQuote()
	q.TotalAmount = decimal.NewFromInt(total)
	return q
}

func waitQuote(t *testing.T, d *Debouncer, total int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		q, ok := d.Quote()
		return ok && q.TotalAmount.Equal(decimal.NewFromInt(total))
	}, time.Second, 5*time.Millisecond)
}

func TestSchedule_DebouncesBurst(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	d.Schedule(draft(10))
	time.Sleep(testWindow / 3)
	d.Schedule(draft(20))

	c := q.next(t)
	assert.Equal(t, 20, c.req.Duration)
	c.reply <- quoteReply{quote: quoteOf(200)}

	waitQuote(t, d, 200)
	q.assertNoCall(t, 3*testWindow)
}

func TestSchedule_CancelsInFlightRequest(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	d.Schedule(draft(10))
	first := q.next(t)

	d.Schedule(draft(20))

	select {
	case <-first.ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("in-flight request was not cancelled")
	}

	second := q.next(t)
	second.reply <- quoteReply{quote: quoteOf(200)}
	waitQuote(t, d, 200)

	// Ответ отменённого запроса приходит позже и не должен перезаписать расчёт.
	first.reply <- quoteReply{quote: quoteOf(100)}
	time.Sleep(2 * testWindow)

	got, ok := d.Quote()
	require.True(t, ok)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(200)), "total = %s", got.TotalAmount)
}

func TestSchedule_EmptySelectionZeroesQuote(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	d.Schedule(draft(10))
	c := q.next(t)
	c.reply <- quoteReply{quote: quoteOf(100)}
	waitQuote(t, d, 100)

	empty := draft(10)
	empty.DeliveryDayIDs = nil
	d.Schedule(empty)

	got, ok := d.Quote()
	require.True(t, ok)
	assert.True(t, got.IsZero())
	assert.False(t, d.Pending())
	q.assertNoCall(t, 3*testWindow)
}

func TestSchedule_EmptySelectionWithoutCustomer(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	d.Schedule(draft(10))
	c := q.next(t)
	c.reply <- quoteReply{quote: quoteOf(100)}
	waitQuote(t, d, 100)

	d.Schedule(model.ActionDraft{})

	got, ok := d.Quote()
	require.True(t, ok)
	assert.True(t, got.IsZero())
	assert.NoError(t, d.Err())
	q.assertNoCall(t, 3*testWindow)
}

func TestSchedule_MissingPreconditions(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	incomplete := draft(0)
	d.Schedule(incomplete)

	q.assertNoCall(t, 3*testWindow)
	_, ok := d.Quote()
	assert.False(t, ok)
}

func TestSchedule_ErrorKeepsPreviousQuote(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	var (
		mu     sync.Mutex
		errs   []error
		failed = errors.New("Get plan price failed: 500 - boom")
	)
	d.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	d.Schedule(draft(10))
	c := q.next(t)
	c.reply <- quoteReply{quote: quoteOf(100)}
	waitQuote(t, d, 100)

	d.Schedule(draft(20))
	c = q.next(t)
	c.reply <- quoteReply{err: failed}

	require.Eventually(t, func() bool { return d.Err() != nil }, time.Second, 5*time.Millisecond)

	got, _ := d.Quote()
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(100)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], failed)
}

func TestSchedule_CanceledErrorIsSilent(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)
	defer d.Close()

	called := false
	d.OnError(func(error) { called = true })

	d.Schedule(draft(10))
	c := q.next(t)
	c.reply <- quoteReply{err: context.Canceled}

	time.Sleep(2 * testWindow)
	assert.NoError(t, d.Err())
	assert.False(t, called)
}

func TestClose_StopsPendingTimer(t *testing.T) {
	q := newStubQuoter()
	d := New(context.Background(), q, testWindow, nil)

	d.Schedule(draft(10))
	d.Close()
	d.Schedule(draft(20))

	q.assertNoCall(t, 3*testWindow)
}

func TestParentContextCancelsRequest(t *testing.T) {
	q := newStubQuoter()
	ctx, cancel := context.WithCancel(context.Background())
	d := New(ctx, q, testWindow, nil)
	defer d.Close()

	d.Schedule(draft(10))
	c := q.next(t)
	cancel()

	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("request context not cancelled with parent")
	}
	c.reply <- quoteReply{quote: quoteOf(100)}

	time.Sleep(2 * testWindow)
	_, ok := d.Quote()
	assert.False(t, ok)
}
