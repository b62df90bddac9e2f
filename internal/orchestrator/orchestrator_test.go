package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/broadcast"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
)

func testPartner(id string) partner.Partner {
	return partner.Partner{ID: id, Name: id, Enabled: true}
}

type fakeCache struct {
	partners []partner.Partner
}

func (f fakeCache) ActivePartners() []partner.Partner { return f.partners }

// fakeClient dispatches per-partner responses (or a function) supplied by
// the test, simulating the set of outcomes a real httpclient.Client call
// can produce without any network I/O.
type fakeClient struct {
	respond func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse
}

func (f fakeClient) Send(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
	return f.respond(ctx, p, uid)
}

func newTestOrchestrator(t *testing.T, cache Cache, client Client, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(cache, client, append([]Option{WithDeadline(2 * time.Second)}, opts...)...)
	t.Cleanup(o.Close)
	return o
}

func TestOrchestrator_NoActivePartners(t *testing.T) {
	o := newTestOrchestrator(t, fakeCache{}, fakeClient{})

	report := o.Broadcast(context.Background(), "uid-1")

	assert.False(t, report.Success)
	assert.Equal(t, "No active partners available", report.Message)
	assert.Empty(t, report.PartnerResponses)
}

func TestOrchestrator_FirstSuccessWins(t *testing.T) {
	partners := []partner.Partner{testPartner("a"), testPartner("b"), testPartner("c")}
	cache := fakeCache{partners: partners}

	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		if p.ID == "b" {
			return broadcast.PartnerResponse{PartnerID: p.ID, Success: true, Status: "ACCEPTED"}
		}
		// Slow losers: block until the winner cancels the shared deadline
		// context, then report as cancelled so the drain loop isn't stuck
		// waiting on them.
		<-ctx.Done()
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: false, Status: broadcast.StatusError}
	}}

	o := newTestOrchestrator(t, cache, client)
	report := o.Broadcast(context.Background(), "uid-1")

	require.True(t, report.Success)
	require.NotNil(t, report.RespondingPartner)
	assert.Equal(t, "b", *report.RespondingPartner)
	assert.Contains(t, report.Message, "b")
}

func TestOrchestrator_AllPartnersFail(t *testing.T) {
	partners := []partner.Partner{testPartner("a"), testPartner("b")}
	cache := fakeCache{partners: partners}

	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: false, Status: broadcast.StatusError}
	}}

	o := newTestOrchestrator(t, cache, client)
	report := o.Broadcast(context.Background(), "uid-1")

	assert.False(t, report.Success)
	assert.Nil(t, report.RespondingPartner)
	assert.Len(t, report.PartnerResponses, len(partners))
	assert.Contains(t, report.Message, "2 partners responded")
}

func TestOrchestrator_DeadlineExceededWithNoSuccess(t *testing.T) {
	partners := []partner.Partner{testPartner("slow")}
	cache := fakeCache{partners: partners}

	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		<-ctx.Done()
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: true}
	}}

	o := newTestOrchestrator(t, cache, client, WithDeadline(50*time.Millisecond))
	start := time.Now()
	report := o.Broadcast(context.Background(), "uid-1")
	elapsed := time.Since(start)

	assert.False(t, report.Success, "a response arriving only after the deadline fires must not count")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestOrchestrator_PanicInClientIsRecovered(t *testing.T) {
	partners := []partner.Partner{testPartner("panicky"), testPartner("fine")}
	cache := fakeCache{partners: partners}

	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		if p.ID == "panicky" {
			panic("boom")
		}
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: true, Status: "ACCEPTED"}
	}}

	o := newTestOrchestrator(t, cache, client)

	assert.NotPanics(t, func() {
		report := o.Broadcast(context.Background(), "uid-1")
		assert.True(t, report.Success, "the panicking partner must not prevent the other partner's success")
	})
}

func TestOrchestrator_UIDPassedThrough(t *testing.T) {
	partners := []partner.Partner{testPartner("a")}
	cache := fakeCache{partners: partners}

	var gotUID atomic.Value
	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		gotUID.Store(uid)
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: true}
	}}

	o := newTestOrchestrator(t, cache, client)
	o.Broadcast(context.Background(), "vehicle-123")

	assert.Equal(t, "vehicle-123", gotUID.Load())
}

func TestOrchestrator_WithPoolSizeOption(t *testing.T) {
	partners := make([]partner.Partner, 5)
	for i := range partners {
		partners[i] = testPartner(string(rune('a' + i)))
	}
	cache := fakeCache{partners: partners}

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	client := fakeClient{respond: func(ctx context.Context, p partner.Partner, uid string) broadcast.PartnerResponse {
		n := concurrent.Add(1)
		defer concurrent.Add(-1)
		for {
			m := maxConcurrent.Load()
			if n <= m || maxConcurrent.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return broadcast.PartnerResponse{PartnerID: p.ID, Success: false, Status: broadcast.StatusError}
	}}

	o := newTestOrchestrator(t, cache, client, WithPoolSize(2))
	o.Broadcast(context.Background(), "uid-1")

	assert.LessOrEqual(t, maxConcurrent.Load(), int32(2), "pool size option should bound concurrent partner calls")
}
