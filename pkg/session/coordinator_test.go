package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxdesk/rfstrader/pkg/dates"
	"github.com/fxdesk/rfstrader/pkg/events"
	"github.com/fxdesk/rfstrader/pkg/execution"
	"github.com/fxdesk/rfstrader/pkg/fix"
	"github.com/fxdesk/rfstrader/pkg/models"
	"github.com/fxdesk/rfstrader/pkg/quotes"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	failNext bool
}

func (f *fakeTransport) Send(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("write: broken pipe")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type harness struct {
	coord    *Coordinator
	trans    *fakeTransport
	registry *quotes.Registry
	ledger   *execution.Ledger
	bus      *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	trans := &fakeTransport{}
	registry := quotes.NewRegistry()
	ledger := execution.NewLedger()
	bus := events.NewBus()
	coord := NewCoordinator(Options{
		BeginString:     "FIX.4.4",
		SenderCompID:    "DESK1",
		TargetCompID:    "FENICS",
		Username:        "user",
		Password:        "pass",
		HeartbeatSecs:   10,
		RequestIDPrefix: "FENICS.DESK1.",
		Policy:          dates.DefaultPolicy(),
	}, trans, registry, ledger, bus)
	coord.SetClock(func() time.Time {
		return time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC)
	})
	return &harness{coord: coord, trans: trans, registry: registry, ledger: ledger, bus: bus}
}

// frame assembles an inbound venue message with correct length and checksum.
func frame(fields ...string) string {
	body := strings.Join(fields, fix.SOH) + fix.SOH
	msg := "8=FIX.4.4" + fix.SOH + "9=" + strconv.Itoa(len(body)) + fix.SOH + body
	return msg + "10=" + fix.Checksum(msg) + fix.SOH
}

func (h *harness) logon(t *testing.T) {
	t.Helper()
	require.NoError(t, h.coord.Logon())
	h.coord.HandleInbound(frame("35=A", "34=1", "49=FENICS", "52=20260302-14:30:00.000", "56=DESK1", "98=0", "108=10"))
	require.True(t, h.coord.LoggedOn())
}

func vanillaTrade() *models.TradeStructure {
	strike, _ := decimal.NewFromString("1.10")
	notional, _ := decimal.NewFromString("10")
	return &models.TradeStructure{
		Underlying:      "EURUSD",
		Kind:            models.StructureVanilla,
		PremiumCurrency: "USD",
		Legs: []models.OptionLeg{{
			Direction:        models.DirectionBuy,
			Kind:             models.OptionCall,
			Strike:           strike,
			Tenor:            "1M",
			NotionalMM:       notional,
			NotionalCurrency: "EUR",
			Cutoff:           "NY",
			Position:         models.PositionSame,
			LegID:            "SL0",
		}},
	}
}

func seqOf(t *testing.T, raw string) int {
	t.Helper()
	msg, err := fix.Parse(raw)
	require.NoError(t, err)
	n, ok := msg.GetInt(fix.TagMsgSeqNum)
	require.True(t, ok)
	return n
}

func TestLogonStateMachine(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateDisconnected, h.coord.State())

	require.NoError(t, h.coord.Logon())
	assert.Equal(t, StateConnecting, h.coord.State())
	assert.False(t, h.coord.LoggedOn())

	h.coord.HandleInbound(frame("35=A", "34=1", "49=FENICS", "52=20260302-14:30:00.000", "56=DESK1"))
	assert.Equal(t, StateLoggedOn, h.coord.State())
	assert.True(t, h.coord.LoggedOn())

	h.coord.HandleInbound(frame("35=5", "34=2", "49=FENICS", "52=20260302-14:35:00.000", "56=DESK1", "58=session closed"))
	assert.Equal(t, StateDisconnected, h.coord.State())
	assert.False(t, h.coord.LoggedOn())
}

func TestBusinessSendRequiresLogon(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{"LP1"})
	assert.ErrorIs(t, err, execution.ErrNotLoggedOn)

	_, err = h.coord.SendOrder(quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"}, models.SideBid, vanillaTrade())
	assert.ErrorIs(t, err, execution.ErrNotLoggedOn)
}

func TestConcurrentSendsGetDistinctSequenceNumbers(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{fmt.Sprintf("LP%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, raw := range h.trans.messages() {
		msg, err := fix.Parse(raw)
		require.NoError(t, err)
		if msg.MsgType() != fix.MsgTypeQuoteRequest {
			continue
		}
		seq, ok := msg.GetInt(fix.TagMsgSeqNum)
		require.True(t, ok)
		assert.False(t, seen[seq], "sequence %d claimed twice", seq)
		seen[seq] = true
	}
	require.Len(t, seen, n)
	// Logon took 1; the requests occupy 2..n+1 with no gaps.
	for s := 2; s <= n+1; s++ {
		assert.True(t, seen[s], "missing sequence %d", s)
	}
}

func TestFailedSendDoesNotConsumeSequence(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	_, _, err := h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{"LP1"})
	require.NoError(t, err)

	h.trans.failNext = true
	_, _, err = h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{"LP1"})
	require.Error(t, err)

	_, _, err = h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{"LP1"})
	require.NoError(t, err)

	msgs := h.trans.messages()
	require.Len(t, msgs, 3) // logon + two successful requests
	assert.Equal(t, 2, seqOf(t, msgs[1]))
	assert.Equal(t, 3, seqOf(t, msgs[2]), "the failed attempt's number is reused")
}

func TestRequestQuotesFanOut(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	groupID, sent, err := h.coord.RequestQuotes(context.Background(), vanillaTrade(), []string{"LP1", "LP2", "LP3"})
	require.NoError(t, err)
	require.Len(t, sent, 3)
	assert.True(t, strings.HasPrefix(groupID, "3-REQ"))

	seenReqIDs := make(map[string]bool)
	for provider, reqID := range sent {
		assert.True(t, strings.HasPrefix(reqID, "FENICS.DESK1.Q"), "request id format")
		assert.False(t, seenReqIDs[reqID], "request ids must be unique per provider")
		seenReqIDs[reqID] = true

		_, ok := h.registry.Get(quotes.StreamKey{QuoteReqID: reqID, Provider: provider})
		assert.True(t, ok, "stream registered for %s", provider)
	}

	// Every request in the group shares the canonical trade date.
	var tradeDates []string
	for _, raw := range h.trans.messages() {
		msg, _ := fix.Parse(raw)
		if msg.MsgType() == fix.MsgTypeQuoteRequest {
			tradeDates = append(tradeDates, msg.Get(fix.TagTradeDate))
		}
	}
	require.Len(t, tradeDates, 3)
	assert.Equal(t, tradeDates[0], tradeDates[1])
	assert.Equal(t, tradeDates[1], tradeDates[2])
}

func TestInboundQuoteUpdatesRegistry(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	h.registry.Register(quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"}, "G1", "EURUSD")
	h.coord.HandleInbound(frame(
		"35=S", "34=2", "49=FENICS", "52=20260302-14:30:01.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-889B", "54=1", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5678=7.25", "5359=10", "5844=0.00415",
	))

	rec, ok := h.registry.Get(quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"})
	require.True(t, ok)
	require.NotNil(t, rec.Bid)
	assert.Nil(t, rec.Offer)
	assert.Equal(t, "LP1-Q-889B", rec.Bid.QuoteID)
	require.Len(t, rec.Bid.Legs, 1)
	assert.Equal(t, "SL0", rec.Bid.Legs[0].StrategyID)
	assert.Equal(t, "0.00415", rec.Bid.Legs[0].PremiumPrice.String())

	// Offer arrives independently.
	h.coord.HandleInbound(frame(
		"35=S", "34=3", "49=FENICS", "52=20260302-14:30:02.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-890O", "54=2", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5844=0.0045",
	))
	rec, _ = h.registry.Get(quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"})
	assert.NotNil(t, rec.Bid)
	assert.NotNil(t, rec.Offer)
}

func TestInboundQuoteCancelClearsInferredSide(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	key := quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"}
	h.registry.Register(key, "G1", "EURUSD")
	h.coord.HandleInbound(frame(
		"35=S", "34=2", "49=FENICS", "52=20260302-14:30:01.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-889B", "54=1", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5844=0.00415",
	))

	h.coord.HandleInbound(frame(
		"35=Z", "34=3", "49=FENICS", "52=20260302-14:30:05.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-889B", "298=1",
	))
	rec, _ := h.registry.Get(key)
	assert.Nil(t, rec.Bid, "cancel with a recognizable id clears the bid")

	// Unrecognizable id clears nothing.
	h.coord.HandleInbound(frame(
		"35=S", "34=4", "49=FENICS", "52=20260302-14:30:06.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-900B", "54=1", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5844=0.0041",
	))
	h.coord.HandleInbound(frame(
		"35=Z", "34=5", "49=FENICS", "52=20260302-14:30:07.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-901", "298=1",
	))
	rec, _ = h.registry.Get(key)
	assert.NotNil(t, rec.Bid, "ambiguous cancel awaits a replacement instead of guessing")
}

func TestInboundExecutionReportSettlesLedger(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	h.ledger.Open(models.TradeLedgerEntry{ClOrdID: "ORD1", Counterparty: "LP1"})
	h.coord.HandleInbound(frame(
		"35=8", "34=2", "49=FENICS", "52=20260302-14:30:10.000", "56=DESK1",
		"11=ORD1", "17=EX1", "39=2", "6=0.0042",
	))
	e, ok := h.ledger.Get("ORD1")
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusFilled, e.Status)
	assert.Equal(t, "EX1", e.ExecID)
	assert.Equal(t, "0.0042", e.FillPrice.String())

	h.ledger.Open(models.TradeLedgerEntry{ClOrdID: "ORD2", Counterparty: "LP1"})
	h.coord.HandleInbound(frame(
		"35=8", "34=3", "49=FENICS", "52=20260302-14:30:11.000", "56=DESK1",
		"11=ORD2", "17=EX2", "39=8", "58=quote no longer valid",
	))
	e, _ = h.ledger.Get("ORD2")
	assert.Equal(t, models.OrderStatusRejected, e.Status)
	assert.Equal(t, "quote no longer valid", e.RejectReason)
}

func TestSendOrderHappyPath(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	key := quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"}
	h.registry.Register(key, "G1", "EURUSD")
	h.coord.HandleInbound(frame(
		"35=S", "34=2", "49=FENICS", "52=20260302-14:30:01.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-889B", "54=1", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5678=7.25", "5359=10", "5844=0.00415",
	))

	clOrdID, err := h.coord.SendOrder(key, models.SideBid, vanillaTrade())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(clOrdID, "ORD"))

	e, ok := h.ledger.Get(clOrdID)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPending, e.Status)
	assert.Equal(t, "LP1", e.Counterparty)
	assert.Equal(t, models.DirectionSell, e.Side, "hitting the bid sells the structure")

	msgs := h.trans.messages()
	last := msgs[len(msgs)-1]
	msg, err := fix.Parse(last)
	require.NoError(t, err)
	assert.Equal(t, fix.MsgTypeNewOrderMultileg, msg.MsgType())
	assert.Equal(t, "LP1-Q-889B", msg.Get(fix.TagQuoteID))
	assert.Equal(t, clOrdID, msg.Get(fix.TagClOrdID))
}

func TestInboundRejectsPublishEvents(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	var rejects []events.RejectEvent
	h.bus.Subscribe(events.TopicReject, func(e events.RejectEvent) {
		rejects = append(rejects, e)
	})

	h.coord.HandleInbound(frame(
		"35=3", "34=2", "49=FENICS", "52=20260302-14:30:10.000", "56=DESK1",
		"45=5", "371=612", "372=R", "373=5", "58=invalid strike",
	))
	h.coord.HandleInbound(frame(
		"35=j", "34=3", "49=FENICS", "52=20260302-14:30:11.000", "56=DESK1",
		"372=AB", "380=3", "58=unsupported",
	))

	require.Len(t, rejects, 2)
	assert.Equal(t, fix.MsgTypeSessionReject, rejects[0].MsgType)
	assert.Contains(t, rejects[0].Reason, "value is incorrect")
	assert.Equal(t, "AB", rejects[1].RefMsgType)
	assert.Contains(t, rejects[1].Reason, "unsupported message type")
}

func TestQuoteRequestRejectTearsDownStream(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	key := quotes.StreamKey{QuoteReqID: "Q1", Provider: "LP1"}
	h.registry.Register(key, "G1", "EURUSD")
	h.coord.HandleInbound(frame(
		"35=S", "34=2", "49=FENICS", "52=20260302-14:30:01.000", "56=DESK1", "115=LP1",
		"131=Q1", "117=LP1-Q-889B", "54=1", "55=EURUSD",
		"555=1", "600=EURUSD", "7940=SL0", "5844=0.00415",
	))
	h.coord.HandleInbound(frame(
		"35=AG", "34=3", "49=FENICS", "52=20260302-14:30:02.000", "56=DESK1", "115=LP1",
		"131=Q1", "658=3", "58=limit breach",
	))

	rec, _ := h.registry.Get(key)
	assert.Nil(t, rec.Bid)
	assert.Nil(t, rec.Offer)
}

func TestStaticDataRefreshesProviderDirectory(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	h.coord.HandleInbound(frame(
		"35=SD", "34=2", "49=FENICS", "52=20260302-14:30:00.000", "56=DESK1",
		"1663=2",
		"115=LPBANK1", "1402=Bank One", "9996=Y",
		"115=LPBANK2", "1402=Bank Two", "9996=N",
	))

	providers := h.coord.Providers()
	assert.Contains(t, providers, "LPBANK1")
	assert.NotContains(t, providers, "LPBANK2", "providers that decline price requests are not fanned out to")
}

func TestTestRequestGetsHeartbeatReply(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	h.coord.HandleInbound(frame(
		"35=1", "34=2", "49=FENICS", "52=20260302-14:30:00.000", "56=DESK1", "112=PING1",
	))

	msgs := h.trans.messages()
	last := msgs[len(msgs)-1]
	msg, err := fix.Parse(last)
	require.NoError(t, err)
	assert.Equal(t, fix.MsgTypeHeartbeat, msg.MsgType())
	assert.Equal(t, "PING1", msg.Get(fix.TagTestReqID))
}

func TestMalformedInboundIsDropped(t *testing.T) {
	h := newHarness(t)
	h.logon(t)

	// Bad checksum must not reach any handler.
	raw := frame("35=5", "34=2", "49=FENICS", "52=20260302-14:30:00.000", "56=DESK1")
	corrupted := strings.Replace(raw, "35=5", "35=6", 1)
	h.coord.HandleInbound(corrupted)
	assert.True(t, h.coord.LoggedOn(), "corrupted logout ignored")
}
