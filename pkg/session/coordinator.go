package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fxdesk/rfstrader/pkg/dates"
	"github.com/fxdesk/rfstrader/pkg/events"
	"github.com/fxdesk/rfstrader/pkg/execution"
	"github.com/fxdesk/rfstrader/pkg/fix"
	"github.com/fxdesk/rfstrader/pkg/models"
	"github.com/fxdesk/rfstrader/pkg/quotes"
)

// Transport carries framed messages to and from the venue. Retry and
// reconnect live behind this interface, not in the coordinator.
type Transport interface {
	Send(msg string) error
	Close() error
}

// State of the session machine. Business messages may only be sent while
// logged on.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateLoggedOn     State = "LOGGED_ON"
)

// Provider is one liquidity provider known to the session, seeded from
// configuration and refreshed by the venue's directory messages.
type Provider struct {
	CompID  string
	Name    string
	Enabled bool
}

// Options configures a coordinator.
type Options struct {
	BeginString   string
	SenderCompID  string
	TargetCompID  string
	Username      string
	Password      string
	HeartbeatSecs int
	ResetSeqNum   bool
	// RequestIDPrefix is prepended to generated quote request ids, e.g.
	// "FENICS.DESK1." yielding "FENICS.DESK1.Q<unique>".
	RequestIDPrefix string
	Policy          dates.TradePolicy
	// RequestsPerSecond bounds outbound quote-request fan-out. Zero
	// disables the limiter.
	RequestsPerSecond float64
}

// Coordinator owns the session state machine, the outbound sequence
// counter and inbound dispatch. The counter is read and incremented under
// one lock, and only advances when the transport accepted the message.
type Coordinator struct {
	opts      Options
	builder   *fix.Builder
	transport Transport
	registry  *quotes.Registry
	ledger    *execution.Ledger
	bus       *events.Bus
	limiter   *rate.Limiter
	clock     func() time.Time

	mu       sync.Mutex
	seqNum   int
	state    State
	loggedOn bool

	provMu    sync.RWMutex
	providers map[string]Provider
}

func NewCoordinator(opts Options, transport Transport, registry *quotes.Registry, ledger *execution.Ledger, bus *events.Bus) *Coordinator {
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Coordinator{
		opts:      opts,
		builder:   fix.NewBuilder(opts.BeginString, opts.SenderCompID, opts.TargetCompID),
		transport: transport,
		registry:  registry,
		ledger:    ledger,
		bus:       bus,
		limiter:   limiter,
		clock:     func() time.Time { return time.Now().UTC() },
		seqNum:    1,
		state:     StateDisconnected,
		providers: make(map[string]Provider),
	}
}

// SetClock replaces the time source, for tests.
func (c *Coordinator) SetClock(clock func() time.Time) { c.clock = clock }

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) LoggedOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOn
}

// SeedProviders installs the configured liquidity provider table.
func (c *Coordinator) SeedProviders(providers []Provider) {
	c.provMu.Lock()
	defer c.provMu.Unlock()
	for _, p := range providers {
		c.providers[p.CompID] = p
	}
}

// Providers returns the enabled provider comp ids, for fan-out.
func (c *Coordinator) Providers() []string {
	c.provMu.RLock()
	defer c.provMu.RUnlock()
	out := make([]string, 0, len(c.providers))
	for id, p := range c.providers {
		if p.Enabled {
			out = append(out, id)
		}
	}
	return out
}

// transmit builds a message with the current sequence number and sends it,
// advancing the counter only when the send succeeded. requireLogon is false
// only for the logon itself.
func (c *Coordinator) transmit(requireLogon bool, build func(seq int) (string, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if requireLogon && !c.loggedOn {
		return execution.ErrNotLoggedOn
	}
	msg, err := build(c.seqNum)
	if err != nil {
		return err
	}
	if err := c.transport.Send(msg); err != nil {
		return fmt.Errorf("transmit seq %d: %w", c.seqNum, err)
	}
	c.seqNum++
	return nil
}

// Logon sends the logon message. The logged-on state is flipped by the
// venue's logon response, not here.
func (c *Coordinator) Logon() error {
	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	now := c.clock()
	return c.transmit(false, func(seq int) (string, error) {
		return c.builder.BuildLogon(seq, now, c.opts.Username, c.opts.Password, c.opts.HeartbeatSecs, c.opts.ResetSeqNum), nil
	})
}

// Logout sends a logout and flips the state down immediately so concurrent
// sends start failing.
func (c *Coordinator) Logout(reason string) error {
	now := c.clock()
	err := c.transmit(true, func(seq int) (string, error) {
		return c.builder.BuildLogout(seq, now, reason), nil
	})

	c.mu.Lock()
	c.loggedOn = false
	c.state = StateDisconnected
	c.mu.Unlock()

	c.bus.Publish(events.TopicLogout, events.LogoutEvent{
		Session: c.opts.SenderCompID,
		Reason:  reason,
		Time:    now,
	})
	return err
}

// Stop flips the session down without sending anything, for transport
// failures detected outside the coordinator.
func (c *Coordinator) Stop(reason string) {
	c.mu.Lock()
	wasOn := c.loggedOn
	c.loggedOn = false
	c.state = StateDisconnected
	c.mu.Unlock()
	if wasOn {
		c.bus.Publish(events.TopicLogout, events.LogoutEvent{
			Session: c.opts.SenderCompID,
			Reason:  reason,
			Time:    c.clock(),
		})
	}
}

// RequestQuotes fans one trade structure out to the given providers under a
// single group id, one quote request per provider, all sharing canonical
// trade and premium dates so every provider prices the same economics.
// Returns the group id and the per-provider request ids that were sent.
func (c *Coordinator) RequestQuotes(ctx context.Context, trade *models.TradeStructure, providers []string) (string, map[string]string, error) {
	if err := trade.Validate(); err != nil {
		return "", nil, err
	}
	if len(providers) == 0 {
		providers = c.Providers()
	}
	if len(providers) == 0 {
		return "", nil, fmt.Errorf("no liquidity providers to request from")
	}

	now := c.clock()
	groupID := fmt.Sprintf("3-REQ%d", now.Unix())

	// One canonical date pair shared by the whole group.
	refTenor := trade.Legs[0].Tenor
	if refTenor == "" {
		refTenor = "1D"
	}
	rd, err := dates.ComputeDates(now, trade.Underlying, refTenor, trade.PremiumCurrency, c.opts.Policy)
	if err != nil {
		return "", nil, err
	}
	tradeDate := dates.Ymd(rd.TradeDate)
	premiumDate := dates.Ymd(rd.PremiumDate)

	sent := make(map[string]string, len(providers))
	for _, provider := range providers {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return groupID, sent, err
			}
		}
		reqID := c.newQuoteReqID()
		spec := fix.QuoteRequestSpec{
			Trade:       trade,
			Provider:    provider,
			QuoteReqID:  reqID,
			GroupID:     groupID,
			Now:         now,
			Policy:      c.opts.Policy,
			TradeDate:   tradeDate,
			PremiumDate: premiumDate,
		}
		err := c.transmit(true, func(seq int) (string, error) {
			spec.SeqNum = seq
			return c.builder.BuildQuoteRequest(spec)
		})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"provider": provider,
				"groupID":  groupID,
			}).Error("quote request failed")
			return groupID, sent, err
		}
		c.registry.Register(quotes.StreamKey{QuoteReqID: reqID, Provider: provider}, groupID, trade.Underlying)
		sent[provider] = reqID
		log.WithFields(log.Fields{
			"provider":   provider,
			"quoteReqID": reqID,
			"groupID":    groupID,
			"symbol":     trade.Underlying,
			"legs":       len(trade.Legs),
		}).Info("quote request sent")
	}
	return groupID, sent, nil
}

// SendOrder validates the target quote through the execution gate, builds
// the order against it and transmits. A pending ledger entry is opened on
// successful transmission; the terminal status arrives asynchronously.
func (c *Coordinator) SendOrder(key quotes.StreamKey, side models.QuoteSide, trade *models.TradeStructure) (string, error) {
	now := c.clock()
	q, err := execution.TryExecute(c.LoggedOn(), c.registry, key, side, now)
	if err != nil {
		return "", err
	}

	clOrdID := "ORD" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:13])
	direction := models.DirectionBuy
	if side == models.SideBid {
		direction = models.DirectionSell
	}
	spec := fix.OrderSpec{
		ClOrdID: clOrdID,
		Side:    direction,
		Symbol:  trade.Underlying,
		Kind:    trade.Kind,
		Quote:   q,
		Now:     now,
	}
	err = c.transmit(true, func(seq int) (string, error) {
		spec.SeqNum = seq
		return c.builder.BuildOrder(spec)
	})
	if err != nil {
		return "", err
	}

	c.ledger.Open(models.TradeLedgerEntry{
		TradeTime:    now,
		ClOrdID:      clOrdID,
		Counterparty: q.Provider,
		Side:         direction,
		Underlying:   trade.Underlying,
		Kind:         trade.Kind,
		LegCount:     len(q.Legs),
		NetPremium:   q.NetPremium(),
		Status:       models.OrderStatusPending,
	})
	log.WithFields(log.Fields{
		"clOrdID":  clOrdID,
		"provider": q.Provider,
		"side":     direction,
		"symbol":   trade.Underlying,
		"premium":  q.NetPremium(),
	}).Info("order sent")
	return clOrdID, nil
}

func (c *Coordinator) newQuoteReqID() string {
	unique := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return c.opts.RequestIDPrefix + "Q" + unique
}
