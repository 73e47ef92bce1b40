package events

import (
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fxdesk/rfstrader/pkg/models"
)

// Topics published on the process-wide bus.
const (
	TopicLogon       = "session:logon"
	TopicLogout      = "session:logout"
	TopicQuote       = "quotes:update"
	TopicQuoteCancel = "quotes:cancel"
	TopicReject      = "session:reject"
	TopicExecution   = "orders:execution"
	TopicProvider    = "venue:provider"
)

type LogonEvent struct {
	Session string
	Time    time.Time
}

type LogoutEvent struct {
	Session string
	Reason  string
	Time    time.Time
}

type QuoteEvent struct {
	Quote *models.Quote
}

type QuoteCancelEvent struct {
	QuoteReqID string
	Provider   string
	Side       models.QuoteSide // empty when the side could not be inferred
}

type RejectEvent struct {
	MsgType    string
	RefMsgType string
	Reason     string
	Text       string
}

type ExecutionEvent struct {
	ClOrdID   string
	ExecID    string
	Status    models.OrderStatus
	FillPrice decimal.Decimal
	Reason    string
}

type ProviderEvent struct {
	CompID  string
	Name    string
	Enabled bool
}

// Bus wraps the process event bus. Subscriptions are synchronous so that
// handlers observe events in publish order; a slow subscriber slows the
// publisher, which is acceptable at quote-stream rates.
type Bus struct {
	inner EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{inner: EventBus.New()}
}

func (b *Bus) Publish(topic string, payload interface{}) {
	b.inner.Publish(topic, payload)
}

func (b *Bus) Subscribe(topic string, fn interface{}) {
	if err := b.inner.Subscribe(topic, fn); err != nil {
		log.WithError(err).WithField("topic", topic).Error("event subscription failed")
	}
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) {
	if err := b.inner.Unsubscribe(topic, fn); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("event unsubscribe failed")
	}
}
