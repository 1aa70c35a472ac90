package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
)

type State int

const (
	Closed State = iota
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	}
	return "closed"
}

var (
	ErrInsufficientBalance = errors.New("order: insufficient balance")
	ErrNoPrice             = errors.New("order: no price to lock")
	ErrNotOpen             = errors.New("order: ticket is not open")
	ErrSubmitting          = errors.New("order: submission in progress")
	ErrVolume              = errors.New("order: volume below minimum step")
)

// Draft is the order being edited.
type Draft struct {
	Symbol      string            `json:"symbol"`
	Side        market.Side       `json:"side"`
	Volume      float64           `json:"volume"`
	LockedPrice float64           `json:"locked_price"`
	TakeProfit  *float64          `json:"take_profit,omitempty"`
	StopLoss    *float64          `json:"stop_loss,omitempty"`
	Category    market.Category   `json:"category"`
	DemoBalance bool              `json:"demo_balance"`
	Instrument  market.Instrument `json:"instrument"`
}

// Account holds the two balances a user can trade against.
type Account struct {
	Real float64
	Demo float64
}

// Summary is what the ticket shows for the current draft.
type Summary struct {
	State        State
	Draft        Draft
	Lot          float64
	Reference    float64
	HasReference bool
	Margin       float64
	MaxVolume    float64
	HasMax       bool
	Balance      float64
	Insufficient bool
	Remaining    time.Duration
}

// Ticket is the order ticket state machine: Closed, Open, Submitting and
// back to Closed.
type Ticket struct {
	svc      TradeService
	prices   PriceLookup
	lots     LotSizes
	log      *zap.Logger
	now      func() time.Time
	clientID string

	mu           sync.Mutex
	account      Account
	state        State
	draft        Draft
	remaining    time.Duration
	insufficient bool
}

type TicketOption func(*Ticket)

func WithLotSizes(l LotSizes) TicketOption        { return func(t *Ticket) { t.lots = l } }
func WithLogger(l *zap.Logger) TicketOption       { return func(t *Ticket) { t.log = l } }
func WithClock(now func() time.Time) TicketOption { return func(t *Ticket) { t.now = now } }
func WithClientID(id string) TicketOption         { return func(t *Ticket) { t.clientID = id } }
func WithAccount(a Account) TicketOption          { return func(t *Ticket) { t.account = a } }

func NewTicket(svc TradeService, prices PriceLookup, opts ...TicketOption) *Ticket {
	t := &Ticket{svc: svc, prices: prices, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	t.log = logger.OrNop(t.log)
	return t
}

// Open starts a draft for inst and locks the current reference price.
func (t *Ticket) Open(inst market.Instrument, cat market.Category, side market.Side) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Submitting {
		return ErrSubmitting
	}
	t.draft = Draft{
		Symbol:     inst.Symbol,
		Side:       side,
		Volume:     VolumeStep,
		Category:   cat,
		Instrument: inst,
	}
	t.state = Open
	t.relock()
	return nil
}

func (t *Ticket) SetSide(side market.Side) error {
	return t.edit(func() {
		t.draft.Side = side
		t.relock()
	})
}

// SetVolume floors and clamps v and reports the stored volume and whether
// the balance is insufficient for what was asked.
func (t *Ticket) SetVolume(v float64) (float64, bool, error) {
	var (
		out          float64
		insufficient bool
	)
	err := t.edit(func() {
		limit, hasMax := t.maxVolume()
		out, insufficient = ClampVolume(v, limit, hasMax)
		t.draft.Volume = out
		t.insufficient = insufficient || t.overBalance()
		insufficient = t.insufficient
	})
	return out, insufficient, err
}

func (t *Ticket) SetTakeProfit(p *float64) error {
	return t.edit(func() { t.draft.TakeProfit = copyPrice(p) })
}

func (t *Ticket) SetStopLoss(p *float64) error {
	return t.edit(func() { t.draft.StopLoss = copyPrice(p) })
}

// SetDemo switches the balance the draft is checked against.
func (t *Ticket) SetDemo(demo bool) error {
	return t.edit(func() {
		t.draft.DemoBalance = demo
		t.insufficient = t.overBalance()
	})
}

func (t *Ticket) SetAccount(a Account) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.account = a
	if t.state == Open {
		t.insufficient = t.overBalance()
	}
}

// Tick advances the countdown by one second and relocks at expiry. It
// reports whether the price was captured again.
func (t *Ticket) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Open {
		return false
	}
	t.remaining -= time.Second
	if t.remaining > 0 {
		return false
	}
	t.relock()
	return true
}

func (t *Ticket) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Ticket) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.draft
	d.TakeProfit, d.StopLoss = copyPrice(d.TakeProfit), copyPrice(d.StopLoss)
	s := Summary{
		State:        t.state,
		Draft:        d,
		Lot:          t.lots.For(d.Category),
		Balance:      t.balance(),
		Insufficient: t.insufficient,
		Remaining:    t.remaining,
	}
	s.Reference, s.HasReference = t.reference()
	if s.HasReference {
		s.Margin = Margin(d.Volume, s.Lot, s.Reference)
	}
	s.MaxVolume, s.HasMax = t.maxVolume()
	return s
}

// Submit sends the draft to the trade service. A draft without a valid
// locked price, below the volume step or whose margin exceeds the balance is
// rejected before
// any call is made and the ticket stays open. Otherwise the ticket closes
// whether or not the service accepts the trade.
func (t *Ticket) Submit(ctx context.Context) (ledger.Trade, error) {
	t.mu.Lock()
	switch t.state {
	case Submitting:
		t.mu.Unlock()
		return ledger.Trade{}, ErrSubmitting
	case Closed:
		t.mu.Unlock()
		return ledger.Trade{}, ErrNotOpen
	}

	d := t.draft
	if !market.Valid(d.LockedPrice) {
		t.mu.Unlock()
		return ledger.Trade{}, ErrNoPrice
	}
	if !finite(d.Volume) || d.Volume < VolumeStep {
		t.mu.Unlock()
		return ledger.Trade{}, fmt.Errorf("volume %v: %w", d.Volume, ErrVolume)
	}
	lot := t.lots.For(d.Category)
	margin := Margin(d.Volume, lot, d.LockedPrice)
	if balance := t.balance(); margin > balance {
		t.insufficient = true
		t.mu.Unlock()
		return ledger.Trade{}, fmt.Errorf("margin %.2f exceeds balance %.2f: %w", margin, balance, ErrInsufficientBalance)
	}
	t.state = Submitting
	t.mu.Unlock()

	trade := ledger.Trade{
		ClientID:   t.clientID,
		Symbol:     d.Symbol,
		Side:       d.Side,
		Volume:     d.Volume,
		Lot:        lot,
		EntryPrice: Round6(d.LockedPrice),
		TakeProfit: round6Ptr(d.TakeProfit),
		StopLoss:   round6Ptr(d.StopLoss),
		Category:   d.Category,
		Demo:       d.DemoBalance,
		Status:     ledger.StatusOpen,
		OpenedAt:   t.now(),
	}
	created, err := t.svc.Create(ctx, trade)

	t.mu.Lock()
	t.reset()
	t.mu.Unlock()

	if err != nil {
		t.log.Warn("order rejected", zap.String("symbol", d.Symbol), zap.Stringer("side", d.Side), zap.Error(err))
		return ledger.Trade{}, fmt.Errorf("submit %s %s: %w", d.Side, d.Symbol, err)
	}
	t.log.Info("order placed",
		zap.String("trade", created.ID),
		zap.String("symbol", created.Symbol),
		zap.Stringer("side", created.Side),
		zap.Float64("volume", created.Volume),
		zap.Float64("price", created.EntryPrice),
	)
	return created, nil
}

// Close discards the draft. A submission in flight still completes.
func (t *Ticket) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Submitting {
		return
	}
	t.reset()
}

func (t *Ticket) edit(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Submitting:
		return ErrSubmitting
	case Closed:
		return ErrNotOpen
	}
	fn()
	return nil
}

func (t *Ticket) reset() {
	t.state = Closed
	t.draft = Draft{}
	t.remaining = 0
	t.insufficient = false
}

// relock captures the current price. The previous lock survives when no
// price resolves.
func (t *Ticket) relock() {
	if ref, ok := ReferencePrice(0, t.live(), t.draft.Instrument); ok {
		t.draft.LockedPrice = ref
	}
	t.remaining = RelockWindow
	t.insufficient = t.overBalance()
}

func (t *Ticket) live() float64 {
	if t.prices == nil || t.draft.Symbol == "" {
		return 0
	}
	p, _ := t.prices.Lookup(t.draft.Symbol)
	return p
}

func (t *Ticket) reference() (float64, bool) {
	return ReferencePrice(t.draft.LockedPrice, t.live(), t.draft.Instrument)
}

func (t *Ticket) balance() float64 {
	if t.draft.DemoBalance {
		return t.account.Demo
	}
	return t.account.Real
}

func (t *Ticket) maxVolume() (float64, bool) {
	ref, ok := t.reference()
	if !ok {
		return 0, false
	}
	return MaxVolume(t.balance(), t.lots.For(t.draft.Category), ref)
}

func (t *Ticket) overBalance() bool {
	ref, ok := t.reference()
	if !ok {
		return false
	}
	return Margin(t.draft.Volume, t.lots.For(t.draft.Category), ref) > t.balance()
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func round6Ptr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := Round6(*p)
	return &v
}
