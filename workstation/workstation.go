// Package workstation wires the quote cache, candle aggregator, watchlist,
// chart and order ticket into one session driven by the scheduler's loops.
//
// Polling loops feed the quote cache. After every quote refresh the price of
// the selected instrument is folded into the candle buffer as a tick, and
// each tick that opens a new bar arms a debounced history resync. User input
// moves the viewport, drives the drawing tools and edits the order ticket.
package workstation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/candles"
	"github.com/rustyeddy/tradedesk/chart"
	"github.com/rustyeddy/tradedesk/drawing"
	"github.com/rustyeddy/tradedesk/indicators"
	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/order"
	"github.com/rustyeddy/tradedesk/pkg/id"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/prefs"
	"github.com/rustyeddy/tradedesk/quotes"
	"github.com/rustyeddy/tradedesk/scheduler"
	"github.com/rustyeddy/tradedesk/symbol"
	"github.com/rustyeddy/tradedesk/watchlist"
)

const (
	loopQuotes    = "quotes"
	loopWatchlist = "watchlist"
	loopHistory   = "history"
	loopTrades    = "trades"
	loopCountdown = "countdown"
	debounceSync  = "resync"
)

var (
	ErrStarted   = errors.New("workstation: already started")
	ErrNoTrades  = errors.New("workstation: no trade service configured")
	ErrNoSymbol  = errors.New("workstation: empty symbol")
	ErrEmptyList = errors.New("workstation: empty watchlist response")
)

// Feed is the market data service: category lists, quotes and history.
type Feed interface {
	quotes.Source
	candles.HistorySource
	Category(ctx context.Context, cat market.Category) ([]market.Instrument, error)
}

// TickSource pushes ticks until ctx is done or the source runs dry.
type TickSource interface {
	Run(ctx context.Context, out chan<- market.Tick) error
}

// symbolSetter is implemented by tick sources that subscribe per symbol.
type symbolSetter interface {
	SetSymbols(syms []string) error
}

// Intervals are the loop periods.
type Intervals struct {
	Quotes    time.Duration
	Watchlist time.Duration
	History   time.Duration
	Trades    time.Duration
	Countdown time.Duration
	Resync    time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Quotes:    10 * time.Second,
		Watchlist: 10 * time.Second,
		History:   10 * time.Second,
		Trades:    15 * time.Second,
		Countdown: time.Second,
		Resync:    1500 * time.Millisecond,
	}
}

// Settings are the values a session starts from. A saved view overrides the
// category, symbol, timeframe and zoom.
type Settings struct {
	Category        market.Category
	Symbol          string
	Timeframe       market.Timeframe
	CandlesOnScreen int
	HistoryLimit    int
	BufferCap       int
	WatchlistCap    int
	Overlays        []string
	Width           float64
	Height          float64
	FPS             int
	Lots            order.LotSizes
	Account         order.Account
	ClientID        string
	Intervals       Intervals
}

func DefaultSettings() Settings {
	return Settings{
		Category:        market.Forex,
		Symbol:          "EURUSD",
		Timeframe:       market.M5,
		CandlesOnScreen: chart.DefaultCandlesOnScreen,
		HistoryLimit:    candles.DefaultHistoryLimit,
		BufferCap:       candles.DefaultBufferCap,
		WatchlistCap:    watchlist.DefaultCap,
		Width:           1200,
		Height:          600,
		FPS:             30,
		Intervals:       DefaultIntervals(),
	}
}

type Workstation struct {
	feed     Feed
	ticks    TickSource
	views    *prefs.Store
	trades   order.TradeService
	log      *zap.Logger
	now      func() time.Time
	ids      id.Generator
	settings Settings

	cache    *quotes.Cache
	candles  *candles.Aggregator
	curator  *watchlist.Curator
	lists    *watchlist.Lists
	machine  *drawing.Machine
	renderer *chart.Renderer
	redraw   *chart.Redrawer
	ticket   *order.Ticket

	sched  *scheduler.Scheduler
	resync *scheduler.Debouncer
	wg     sync.WaitGroup

	canvas  chart.Canvas
	onFrame func(chart.Canvas)

	mu       sync.RWMutex
	started  bool
	category market.Category
	tabs     []market.Category
	viewport chart.Viewport
	drag     *int
	pointer  *chart.Pointer
	proj     chart.Projection
	projOK   bool
	open     []ledger.Trade
	balance  prefs.BalanceMode
}

type Option func(*Workstation)

// WithTicks streams ticks from src in addition to polling.
func WithTicks(src TickSource) Option { return func(w *Workstation) { w.ticks = src } }

// WithPrefs restores the view on Start, saves it on Stop and persists pinned
// watchlist extras.
func WithPrefs(p *prefs.Store) Option { return func(w *Workstation) { w.views = p } }

// WithTrades enables the order ticket and the open positions loop.
func WithTrades(svc order.TradeService) Option { return func(w *Workstation) { w.trades = svc } }

func WithLogger(l *zap.Logger) Option             { return func(w *Workstation) { w.log = l } }
func WithClock(now func() time.Time) Option       { return func(w *Workstation) { w.now = now } }
func WithIDs(g id.Generator) Option               { return func(w *Workstation) { w.ids = g } }
func WithRenderer(r *chart.Renderer) Option       { return func(w *Workstation) { w.renderer = r } }
func WithScheduler(s *scheduler.Scheduler) Option { return func(w *Workstation) { w.sched = s } }

// WithCanvas redraws onto c whenever the chart is dirty, at most FPS times a
// second, and calls onFrame after each draw.
func WithCanvas(c chart.Canvas, onFrame func(chart.Canvas)) Option {
	return func(w *Workstation) {
		w.canvas = c
		w.onFrame = onFrame
	}
}

// New builds a session over feed. Nothing runs until Start.
func New(feed Feed, s Settings, opts ...Option) (*Workstation, error) {
	if feed == nil {
		return nil, errors.New("workstation: nil feed")
	}
	for _, spec := range s.Overlays {
		if _, err := indicators.Parse(spec); err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
	}
	def := DefaultSettings()
	if s.Category == "" {
		s.Category = def.Category
	}
	if s.Timeframe <= 0 {
		s.Timeframe = def.Timeframe
	}
	if s.Width <= 0 || s.Height <= 0 {
		s.Width, s.Height = def.Width, def.Height
	}
	if s.FPS <= 0 {
		s.FPS = def.FPS
	}
	s.Intervals = s.Intervals.orDefault(def.Intervals)

	w := &Workstation{
		feed:     feed,
		now:      time.Now,
		settings: s,
		category: s.Category,
		tabs:     []market.Category{s.Category},
		viewport: chart.NewViewport(s.CandlesOnScreen),
		balance:  prefs.BalanceReal,
	}
	for _, o := range opts {
		o(w)
	}
	w.log = logger.OrNop(w.log)
	if w.renderer == nil {
		w.renderer = chart.NewRenderer()
	}
	if w.sched == nil {
		w.sched = scheduler.New(scheduler.WithLogger(w.log))
	}

	w.cache = quotes.NewCache(feed, quotes.WithLogger(w.log), quotes.WithClock(w.now))
	w.candles = candles.New(feed,
		candles.WithHistoryLimit(s.HistoryLimit),
		candles.WithBufferCap(s.BufferCap),
		candles.WithLogger(w.log),
	)
	var extras watchlist.ExtrasStore
	if w.views != nil {
		extras = w.views
	}
	w.curator = watchlist.NewCurator(extras, watchlist.WithCap(s.WatchlistCap), watchlist.WithLogger(w.log))
	w.lists = watchlist.NewLists()

	var mopts []drawing.Option
	if w.ids != nil {
		mopts = append(mopts, drawing.WithIDs(w.ids))
	}
	w.machine = drawing.NewMachine(mopts...)
	w.redraw = chart.NewRedrawer(w.frame)
	w.resync = w.sched.Debounce(debounceSync, s.Intervals.Resync, w.resyncJob)

	if w.trades != nil {
		w.ticket = order.NewTicket(w.trades, w.cache,
			order.WithLotSizes(s.Lots),
			order.WithAccount(s.Account),
			order.WithClientID(s.ClientID),
			order.WithClock(w.now),
			order.WithLogger(w.log),
		)
	}
	return w, nil
}

func (iv Intervals) orDefault(def Intervals) Intervals {
	pick := func(v, d time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return d
	}
	return Intervals{
		Quotes:    pick(iv.Quotes, def.Quotes),
		Watchlist: pick(iv.Watchlist, def.Watchlist),
		History:   pick(iv.History, def.History),
		Trades:    pick(iv.Trades, def.Trades),
		Countdown: pick(iv.Countdown, def.Countdown),
		Resync:    pick(iv.Resync, def.Resync),
	}
}

type loopSpec struct {
	name  string
	every time.Duration
	job   scheduler.Job
	opts  []scheduler.LoopOption
}

// Start restores the saved view, selects the chart instrument and starts
// every loop. A session can be started once.
func (w *Workstation) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrStarted
	}
	w.started = true
	w.mu.Unlock()

	w.Restore(ctx)

	iv := w.settings.Intervals
	retry := scheduler.DefaultBackoff()
	loops := []loopSpec{
		{loopWatchlist, iv.Watchlist, w.watchlistJob, []scheduler.LoopOption{scheduler.Immediately(), scheduler.WithBackoff(retry)}},
		{loopQuotes, iv.Quotes, w.quotesJob, []scheduler.LoopOption{scheduler.Immediately()}},
		{loopHistory, iv.History, w.resyncJob, []scheduler.LoopOption{scheduler.Immediately()}},
		{loopCountdown, iv.Countdown, w.countdownJob, nil},
	}
	if w.trades != nil && w.settings.ClientID != "" {
		loops = append(loops, loopSpec{loopTrades, iv.Trades, w.tradesJob, []scheduler.LoopOption{scheduler.Immediately()}})
	}
	for _, l := range loops {
		if err := w.sched.Every(l.name, l.every, l.job, l.opts...); err != nil {
			w.sched.Stop()
			return fmt.Errorf("start %s loop: %w", l.name, err)
		}
	}

	runCtx := w.sched.Context()
	if w.ticks != nil {
		w.wg.Add(1)
		go w.consume(runCtx)
	}
	if w.canvas != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.redraw.Run(runCtx, w.settings.FPS)
		}()
	}

	sel := w.candles.Selection()
	w.log.Info("workstation started",
		zap.String("symbol", sel.Symbol),
		zap.Stringer("timeframe", sel.Timeframe),
		zap.Stringer("category", w.Category()),
	)
	return nil
}

// Restore applies the saved view and selects its instrument.
func (w *Workstation) Restore(ctx context.Context) {
	sym, tf := w.restoreView(ctx)
	w.candles.Select(sym, tf)
}

// Prime runs one watchlist, history and quote cycle in the caller's
// goroutine, for one-shot renders that never start the loops. Without a
// selection the saved view is restored first.
func (w *Workstation) Prime(ctx context.Context) error {
	if w.candles.Selection().Symbol == "" {
		w.Restore(ctx)
	}
	return errors.Join(w.watchlistJob(ctx), w.resyncJob(ctx), w.quotesJob(ctx))
}

// Stop halts every loop, draws a last frame if one is pending and saves the
// view. No loop touches the session after Stop returns.
func (w *Workstation) Stop(ctx context.Context) error {
	w.sched.Stop()
	w.wg.Wait()
	w.redraw.Frame()
	if w.ticket != nil {
		w.ticket.Close()
	}

	if err := w.saveView(ctx); err != nil {
		return fmt.Errorf("save view: %w", err)
	}
	w.log.Info("workstation stopped", zap.Int64("frames", w.redraw.Frames()))
	return nil
}

// Refresh runs the watchlist and quote loops now.
func (w *Workstation) Refresh() {
	w.sched.Trigger(loopWatchlist)
	w.sched.Trigger(loopQuotes)
}

func (w *Workstation) consume(ctx context.Context) {
	defer w.wg.Done()

	ticks := make(chan market.Tick, 64)
	done := make(chan error, 1)
	go func() { done <- w.ticks.Run(ctx, ticks) }()

	for {
		select {
		case t := <-ticks:
			w.ApplyTick(t)
		case err := <-done:
			w.drain(ticks)
			if err != nil && ctx.Err() == nil {
				w.log.Warn("tick source stopped", zap.Error(err))
			}
			return
		}
	}
}

func (w *Workstation) drain(ticks <-chan market.Tick) {
	for {
		select {
		case t := <-ticks:
			w.ApplyTick(t)
		default:
			return
		}
	}
}

// ApplyTick records a streamed price and, when it belongs to the selected
// instrument, folds it into the candle buffer.
func (w *Workstation) ApplyTick(t market.Tick) {
	if !market.Valid(t.Price) {
		return
	}
	k := t.Key()
	w.cache.Apply(market.Quote{Key: k, Price: t.Price, Time: t.Time})
	if symbol.Match(k, w.selectedKey()) {
		w.applySelected(t.Price, t.Time)
	}
}

func (w *Workstation) applySelected(price float64, ts time.Time) {
	res := w.candles.ApplyTick(price, ts)
	switch res.Resync {
	case candles.ResyncNow:
		w.sched.Trigger(loopHistory)
	case candles.ResyncDebounced:
		w.resync.Call()
	}
	w.redraw.Request()
}

func (w *Workstation) watchlistJob(ctx context.Context) error {
	cat := w.Category()
	items, err := w.feed.Category(ctx, cat)
	if err != nil {
		return fmt.Errorf("list %s: %w", cat, err)
	}
	// the last good list stays displayed and the loop backs off
	if len(items) == 0 {
		return fmt.Errorf("list %s: %w", cat, ErrEmptyList)
	}
	w.cache.Ingest(items)

	entries, err := w.curator.Build(ctx, cat, items)
	if err != nil {
		return fmt.Errorf("build %s watchlist: %w", cat, err)
	}
	w.lists.Set(cat, entries)

	if s, ok := w.ticks.(symbolSetter); ok {
		if err := s.SetSymbols(w.lists.Symbols(cat)); err != nil {
			w.log.Warn("update stream symbols failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Workstation) quotesJob(ctx context.Context) error {
	err := w.cache.Refresh(ctx, w.watchedKeys())
	if errors.Is(err, quotes.ErrRefreshInFlight) {
		return nil
	}
	if q, ok := w.cache.Quote(w.selectedKey()); ok {
		w.applySelected(q.Price, q.Time)
	}
	return err
}

func (w *Workstation) resyncJob(ctx context.Context) error {
	if err := w.candles.Resync(ctx); err != nil {
		return err
	}
	w.redraw.Request()
	return nil
}

func (w *Workstation) tradesJob(ctx context.Context) error {
	list, err := w.trades.ListByClient(ctx, w.settings.ClientID)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	w.mu.Lock()
	w.open = list
	w.mu.Unlock()
	return nil
}

func (w *Workstation) countdownJob(context.Context) error {
	if w.ticket != nil {
		w.ticket.Tick()
	}
	return nil
}

// watchedKeys is everything the quote loop refreshes: the active watchlist,
// the chart instrument and the symbols of known trades.
func (w *Workstation) watchedKeys() []symbol.Key {
	seen := symbol.NewSet()
	var out []symbol.Key
	add := func(raw string) {
		k := symbol.Normalize(raw)
		if k == "" || seen.Has(k) {
			return
		}
		seen.Add(k)
		out = append(out, k)
	}
	for _, e := range w.lists.Get(w.Category()) {
		add(e.Symbol)
	}
	add(w.candles.Selection().Symbol)

	w.mu.RLock()
	for _, t := range w.open {
		if !t.Closed() {
			add(t.Symbol)
		}
	}
	w.mu.RUnlock()
	return out
}

func (w *Workstation) selectedKey() symbol.Key {
	return symbol.Normalize(w.candles.Selection().Symbol)
}

// Category is the active watchlist tab.
func (w *Workstation) Category() market.Category {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.category
}

// Tabs lists the opened categories in the order they were opened.
func (w *Workstation) Tabs() []market.Category {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]market.Category(nil), w.tabs...)
}

// SelectCategory switches the watchlist tab and refreshes it.
func (w *Workstation) SelectCategory(cat market.Category) {
	w.mu.Lock()
	w.category = cat
	known := false
	for _, t := range w.tabs {
		if t == cat {
			known = true
			break
		}
	}
	if !known {
		w.tabs = append(w.tabs, cat)
	}
	w.mu.Unlock()
	w.sched.Trigger(loopWatchlist)
}

// Watchlist returns the last good list of the active category.
func (w *Workstation) Watchlist() []watchlist.Entry {
	return w.lists.Get(w.Category())
}

// Pin adds raw to the active category's extras.
func (w *Workstation) Pin(ctx context.Context, raw string) error {
	if err := w.curator.Pin(ctx, w.Category(), raw); err != nil {
		return err
	}
	w.sched.Trigger(loopWatchlist)
	return nil
}

func (w *Workstation) Unpin(ctx context.Context, raw string) error {
	if err := w.curator.Unpin(ctx, w.Category(), raw); err != nil {
		return err
	}
	w.sched.Trigger(loopWatchlist)
	return nil
}

// Quote is the cached price and tick direction of raw.
func (w *Workstation) Quote(raw string) (float64, quotes.Direction, bool) {
	k := symbol.Normalize(raw)
	q, ok := w.cache.Quote(k)
	if !ok {
		return 0, quotes.None, false
	}
	return q.Price, w.cache.Direction(k), true
}

// Select charts raw on the current timeframe. Drawings belong to the
// previous instrument and are cleared.
func (w *Workstation) Select(raw string) error {
	sym := strings.TrimSpace(raw)
	if symbol.Normalize(sym) == "" {
		return ErrNoSymbol
	}
	w.candles.Select(sym, w.candles.Selection().Timeframe)
	w.machine.Clear()
	w.resetView()
	w.sched.Trigger(loopHistory)
	w.sched.Trigger(loopQuotes)
	return nil
}

// SetTimeframe re-buckets the chart. Drawings are kept since they are
// anchored in time and price.
func (w *Workstation) SetTimeframe(tf market.Timeframe) {
	w.candles.Select(w.candles.Selection().Symbol, tf)
	w.machine.Cancel()
	w.resetView()
	w.sched.Trigger(loopHistory)
}

// Selection is the charted instrument and timeframe.
func (w *Workstation) Selection() candles.Selection {
	return w.candles.Selection()
}

// Candles is a copy of the chart buffer.
func (w *Workstation) Candles() []market.Candle {
	return w.candles.Candles()
}
