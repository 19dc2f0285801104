package accelerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/probe"
	"github.com/MrSnakeDoc/clashfun/internal/selection"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

var (
	ErrNoSubscription = errors.New("no subscription loaded")
	ErrNoStore        = errors.New("history store is not configured")
)

// Options tunes probing and selection.
type Options struct {
	Probe        probe.Options
	RegionFilter []string
	HistoryLimit int
	// AutoStart starts a stopped session when a new subscription yields a node.
	AutoStart bool
}

// Deps are the collaborators of an Accelerator. Store may be nil.
type Deps struct {
	Loader  Loader
	Prober  Prober
	Policy  *selection.Policy
	Session Session
	Store   Store
	Logger  logger.Logger
}

// Accelerator owns the current subscription and selection and drives the
// proxy session from them.
//
// Every mutation runs under a single writer lock, so a manual request that
// arrives mid-cycle waits for the cycle instead of racing it. Readers use a
// snapshot that is swapped atomically and never wait on the writer.
type Accelerator struct {
	loader  Loader
	prober  Prober
	policy  *selection.Policy
	session Session
	store   Store
	log     logger.Logger
	opt     Options

	writer sync.Mutex

	mu sync.RWMutex
	st state

	cycleMu     sync.Mutex
	cancelCycle context.CancelFunc

	generation atomic.Uint64
	now        func() time.Time
}

func New(deps Deps, opt Options) *Accelerator {
	if deps.Policy == nil {
		deps.Policy = selection.NewPolicy(selection.DefaultEpsilon)
	}
	if opt.HistoryLimit <= 0 {
		opt.HistoryLimit = 50
	}
	return &Accelerator{
		loader:  deps.Loader,
		prober:  deps.Prober,
		policy:  deps.Policy,
		session: deps.Session,
		store:   deps.Store,
		log:     deps.Logger,
		opt:     opt,
		now:     time.Now,
	}
}

func (a *Accelerator) snapshot() state {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.st
}

func (a *Accelerator) update(fn func(*state)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.st
	fn(&next)
	a.st = next
}

// Load fetches source and replaces the subscription with its content.
func (a *Accelerator) Load(ctx context.Context, source string, hint subscription.Format) (*Report, error) {
	payload, err := a.loader.Load(ctx, source)
	if err != nil {
		a.log.Error("subscription fetch failed", logger.String(logger.KeySource, source), logger.Stage(domain.StageFetch), logger.Error(err))
		return nil, err
	}
	return a.SetSubscription(ctx, payload, hint)
}

// SetSubscription parses payload and, if it decodes, replaces the current
// subscription. Any in-flight probe cycle is cancelled, the previous node
// set, probe results, pin and selection are discarded, and a fresh cycle
// selects a node from the new set.
//
// A selection failure does not undo the replacement; it is reported in
// Report.SelectionError.
func (a *Accelerator) SetSubscription(ctx context.Context, payload *subscription.Payload, hint subscription.Format) (*Report, error) {
	res, err := subscription.Parse(payload.Source, payload.Data, hint)
	if err != nil {
		a.log.Error("subscription rejected", logger.String(logger.KeySource, payload.Source), logger.Stage(domain.StageParse), logger.Error(err))
		return nil, err
	}

	a.cancelInFlight()
	a.writer.Lock()
	defer a.writer.Unlock()

	sub := a.install(payload.Source, payload.FetchedAt, res, "")

	a.persistSubscription(ctx, domain.SubscriptionSnapshot{
		Source:    payload.Source,
		Format:    string(res.Format),
		FetchedAt: payload.FetchedAt,
		Raw:       payload.Data,
	})

	report := &Report{
		Generation: sub.Generation,
		Format:     res.Format,
		Nodes:      sub.Len(),
		Rejected:   res.Rejected,
	}
	report.Selection, report.SelectionError = a.reselectLocked(ctx, domain.TriggerSubscription, "")
	return report, nil
}

// Restore re-installs a persisted subscription on startup. The recorded
// selection only serves as a tie-break hint for the first cycle.
func (a *Accelerator) Restore(ctx context.Context, snap *domain.SubscriptionSnapshot, rec *domain.SelectionRecord) (*Report, error) {
	if snap == nil {
		return nil, ErrNoSubscription
	}
	res, err := subscription.Parse(snap.Source, snap.Raw, subscription.ParseFormat(snap.Format))
	if err != nil {
		return nil, err
	}

	a.writer.Lock()
	defer a.writer.Unlock()

	hint := ""
	if rec != nil {
		hint = rec.Node
	}
	sub := a.install(snap.Source, snap.FetchedAt, res, hint)
	if rec != nil && rec.Pinned != "" {
		if _, ok := sub.Lookup(rec.Pinned); ok {
			a.update(func(s *state) { s.pin = rec.Pinned })
		}
	}
	report := &Report{Generation: sub.Generation, Format: res.Format, Nodes: sub.Len(), Rejected: res.Rejected}
	report.Selection, report.SelectionError = a.reselectLocked(ctx, domain.TriggerSubscription, a.snapshot().pin)
	return report, nil
}

// install swaps in a new subscription generation. Caller holds the writer lock.
func (a *Accelerator) install(source string, fetchedAt time.Time, res *subscription.Result, hint string) *domain.Subscription {
	gen := a.generation.Add(1)
	sub := domain.NewSubscription(source, fetchedAt, gen, res.Nodes)
	a.update(func(s *state) {
		*s = state{
			sub:      sub,
			format:   res.Format,
			rejected: res.Rejected,
			hint:     hint,
			game:     s.game,
		}
	})

	for _, pe := range res.Rejected {
		a.log.Warn("subscription entry rejected",
			logger.String("code", pe.AppError.Code),
			logger.Node(pe.AppError.Node),
			logger.Int("line", pe.AppError.Line),
			logger.String("hint", pe.AppError.Hint),
			logger.Error(pe.Cause),
		)
	}
	a.log.Info("subscription installed",
		logger.String(logger.KeySource, source),
		logger.Uint64(logger.KeyGeneration, gen),
		logger.String("format", string(res.Format)),
		logger.Int("nodes", sub.Len()),
		logger.Int("rejected", len(res.Rejected)),
	)
	return sub
}

// Reselect runs a fresh probe cycle and selects again, keeping any pin.
func (a *Accelerator) Reselect(ctx context.Context, trigger domain.Trigger) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()
	return a.reselectLocked(ctx, trigger, a.snapshot().pin)
}

// Refresh is the periodic health-refresh trigger. It also checks that a
// running proxy engine is still alive.
func (a *Accelerator) Refresh(ctx context.Context) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()

	if err := a.session.Verify(ctx); err != nil {
		a.log.Warn("proxy engine check failed", logger.Error(err))
	}
	return a.reselectLocked(ctx, domain.TriggerRefresh, a.snapshot().pin)
}

// SelectNode pins the node matching query and makes it active. The pin
// survives refresh cycles until AutoSelect clears it. If the node is
// unreachable the previous pin and selection are kept.
func (a *Accelerator) SelectNode(ctx context.Context, query string) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()

	st := a.snapshot()
	if st.sub == nil {
		return nil, ErrNoSubscription
	}
	node, err := selection.FindNode(st.sub.Nodes, query)
	if err != nil {
		return nil, err
	}
	sel, err := a.reselectLocked(ctx, domain.TriggerManual, node.Name)
	if err != nil {
		return nil, err
	}
	a.update(func(s *state) { s.pin = node.Name })
	a.persistSelection(ctx, sel, node.Name)
	return sel, nil
}

// AutoSelect clears any pin and selects the best node.
func (a *Accelerator) AutoSelect(ctx context.Context) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()

	a.update(func(s *state) { s.pin = "" })
	return a.reselectLocked(ctx, domain.TriggerAuto, "")
}

// OnGameSignal reacts to a change in running games by reselecting with the
// games' preferred regions. Unchanged signals are ignored.
func (a *Accelerator) OnGameSignal(ctx context.Context, sig gamedetect.Signal) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()

	st := a.snapshot()
	if st.game.Key() == sig.Key() {
		return st.selection, nil
	}
	a.update(func(s *state) { s.game = sig })
	a.log.Info("running games changed",
		logger.Strings("games", sig.Games),
		logger.Strings("regions", sig.Regions),
	)
	if st.sub == nil {
		return nil, nil
	}
	return a.reselectLocked(ctx, domain.TriggerGame, st.pin)
}

// Start launches the proxy session with the current selection, selecting
// one first if none is valid for the current subscription.
func (a *Accelerator) Start(ctx context.Context) (*domain.Selection, error) {
	a.writer.Lock()
	defer a.writer.Unlock()

	st := a.snapshot()
	sel := st.selection
	if !sel.ValidFor(st.sub) {
		var err error
		if sel, err = a.reselectLocked(ctx, domain.TriggerStart, st.pin); err != nil {
			return nil, err
		}
	}
	if err := a.session.Start(ctx, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// Stop stops the proxy session.
func (a *Accelerator) Stop(ctx context.Context) error {
	a.writer.Lock()
	defer a.writer.Unlock()
	return a.session.Stop(ctx)
}

// reselectLocked probes the current subscription, publishes the completed
// cycle and applies the policy's choice. Caller holds the writer lock.
func (a *Accelerator) reselectLocked(ctx context.Context, trigger domain.Trigger, pin string) (*domain.Selection, error) {
	st := a.snapshot()
	if st.sub == nil {
		return nil, ErrNoSubscription
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	a.setCancel(cancel)
	defer func() {
		a.setCancel(nil)
		cancel()
	}()

	started := a.now()
	results, err := a.prober.Probe(cycleCtx, st.sub.Nodes, a.opt.Probe)
	if err != nil {
		a.log.Warn("probe cycle abandoned",
			logger.Uint64(logger.KeyGeneration, st.sub.Generation),
			logger.String(logger.KeyTrigger, string(trigger)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("probe cycle: %w", err)
	}
	cycle := &domain.ProbeCycle{
		Generation:  st.sub.Generation,
		StartedAt:   started,
		CompletedAt: a.now(),
		Results:     results,
	}
	a.update(func(s *state) { s.cycle = cycle })
	a.persistCycle(ctx, cycle)

	return a.applyLocked(ctx, trigger, pin)
}

// applyLocked selects from the last completed cycle and pushes the choice
// to a running session.
func (a *Accelerator) applyLocked(ctx context.Context, trigger domain.Trigger, pin string) (*domain.Selection, error) {
	st := a.snapshot()
	if st.cycle == nil || st.sub == nil || st.cycle.Generation != st.sub.Generation {
		return nil, ErrNoSubscription
	}

	sel, err := a.choose(st, pin)
	if err != nil {
		a.update(func(s *state) { s.selectErr = err })
		a.log.Warn("no node selected",
			logger.String(logger.KeyTrigger, string(trigger)),
			logger.Stage(domain.StageSelect),
			logger.Error(err),
		)
		return nil, err
	}
	sel.Generation = st.sub.Generation
	sel.Trigger = trigger

	switch cur := a.session.Status().State; {
	case cur == domain.SessionRunning:
		if err := a.session.Switch(ctx, sel); err != nil {
			return nil, err
		}
	case cur == domain.SessionStopped && a.opt.AutoStart && trigger == domain.TriggerSubscription:
		if err := a.session.Start(ctx, sel); err != nil {
			return nil, err
		}
	}

	a.update(func(s *state) {
		s.selection = sel
		s.selectErr = nil
		s.hint = ""
	})
	if prev := st.selection; prev.Name() != sel.Name() {
		a.log.Info("node selected",
			logger.Node(sel.Name()),
			logger.String("previous", prev.Name()),
			logger.Duration("latency", sel.Latency()),
			logger.String(logger.KeyTrigger, string(trigger)),
		)
	}
	a.persistSelection(ctx, sel, pin)
	return sel, nil
}

// choose applies, in order of precedence, the pin, the running games'
// regions within the configured region filter, then the configured filter
// alone. When no reachable node matches the games' regions, the configured
// filter is used instead.
func (a *Accelerator) choose(st state, pin string) (*domain.Selection, error) {
	prev := st.previous()
	if pin != "" {
		return a.policy.Select(st.cycle.Results, prev, selection.Only(pin))
	}
	base := selection.ByRegion(a.opt.RegionFilter...)
	if st.game.Active() && len(st.game.Regions) > 0 {
		gameFilter := selection.And(base, selection.ByRegion(st.game.Regions...))
		sel, err := a.policy.Select(st.cycle.Results, prev, gameFilter)
		var se *selection.Error
		if err == nil || !errors.As(err, &se) || se.Reason != selection.ReasonFilteredOut {
			return sel, err
		}
		a.log.Debug("no reachable node in game regions, using configured filter", logger.Strings("regions", st.game.Regions))
	}
	return a.policy.Select(st.cycle.Results, prev, base)
}

func (a *Accelerator) setCancel(cancel context.CancelFunc) {
	a.cycleMu.Lock()
	a.cancelCycle = cancel
	a.cycleMu.Unlock()
}

// cancelInFlight aborts the probe cycle currently holding the writer lock, if any.
func (a *Accelerator) cancelInFlight() {
	a.cycleMu.Lock()
	cancel := a.cancelCycle
	a.cycleMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status returns a consistent view without waiting for the writer.
func (a *Accelerator) Status() Status {
	st := a.snapshot()
	out := Status{
		Subscription:   st.info(),
		LastCycle:      st.cycleInfo(),
		SelectionError: st.selectErr,
		Pinned:         st.pin,
		Game:           st.game,
		Session:        a.session.Status(),
	}
	if st.selection.ValidFor(st.sub) {
		out.Selection = st.selection
	}
	return out
}

// Nodes lists the current nodes, ranked by the last cycle when one exists.
func (a *Accelerator) Nodes() []NodeView {
	return a.snapshot().nodeViews()
}

// HasHistoryID reports whether the current subscription has a node with
// this history id.
func (a *Accelerator) HasHistoryID(id string) bool {
	return a.snapshot().sub.HasHistoryID(id)
}

// History returns recent probe samples for a node, newest first.
func (a *Accelerator) History(ctx context.Context, name string) ([]domain.ProbeSample, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	st := a.snapshot()
	if st.sub == nil {
		return nil, ErrNoSubscription
	}
	node, err := selection.FindNode(st.sub.Nodes, name)
	if err != nil {
		return nil, err
	}
	return a.store.ProbeHistory(ctx, node.HistoryID(), a.opt.HistoryLimit)
}

func (a *Accelerator) persistSubscription(ctx context.Context, snap domain.SubscriptionSnapshot) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveSubscription(ctx, snap); err != nil {
		a.log.Warn("failed to save subscription snapshot", logger.Error(err))
	}
}

func (a *Accelerator) persistSelection(ctx context.Context, sel *domain.Selection, pin string) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveSelection(ctx, domain.RecordOf(sel, pin)); err != nil {
		a.log.Warn("failed to save selection", logger.Error(err))
	}
}

func (a *Accelerator) persistCycle(ctx context.Context, cycle *domain.ProbeCycle) {
	if a.store == nil {
		return
	}
	if err := a.store.AppendProbeCycle(ctx, cycle); err != nil {
		a.log.Warn("failed to save probe history", logger.Error(err))
	}
}
