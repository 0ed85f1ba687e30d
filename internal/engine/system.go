package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/pachinko/internal/cell"
)

// System owns the cell arena, the activation records of its rules, the
// shared namespace and the evaluation queue.
//
// Thread-safety model: none. Every write, notification and drain runs on
// the caller's goroutine to completion. Hosts with several event sources
// must serialize their writes and ExecuteActivations calls.
//
// INVARIANTS:
//   - records are evaluated in FIFO enqueue order
//   - the namespace holds intrinsic cells first, then rule variables in
//     rule order, then declaration order
//   - a record's dispatcher subscription is attached exactly once
type System struct {
	arena     *cell.Arena
	namespace *cell.Context
	records   []*Activation
	intrinsic []cell.ID
	queue     *activationQueue

	clock    *Clock
	drainIDs DrainIDGenerator

	maxSteps    int
	resetOnFire bool
	logger      *slog.Logger
	observers   []Observer
}

// Option configures a System.
type Option func(*System)

// WithMaxSteps bounds the number of evaluations in a single drain. Zero,
// the default, means unlimited.
func WithMaxSteps(maxSteps int) Option {
	return func(s *System) {
		s.maxSteps = maxSteps
	}
}

// WithResetOnFire switches to the resetting mode: every record is reset just
// before it is evaluated, so it fires again only after each of its required
// variables has been freshly written.
func WithResetOnFire() Option {
	return func(s *System) {
		s.resetOnFire = true
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// WithObserver registers an observer. Observers are called in registration
// order.
func WithObserver(o Observer) Option {
	return func(s *System) {
		s.observers = append(s.observers, o)
	}
}

// WithDrainIDs sets the drain ID generator. Defaults to UUIDv7Generator.
func WithDrainIDs(g DrainIDGenerator) Option {
	return func(s *System) {
		s.drainIDs = g
	}
}

// WithClock sets the logical clock used to stamp evaluations.
func WithClock(c *Clock) Option {
	return func(s *System) {
		s.clock = c
	}
}

// NewSystem creates an empty rule system. Add rules, optionally Define
// intrinsic variables, then call Assemble.
func NewSystem(opts ...Option) *System {
	arena := cell.NewArena()
	s := &System{
		arena:     arena,
		namespace: arena.NewContext(),
		queue:     newActivationQueue(),
		clock:     NewClock(),
		drainIDs:  UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	arena.SetRouter(dispatcher{s})
	return s
}

// New creates a system from rules and assembles it.
func New(rules []Rule, opts ...Option) (*System, error) {
	s := NewSystem(opts...)
	for _, r := range rules {
		if _, err := s.Add(r); err != nil {
			return nil, err
		}
	}
	if err := s.Assemble(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add builds the activation record for rule by running its declarations.
// The rule is not reachable from the namespace until the next Assemble.
func (s *System) Add(rule Rule) (*Activation, error) {
	if rule == nil {
		return nil, &cell.NullArgumentError{Arg: "rule"}
	}

	id := len(s.records)
	rec := newActivation(id, ruleName(rule, id), rule, s.arena)

	d := &Declarer{rec: rec}
	err := rule.Declare(d)
	d.closed = true
	if err == nil {
		err = d.err
	}
	if err != nil {
		rec.detach()
		return nil, fmt.Errorf("declare rule %s: %w", rec.name, err)
	}

	s.records = append(s.records, rec)

	s.logger.Debug("rule added",
		"rule", rec.name,
		"variables", rec.ctx.Len(),
		"required", rec.required,
		"keys", rec.keys,
	)
	return rec, nil
}

// Define registers an intrinsic variable owned by the system rather than by
// a rule. Intrinsic cells are placed first in the namespace, so rules that
// declare the same name are unified with them.
func (s *System) Define(name string, initial cell.Value) (cell.ID, error) {
	for _, id := range s.intrinsic {
		if s.arena.Name(id) == name {
			return cell.NoCell, &cell.DuplicateBindingError{Name: name}
		}
	}
	id, err := s.arena.New(name, initial)
	if err != nil {
		return cell.NoCell, err
	}
	s.intrinsic = append(s.intrinsic, id)
	return id, nil
}

// Assemble rebuilds the shared namespace.
//
// Intrinsic cells go in first. Then, for each record in rule order and each
// of its variables in declaration order, a name already in the namespace
// repoints the record's variable to that canonical cell; a new name adds the
// record's cell to the namespace. Rebinding never changes activation state.
//
// Running Assemble again yields the same namespace.
func (s *System) Assemble() error {
	s.namespace.Clear()

	for _, id := range s.intrinsic {
		if err := s.bindShared(id); err != nil {
			return err
		}
	}

	for _, rec := range s.records {
		for slot := range rec.vars {
			v := rec.vars[slot]
			if i := s.namespace.Index(v.name); i >= 0 {
				canonical, err := s.namespace.At(i)
				if err != nil {
					return err
				}
				if err := rec.rebind(slot, canonical); err != nil {
					return fmt.Errorf("assemble rule %s: %w", rec.name, err)
				}
				continue
			}
			if err := s.bindShared(v.cell); err != nil {
				return fmt.Errorf("assemble rule %s: %w", rec.name, err)
			}
		}

		if !rec.attached {
			rec.ctx.AddListener(cell.Sub{Kind: subRecord, Target: rec.id})
			rec.attached = true
		}
	}

	s.logger.Debug("rule system assembled",
		"rules", len(s.records),
		"variables", s.namespace.Len(),
	)
	return nil
}

// SetFreeVariables repoints every rule variable and intrinsic variable whose
// name appears in vars to the given cell, then reassembles. Each cell must
// carry the name it is mapped under and belong to this system's arena.
func (s *System) SetFreeVariables(vars map[string]cell.ID) error {
	for name, id := range vars {
		if !s.arena.Valid(id) {
			return &cell.NullArgumentError{Arg: name}
		}
		if got := s.arena.Name(id); got != name {
			return newInvalidBindingError(name, got)
		}
	}

	for i, id := range s.intrinsic {
		if replacement, ok := vars[s.arena.Name(id)]; ok {
			s.intrinsic[i] = replacement
		}
	}

	for _, rec := range s.records {
		for slot := range rec.vars {
			replacement, ok := vars[rec.vars[slot].name]
			if !ok {
				continue
			}
			if err := rec.rebind(slot, replacement); err != nil {
				return fmt.Errorf("rebind rule %s: %w", rec.name, err)
			}
		}
	}

	return s.Assemble()
}

// Observe registers an observer after construction, for observers that need
// the system's namespace before they can be built.
func (s *System) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

// Arena returns the arena that owns every cell of the system.
func (s *System) Arena() *cell.Arena {
	return s.arena
}

// Namespace returns the shared binding context. Hosts write through it to
// inject events and read results from it.
func (s *System) Namespace() *cell.Context {
	return s.namespace
}

// FreeVarNames returns the namespace's variable names in position order.
func (s *System) FreeVarNames() []string {
	return s.namespace.Names()
}

// Records returns the activation records in rule order.
func (s *System) Records() []*Activation {
	out := make([]*Activation, len(s.records))
	copy(out, s.records)
	return out
}

// Clock returns the system's logical clock.
func (s *System) Clock() *Clock {
	return s.clock
}

// QueueLen returns the number of pending activations.
func (s *System) QueueLen() int {
	return s.queue.Len()
}

// ClearQueue drops every pending activation without evaluating it.
func (s *System) ClearQueue() {
	s.queue.Clear()
}

// ExecuteActivations drains the evaluation queue.
//
// Each dequeued record has its condition evaluated and, when it holds, its
// action performed. Writes made by actions may enqueue further records,
// which are processed in the same call; the loop ends when the queue is
// empty.
//
// An error from a condition or action is returned unchanged and stops the
// drain. Records still queued stay queued for the next call.
func (s *System) ExecuteActivations() error {
	if s.queue.Len() == 0 {
		return nil
	}

	drainID := s.drainIDs.Generate()
	queued := s.queue.Len()
	for _, o := range s.observers {
		o.DrainStarted(drainID, queued)
	}
	s.logger.Debug("drain started", "drain_id", drainID, "queued", queued)

	var quota *QuotaEnforcer
	if s.maxSteps > 0 {
		quota = NewQuotaEnforcer(s.maxSteps)
	}

	evaluated := 0
	err := s.drain(drainID, quota, &evaluated)

	for _, o := range s.observers {
		o.DrainFinished(drainID, evaluated, err)
	}
	if err != nil {
		s.logger.Error("drain aborted",
			"drain_id", drainID,
			"evaluated", evaluated,
			"remaining", s.queue.Len(),
			"error", err,
		)
		return err
	}

	s.logger.Debug("drain finished", "drain_id", drainID, "evaluated", evaluated)
	return nil
}

func (s *System) drain(drainID string, quota *QuotaEnforcer, evaluated *int) error {
	for s.queue.Len() > 0 {
		if quota != nil {
			if err := quota.Check(drainID); err != nil {
				return err
			}
		}

		rec, _ := s.queue.TryDequeue()
		*evaluated++

		if err := s.evaluate(drainID, rec); err != nil {
			return err
		}
	}
	return nil
}

// evaluate runs one record's condition and, if it holds, its action.
func (s *System) evaluate(drainID string, rec *Activation) error {
	if s.resetOnFire {
		rec.Reset()
	}

	ev := Evaluation{
		DrainID: drainID,
		Seq:     s.clock.Next(),
		Rule:    rec.name,
	}

	ok, err := rec.rule.EvaluateCondition(rec.ctx)
	if err != nil {
		ev.Err = err
		s.notifyEvaluated(ev)
		return err
	}
	ev.Condition = ok

	if ok {
		if err := rec.rule.PerformAction(rec.ctx); err != nil {
			ev.Err = err
			s.notifyEvaluated(ev)
			return err
		}
		ev.Acted = true
	}

	s.notifyEvaluated(ev)
	return nil
}

func (s *System) notifyEvaluated(ev Evaluation) {
	s.logger.Debug("rule evaluated",
		"drain_id", ev.DrainID,
		"seq", ev.Seq,
		"rule", ev.Rule,
		"condition", ev.Condition,
		"acted", ev.Acted,
	)
	for _, o := range s.observers {
		o.Evaluated(ev)
	}
}

// bindShared adds id to the namespace and listens to it so the namespace's
// changed set tracks every write.
func (s *System) bindShared(id cell.ID) error {
	if _, err := s.namespace.Add(id); err != nil {
		return err
	}
	s.namespace.Listen(id)
	return nil
}

// dispatcher routes engine subscriptions from the arena back to records.
type dispatcher struct {
	s *System
}

func (d dispatcher) Route(sub cell.Sub, id cell.ID, via *cell.Context) {
	if sub.Target < 0 || sub.Target >= len(d.s.records) {
		return
	}
	rec := d.s.records[sub.Target]

	switch sub.Kind {
	case subVariable:
		rec.notify(sub.Slot, id, via)
	case subRecord:
		if rec.Activatable() {
			d.s.queue.Enqueue(rec)
		}
	}
}

func ruleName(rule Rule, id int) string {
	if n, ok := rule.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("rule-%d", id)
}
