package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	cache "github.com/ekinanp/go-cache"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine parses rules, compiles them through its operator registry and
// evaluates them against subjects of type X. An Engine is safe for
// concurrent use.
type Engine[X any] struct {
	registry DomainPredicates[X]
	mu       sync.RWMutex
	compiled *cache.Cache
	options  *Options
	logger   *zap.Logger

	bus           *events.TypedEventBus[Event]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// NewEngine creates an engine whose registry is a snapshot of
// domain.DomainPredicates(). A nil domain starts with an empty registry.
func NewEngine[X any](domain Domain[X], opts ...Option) (*Engine[X], error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	registry := make(DomainPredicates[X])
	if domain != nil {
		for op, fn := range domain.DomainPredicates() {
			if IsReserved(op) {
				return nil, fmt.Errorf("domain operator %q: %w", op, ErrReservedOperator)
			}
			registry[op] = fn
		}
	}

	e := &Engine[X]{
		registry:      registry,
		options:       options,
		logger:        options.Logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	switch {
	case options.CacheTTL == 0:
		e.compiled = cache.New(cache.NoExpiration, 0)
	case options.CacheTTL > 0:
		e.compiled = cache.New(options.CacheTTL, 2*options.CacheTTL)
	}

	e.logger.Debug("Rules engine created", zap.Int("operators", len(registry)), zap.Duration("cache_ttl", options.CacheTTL))
	return e, nil
}

// Register binds a compiler to an operator, replacing any existing binding.
func (e *Engine[X]) Register(op rune, fn CompilerFunc[X]) error {
	return e.RegisterAll(DomainPredicates[X]{op: fn})
}

// RegisterAll binds several compilers at once. Nothing is registered if any
// entry is invalid.
func (e *Engine[X]) RegisterAll(compilers DomainPredicates[X]) error {
	for op, fn := range compilers {
		if IsReserved(op) {
			return fmt.Errorf("operator %q: %w", op, ErrReservedOperator)
		}
		if fn == nil {
			return fmt.Errorf("operator %q: %w", op, ErrNilCompiler)
		}
	}

	e.mu.Lock()
	for op, fn := range compilers {
		e.registry[op] = fn
		e.logger.Info("Registered domain predicate", zap.String("operator", string(op)))
	}
	e.flushLocked()
	e.mu.Unlock()

	e.emitRegistryChanged(compilers.Keys())
	return nil
}

// Unregister removes the compiler bound to op and reports whether one
// existed.
func (e *Engine[X]) Unregister(op rune) bool {
	e.mu.Lock()
	_, ok := e.registry[op]
	if ok {
		delete(e.registry, op)
		e.flushLocked()
		e.logger.Info("Unregistered domain predicate", zap.String("operator", string(op)))
	}
	e.mu.Unlock()

	if ok {
		e.emitRegistryChanged([]rune{op})
	}
	return ok
}

// DomainPredicates returns a copy of the current registry.
func (e *Engine[X]) DomainPredicates() DomainPredicates[X] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Clone()
}

// Operators returns the registered operator characters in ascending order.
func (e *Engine[X]) Operators() []rune {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Keys()
}

// Parse parses rule with the engine's grammar settings.
func (e *Engine[X]) Parse(rule string) (Node, error) {
	return Parse(rule, WithImplicitAnd(e.options.ImplicitAnd))
}

// Compile parses and compiles rule. Successful results are cached by rule
// text until the registry changes or the cache entry expires.
func (e *Engine[X]) Compile(rule string) (Predicate[X], error) {
	start := time.Now()

	e.mu.RLock()
	if e.compiled != nil {
		if cached, ok := e.compiled.Get(rule); ok {
			e.mu.RUnlock()
			e.logger.Debug("Compiled rule served from cache", zap.String("rule", rule))
			return cached.(Predicate[X]), nil
		}
	}
	p, err := e.compileLocked(rule)
	if err == nil && e.compiled != nil {
		e.compiled.SetDefault(rule, p)
	}
	e.mu.RUnlock()

	if err != nil {
		e.logger.Warn("Rule compilation failed", zap.String("rule", rule), zap.Error(err))
		e.emit(createEvent(RuleCompileFailed, rule, nil, err, start))
		return nil, err
	}
	e.logger.Debug("Rule compiled", zap.String("rule", rule), zap.Duration("took", time.Since(start)))
	e.emit(createEvent(RuleCompiled, rule, nil, nil, start))
	return p, nil
}

// MustCompile is like Compile but panics on error.
func (e *Engine[X]) MustCompile(rule string) Predicate[X] {
	p, err := e.Compile(rule)
	if err != nil {
		panic(fmt.Sprintf("rules: Compile(%q): %v", rule, err))
	}
	return p
}

// Check reports every problem with rule without caching the result.
func (e *Engine[X]) Check(rule string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.compileLocked(rule)
	return err
}

// Evaluate compiles rule and applies it to subject.
func (e *Engine[X]) Evaluate(ctx context.Context, rule string, subject X) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := e.Compile(rule)
	if err != nil {
		return false, wrapCompileError(rule, err)
	}

	start := time.Now()
	result := p(subject)
	e.logger.Debug("Rule evaluated", zap.String("rule", rule), zap.Bool("result", result))
	e.emit(createEvent(RuleEvaluated, rule, &result, nil, start))
	return result, nil
}

// EvaluateAll compiles rule once and applies it to every subject in order.
// It stops early if ctx is cancelled.
func (e *Engine[X]) EvaluateAll(ctx context.Context, rule string, subjects []X) ([]bool, error) {
	p, err := e.Compile(rule)
	if err != nil {
		return nil, wrapCompileError(rule, err)
	}
	results := make([]bool, len(subjects))
	for i, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = p(subject)
	}
	e.logger.Debug("Rule evaluated against batch", zap.String("rule", rule), zap.Int("count", len(subjects)))
	return results, nil
}

// CachedRules returns the number of compiled rules currently cached.
func (e *Engine[X]) CachedRules() int {
	if e.compiled == nil {
		return 0
	}
	return e.compiled.ItemCount()
}

// Subscribe registers a callback for an engine event and returns an id that
// can be passed to Unsubscribe.
func (e *Engine[X]) Subscribe(options SubscribeOptions) string {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	unsubscribe := e.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()
	e.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Unsubscribe: unsubscribe,
	}
	return id
}

// Unsubscribe removes a subscription by id.
func (e *Engine[X]) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if info, ok := e.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(e.subscriptions, id)
	}
}

// Subscriptions lists the active subscriptions.
func (e *Engine[X]) Subscriptions() []SubscriptionInfo {
	e.subMu.RLock()
	defer e.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}

func (e *Engine[X]) compileLocked(rule string) (Predicate[X], error) {
	node, err := e.Parse(rule)
	if err != nil {
		return nil, err
	}
	return CompileNode(node, e.registry)
}

// wrapCompileError prefixes each aggregated failure with the rule text so the
// result still unpacks with multierr.Errors.
func wrapCompileError(rule string, err error) error {
	var out error
	for _, e := range multierr.Errors(err) {
		out = multierr.Append(out, fmt.Errorf("compile rule %q: %w", rule, e))
	}
	return out
}

func (e *Engine[X]) flushLocked() {
	if e.compiled != nil {
		e.compiled.Flush()
	}
}

func (e *Engine[X]) emitRegistryChanged(ops []rune) {
	event := createEvent(RegistryChanged, "", nil, nil, time.Time{})
	for _, op := range ops {
		event.Operators = append(event.Operators, string(op))
	}
	e.emit(event)
}

func (e *Engine[X]) emit(event Event) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}
