package rules

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func intCompiler(cmp func(have, want int) bool) CompilerFunc[gauge] {
	return func(operand string) CompileResult[gauge] {
		n, err := strconv.Atoi(operand)
		if err != nil {
			return Failed[gauge]("%q is not an integer", operand)
		}
		return Compiled(func(g gauge) bool { return cmp(g.value, n) })
	}
}

func gaugeRegistry() DomainPredicates[gauge] {
	return DomainPredicates[gauge]{
		'>': intCompiler(func(have, want int) bool { return have > want }),
		'<': intCompiler(func(have, want int) bool { return have < want }),
		'=': intCompiler(func(have, want int) bool { return have == want }),
	}
}

func newGaugeEngine(t *testing.T, opts ...Option) *Engine[gauge] {
	t.Helper()
	engine, err := NewEngine(StaticDomain(gaugeRegistry()), opts...)
	require.NoError(t, err)
	return engine
}

func TestNewEngine(t *testing.T) {
	t.Run("Nil domain", func(t *testing.T) {
		engine, err := NewEngine[gauge](nil)
		require.NoError(t, err)
		assert.Empty(t, engine.Operators())
		assert.NotNil(t, engine.logger)
	})

	t.Run("Snapshot of domain", func(t *testing.T) {
		engine := newGaugeEngine(t, WithLogger(zap.NewNop()))
		assert.Equal(t, []rune{'<', '=', '>'}, engine.Operators())
	})

	t.Run("Reserved operator in domain", func(t *testing.T) {
		_, err := NewEngine(StaticDomain(DomainPredicates[gauge]{
			'&': intCompiler(func(have, want int) bool { return true }),
		}))
		assert.ErrorIs(t, err, ErrReservedOperator)
	})
}

func TestEngine_Evaluate(t *testing.T) {
	engine := newGaugeEngine(t)
	ctx := context.Background()

	cases := []struct {
		rule  string
		value int
		want  bool
	}{
		{">5", 7, true},
		{">5", 5, false},
		{">5 & <10", 7, true},
		{">5 <10", 12, false},
		{"<0 | >100", 101, true},
		{"<0 | >100", 50, false},
		{"!=3", 3, false},
		{"!(=3 | =4)", 5, true},
		{"=1 | =2 & >1", 1, true},
		{"(=1 | =2) & >1", 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.rule+"@"+strconv.Itoa(tc.value), func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tc.rule, gauge{value: tc.value})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_EvaluateCancelled(t *testing.T) {
	engine := newGaugeEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Evaluate(ctx, ">1", gauge{value: 2})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = engine.EvaluateAll(ctx, ">1", []gauge{{value: 2}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_EvaluateAll(t *testing.T) {
	engine := newGaugeEngine(t)
	results, err := engine.EvaluateAll(context.Background(), ">1 & <4", []gauge{{0}, {2}, {3}, {4}})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true, false}, results)
}

func TestEngine_CompileErrors(t *testing.T) {
	engine := newGaugeEngine(t)

	t.Run("Unknown operator", func(t *testing.T) {
		_, err := engine.Compile(">1 & #tag")
		var unknown *UnknownOperatorError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, '#', unknown.Operator)
		assert.Equal(t, 5, unknown.Pos)
	})

	t.Run("Compiler message is kept verbatim", func(t *testing.T) {
		_, err := engine.Compile(">abc")
		var compileErr *CompileError
		require.True(t, errors.As(err, &compileErr))
		assert.Equal(t, '>', compileErr.Operator)
		assert.Equal(t, "abc", compileErr.Operand)
		assert.Equal(t, `"abc" is not an integer`, compileErr.Reason)
	})

	t.Run("All failures are reported", func(t *testing.T) {
		err := engine.Check(">a & <b | #c")
		require.Error(t, err)
		assert.Len(t, multierr.Errors(err), 3)
	})

	t.Run("Evaluate keeps failures separate", func(t *testing.T) {
		_, err := engine.Evaluate(context.Background(), ">a & <b", gauge{})
		require.Error(t, err)
		errs := multierr.Errors(err)
		require.Len(t, errs, 2)
		for _, e := range errs {
			assert.Contains(t, e.Error(), `compile rule ">a & <b"`)
			var compileErr *CompileError
			assert.True(t, errors.As(e, &compileErr))
		}

		_, err = engine.EvaluateAll(context.Background(), ">a & #b", []gauge{{}})
		assert.Len(t, multierr.Errors(err), 2)
	})

	t.Run("Syntax error", func(t *testing.T) {
		_, err := engine.Evaluate(context.Background(), ">1 &", gauge{})
		var syntaxErr *SyntaxError
		assert.True(t, errors.As(err, &syntaxErr))
	})

	t.Run("Nil predicate", func(t *testing.T) {
		require.NoError(t, engine.Register('0', func(string) CompileResult[gauge] {
			return Compiled[gauge](nil)
		}))
		_, err := engine.Compile("0x")
		var compileErr *CompileError
		require.True(t, errors.As(err, &compileErr))
		assert.Equal(t, "compiler returned no predicate", compileErr.Reason)
	})
}

func TestEngine_Register(t *testing.T) {
	engine := newGaugeEngine(t)

	t.Run("Reserved", func(t *testing.T) {
		for _, op := range []rune{'&', '|', '!', '(', ')', '"', ' '} {
			err := engine.Register(op, intCompiler(func(have, want int) bool { return true }))
			assert.ErrorIs(t, err, ErrReservedOperator, "operator %q", op)
		}
	})

	t.Run("Nil compiler", func(t *testing.T) {
		assert.ErrorIs(t, engine.Register('%', nil), ErrNilCompiler)
	})

	t.Run("RegisterAll is atomic", func(t *testing.T) {
		err := engine.RegisterAll(DomainPredicates[gauge]{
			'%': intCompiler(func(have, want int) bool { return have%want == 0 }),
			'(': intCompiler(func(have, want int) bool { return true }),
		})
		assert.ErrorIs(t, err, ErrReservedOperator)
		assert.NotContains(t, engine.Operators(), '%')
	})

	t.Run("New operator is usable", func(t *testing.T) {
		require.NoError(t, engine.Register('%', intCompiler(func(have, want int) bool { return have%want == 0 })))
		ok, err := engine.Evaluate(context.Background(), "%3 & >0", gauge{value: 9})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Unregister", func(t *testing.T) {
		assert.True(t, engine.Unregister('%'))
		assert.False(t, engine.Unregister('%'))
		_, err := engine.Compile("%3")
		var unknown *UnknownOperatorError
		assert.True(t, errors.As(err, &unknown))
	})

	t.Run("DomainPredicates returns a copy", func(t *testing.T) {
		registry := engine.DomainPredicates()
		delete(registry, '>')
		assert.Contains(t, engine.Operators(), '>')
	})
}

func TestEngine_Cache(t *testing.T) {
	t.Run("Compiled rules are cached until the registry changes", func(t *testing.T) {
		engine := newGaugeEngine(t)
		_, err := engine.Compile(">1")
		require.NoError(t, err)
		_, err = engine.Compile(">1")
		require.NoError(t, err)
		assert.Equal(t, 1, engine.CachedRules())

		// Rebinding '>' must take effect for rules compiled before.
		require.NoError(t, engine.Register('>', intCompiler(func(have, want int) bool { return have >= want })))
		assert.Equal(t, 0, engine.CachedRules())
		ok, err := engine.Evaluate(context.Background(), ">1", gauge{value: 1})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Failures are not cached", func(t *testing.T) {
		engine := newGaugeEngine(t)
		_, err := engine.Compile(">x")
		require.Error(t, err)
		assert.Equal(t, 0, engine.CachedRules())
	})

	t.Run("Check does not populate the cache", func(t *testing.T) {
		engine := newGaugeEngine(t)
		require.NoError(t, engine.Check(">1"))
		assert.Equal(t, 0, engine.CachedRules())
	})

	t.Run("Disabled", func(t *testing.T) {
		engine := newGaugeEngine(t, WithoutCache())
		_, err := engine.Compile(">1")
		require.NoError(t, err)
		assert.Equal(t, 0, engine.CachedRules())
	})

	t.Run("Entries expire by default", func(t *testing.T) {
		assert.Equal(t, DefaultCacheTTL, DefaultOptions().CacheTTL)
		assert.Greater(t, DefaultCacheTTL, time.Duration(0))
	})

	t.Run("Expiry", func(t *testing.T) {
		engine := newGaugeEngine(t, WithCacheTTL(20*time.Millisecond))
		_, err := engine.Compile(">1")
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			// Get on an expired entry misses even before the janitor runs.
			_, found := engine.compiled.Get(">1")
			return !found
		}, time.Second, 10*time.Millisecond)
	})
}

func TestEngine_ImplicitConjunctionOption(t *testing.T) {
	engine := newGaugeEngine(t, WithImplicitConjunction(false))
	_, err := engine.Compile(">1 <5")
	var syntaxErr *SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestEngine_MustCompile(t *testing.T) {
	engine := newGaugeEngine(t)
	assert.NotPanics(t, func() { engine.MustCompile(">1") })
	assert.Panics(t, func() { engine.MustCompile(">") })
}

func TestEngine_Events(t *testing.T) {
	engine := newGaugeEngine(t)

	var mu sync.Mutex
	var received []Event
	record := func(ctx context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}

	label := "test"
	compiledID := engine.Subscribe(SubscribeOptions{Event: RuleCompiled, Label: &label, Callback: record})
	failedID := engine.Subscribe(SubscribeOptions{Event: RuleCompileFailed, Callback: record})
	evaluatedID := engine.Subscribe(SubscribeOptions{Event: RuleEvaluated, Callback: record})
	assert.Len(t, engine.Subscriptions(), 3)
	assert.NotEqual(t, compiledID, failedID)

	_, err := engine.Evaluate(context.Background(), ">1", gauge{value: 4})
	require.NoError(t, err)
	_, err = engine.Compile(">nope")
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	byType := make(map[EventType]Event)
	for _, ev := range received {
		byType[ev.Type] = ev
	}
	mu.Unlock()

	require.Contains(t, byType, RuleEvaluated)
	require.NotNil(t, byType[RuleEvaluated].Result)
	assert.True(t, *byType[RuleEvaluated].Result)
	require.Contains(t, byType, RuleCompileFailed)
	require.NotNil(t, byType[RuleCompileFailed].Error)
	assert.Contains(t, *byType[RuleCompileFailed].Error, "not an integer")

	engine.Unsubscribe(compiledID)
	engine.Unsubscribe(failedID)
	engine.Unsubscribe(evaluatedID)
	assert.Empty(t, engine.Subscriptions())
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine := newGaugeEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_ = engine.Register('~', intCompiler(func(have, want int) bool { return have != want }))
				return
			}
			ok, err := engine.Evaluate(context.Background(), ">1 & <100", gauge{value: i + 2})
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()
}

func TestCombinators(t *testing.T) {
	positive := Predicate[gauge](func(g gauge) bool { return g.value > 0 })
	even := Predicate[gauge](func(g gauge) bool { return g.value%2 == 0 })

	assert.True(t, And(positive, even)(gauge{4}))
	assert.False(t, And(positive, even)(gauge{3}))
	assert.True(t, And[gauge]()(gauge{}))

	assert.True(t, Or(positive, even)(gauge{-2}))
	assert.False(t, Or(positive, even)(gauge{-3}))
	assert.False(t, Or[gauge]()(gauge{}))

	assert.True(t, Not(positive)(gauge{-1}))
	assert.True(t, Always[gauge]()(gauge{}))
	assert.False(t, Never[gauge]()(gauge{}))

	calls := 0
	counting := Predicate[gauge](func(gauge) bool { calls++; return true })
	And(Never[gauge](), counting)(gauge{})
	Or(Always[gauge](), counting)(gauge{})
	assert.Zero(t, calls, "combinators short-circuit")
}
