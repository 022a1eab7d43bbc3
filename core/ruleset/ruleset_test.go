package ruleset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaidimu/go-rulesengine/core/document"
	"github.com/asaidimu/go-rulesengine/core/domain"
	"github.com/asaidimu/go-rulesengine/core/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const accessYAML = `
name: access
description: who may enter
default: deny
rules:
  - name: banned
    when: '@banned'
    outcome: deny
  - name: admins
    when: '=role:admin'
    outcome: allow
  - name: legacy
    when: '=role:legacy'
    outcome: allow
    disabled: true
  - name: adults
    when: '>age:17 & ~email:*@example.com'
    outcome: review
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(accessYAML))
	require.NoError(t, err)

	assert.Equal(t, "access", set.Name)
	assert.Equal(t, "deny", set.Default)
	require.Len(t, set.Rules, 4)
	assert.True(t, set.Rules[2].Disabled)
	assert.Len(t, set.Enabled(), 3)
}

func TestParse_Invalid(t *testing.T) {
	t.Run("Bad YAML", func(t *testing.T) {
		_, err := Parse([]byte("name: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("Unknown field", func(t *testing.T) {
		_, err := Parse([]byte("name: x\ndefault: y\nrulez: []\n"))
		assert.Error(t, err)
	})

	t.Run("All validation problems reported", func(t *testing.T) {
		_, err := Parse([]byte(`
default: deny
rules:
  - name: a
    when: '>x:1'
    outcome: allow
  - name: a
    outcome: allow
  - when: '>x:1'
`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRuleSet))
		// missing set name, duplicate name, missing when, missing name, missing outcome
		assert.Len(t, multierr.Errors(err), 5)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.yaml")
	require.NoError(t, os.WriteFile(path, []byte(accessYAML), 0o600))

	set, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "access", set.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	set, err := Load(strings.NewReader(accessYAML))
	require.NoError(t, err)

	data, err := set.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, set, again)
}

func newDocEngine(t *testing.T) *rules.Engine[*document.Document] {
	t.Helper()
	engine, err := domain.NewEngine()
	require.NoError(t, err)
	return engine
}

func TestCompiled_Decide(t *testing.T) {
	set, err := Parse([]byte(accessYAML))
	require.NoError(t, err)
	compiled, err := Compile(newDocEngine(t), set)
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		name string
		doc  string
		want Decision
	}{
		{"Banned wins first", `{"banned": true, "role": "admin"}`, Decision{Outcome: "deny", Rule: "banned", Matched: true}},
		{"Admin", `{"role": "admin", "age": 12}`, Decision{Outcome: "allow", Rule: "admins", Matched: true}},
		{"Disabled rule skipped", `{"role": "legacy"}`, Decision{Outcome: "deny"}},
		{"Adult", `{"age": 30, "email": "x@example.com"}`, Decision{Outcome: "review", Rule: "adults", Matched: true}},
		{"Default", `{"age": 30, "email": "x@other.org"}`, Decision{Outcome: "deny"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := compiled.Decide(ctx, document.MustFromJSON(tc.doc))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompiled_Matches(t *testing.T) {
	set, err := Parse([]byte(accessYAML))
	require.NoError(t, err)
	compiled, err := Compile(newDocEngine(t), set)
	require.NoError(t, err)

	matches, err := compiled.Matches(context.Background(), document.MustFromJSON(`{"banned": 1, "role": "admin", "age": 40, "email": "a@example.com"}`))
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "banned", matches[0].Rule)
	assert.Equal(t, "admins", matches[1].Rule)
	assert.Equal(t, "adults", matches[2].Rule)
	assert.Same(t, set, compiled.Set())
}

func TestCompiled_Cancelled(t *testing.T) {
	set, err := Parse([]byte(accessYAML))
	require.NoError(t, err)
	compiled, err := Compile(newDocEngine(t), set)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = compiled.Decide(ctx, document.MustFromJSON(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = compiled.Matches(ctx, document.MustFromJSON(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompile_CollectsErrors(t *testing.T) {
	set := &RuleSet{
		Name:    "broken",
		Default: "no",
		Rules: []Rule{
			{Name: "one", When: ">age:old & #x", Outcome: "yes"},
			{Name: "two", When: "=role:admin", Outcome: "yes"},
			{Name: "three", When: "(>age:1", Outcome: "yes"},
			{Name: "off", When: "#ignored", Outcome: "yes", Disabled: true},
		},
	}

	_, err := Compile(newDocEngine(t), set)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), `rule "one"`)
	assert.Contains(t, errs[2].Error(), `rule "three"`)

	var compileErr *rules.CompileError
	assert.True(t, errors.As(errs[0], &compileErr))
	var unknown *rules.UnknownOperatorError
	assert.True(t, errors.As(errs[1], &unknown))
	var syntaxErr *rules.SyntaxError
	assert.True(t, errors.As(errs[2], &syntaxErr))
}
