// Package domain provides the standard operator set for evaluating rules
// against JSON documents.
//
//	=path:value   equality (numbers, booleans, null and strings)
//	>path:number  greater than
//	<path:number  less than
//	@path         field present and not null
//	~path:glob    glob match
//	/path:regex   regular expression match
//	^path:range   semantic version within range, e.g. ^"version:>=1.2.0 <2.0.0"
//	%path:a,b,c   value is one of a list
//	$path:<date   timestamp before date, $path:>date for after
//	?expression   boolean expression over the whole document
package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antonmedv/expr"
	"github.com/asaidimu/go-rulesengine/core/document"
	"github.com/asaidimu/go-rulesengine/core/rules"
	"github.com/blang/semver/v4"
	"github.com/gobwas/glob"
	"github.com/tidwall/gjson"
)

// Doc is the evaluation context the standard operators work on.
type Doc = *document.Document

// OperatorInfo documents one standard operator.
type OperatorInfo struct {
	Operator    rune
	Syntax      string
	Description string
}

var operators = []struct {
	OperatorInfo
	compile rules.CompilerFunc[Doc]
}{
	{OperatorInfo{'=', "=path:value", "field equals value"}, compileEquals},
	{OperatorInfo{'>', ">path:number", "field is greater than number"}, compileCompare(func(a, b float64) bool { return a > b })},
	{OperatorInfo{'<', "<path:number", "field is less than number"}, compileCompare(func(a, b float64) bool { return a < b })},
	{OperatorInfo{'@', "@path", "field is present and not null"}, compileExists},
	{OperatorInfo{'~', "~path:glob", "field matches glob"}, compileGlob},
	{OperatorInfo{'/', "/path:regex", "field matches regular expression"}, compileRegex},
	{OperatorInfo{'^', "^path:range", "field is a semantic version inside range"}, compileSemver},
	{OperatorInfo{'%', "%path:a,b,c", "field equals one of the listed values"}, compileOneOf},
	{OperatorInfo{'$', "$path:<date", "field is a time before (<) or after (>) date"}, compileTime},
	{OperatorInfo{'?', "?expression", "expression over the document is true"}, compileExpr},
}

// Standard returns a fresh registry holding the standard operators.
func Standard() rules.DomainPredicates[Doc] {
	registry := make(rules.DomainPredicates[Doc], len(operators))
	for _, op := range operators {
		registry[op.Operator] = op.compile
	}
	return registry
}

// Operators describes the standard operators in documentation order.
func Operators() []OperatorInfo {
	out := make([]OperatorInfo, len(operators))
	for i, op := range operators {
		out[i] = op.OperatorInfo
	}
	return out
}

// NewStandard returns the standard operators as a rules.Domain.
func NewStandard() rules.Domain[Doc] {
	return rules.DomainFunc[Doc](Standard)
}

// NewEngine creates a document engine preloaded with the standard operators.
func NewEngine(opts ...rules.Option) (*rules.Engine[Doc], error) {
	return rules.NewEngine(NewStandard(), opts...)
}

func fieldOperand(operand string) (string, string, string) {
	path, value, ok := splitField(operand)
	if !ok {
		return "", "", "expected <path>:<value>, got " + strconv.Quote(operand)
	}
	return path, value, ""
}

// valueMatcher tests a single document value against a literal taken from a
// rule operand.
func valueMatcher(literal string) func(gjson.Result) bool {
	num, numErr := strconv.ParseFloat(literal, 64)
	b, boolErr := strconv.ParseBool(literal)
	return func(r gjson.Result) bool {
		switch r.Type {
		case gjson.Number:
			return numErr == nil && r.Num == num
		case gjson.True, gjson.False:
			return boolErr == nil && r.Bool() == b
		case gjson.Null:
			return r.Exists() && literal == "null"
		case gjson.String:
			return r.Str == literal
		case gjson.JSON:
			return r.Raw == literal
		default:
			return false
		}
	}
}

func compileEquals(operand string) rules.CompileResult[Doc] {
	path, value, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	match := valueMatcher(value)
	return rules.Compiled(func(d Doc) bool {
		return match(d.Get(path))
	})
}

func compileCompare(cmp func(have, want float64) bool) rules.CompilerFunc[Doc] {
	return func(operand string) rules.CompileResult[Doc] {
		path, value, msg := fieldOperand(operand)
		if msg != "" {
			return rules.Failed[Doc]("%s", msg)
		}
		want, ok := ToFloat64(value)
		if !ok {
			return rules.Failed[Doc]("%q is not a number", value)
		}
		return rules.Compiled(func(d Doc) bool {
			have, ok := ToFloat64(d.Get(path))
			return ok && cmp(have, want)
		})
	}
}

func compileExists(operand string) rules.CompileResult[Doc] {
	path := strings.TrimSpace(operand)
	if path == "" {
		return rules.Failed[Doc]("missing field path")
	}
	return rules.Compiled(func(d Doc) bool {
		return d.Exists(path)
	})
}

func compileGlob(operand string) rules.CompileResult[Doc] {
	path, pattern, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return rules.Failed[Doc]("invalid glob %q: %v", pattern, err)
	}
	return rules.Compiled(func(d Doc) bool {
		r := d.Get(path)
		return r.Exists() && r.Type != gjson.Null && g.Match(r.String())
	})
}

func compileRegex(operand string) rules.CompileResult[Doc] {
	path, pattern, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return rules.Failed[Doc]("invalid regex %q: %v", pattern, err)
	}
	return rules.Compiled(func(d Doc) bool {
		r := d.Get(path)
		return r.Exists() && r.Type != gjson.Null && re.MatchString(r.String())
	})
}

func compileSemver(operand string) rules.CompileResult[Doc] {
	path, value, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	versionRange, err := semver.ParseRange(value)
	if err != nil {
		return rules.Failed[Doc]("invalid version range %q: %v", value, err)
	}
	return rules.Compiled(func(d Doc) bool {
		r := d.Get(path)
		if r.Type != gjson.String {
			return false
		}
		v, err := semver.ParseTolerant(r.Str)
		return err == nil && versionRange(v)
	})
}

func compileOneOf(operand string) rules.CompileResult[Doc] {
	path, value, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	if value == "" {
		return rules.Failed[Doc]("empty value list")
	}
	var matchers []func(gjson.Result) bool
	for _, literal := range strings.Split(value, ",") {
		matchers = append(matchers, valueMatcher(strings.TrimSpace(literal)))
	}
	return rules.Compiled(func(d Doc) bool {
		r := d.Get(path)
		for _, match := range matchers {
			if match(r) {
				return true
			}
		}
		return false
	})
}

func compileTime(operand string) rules.CompileResult[Doc] {
	path, value, msg := fieldOperand(operand)
	if msg != "" {
		return rules.Failed[Doc]("%s", msg)
	}
	if value == "" || (value[0] != '<' && value[0] != '>') {
		return rules.Failed[Doc]("expected <date or >date, got %q", value)
	}
	before := value[0] == '<'
	want, err := ToTime(strings.TrimSpace(value[1:]))
	if err != nil {
		return rules.Failed[Doc]("invalid date: %v", err)
	}
	return rules.Compiled(func(d Doc) bool {
		have, err := ToTime(d.Get(path))
		if err != nil || have.IsZero() {
			return false
		}
		if before {
			return have.Before(want)
		}
		return have.After(want)
	})
}

func compileExpr(operand string) rules.CompileResult[Doc] {
	if strings.TrimSpace(operand) == "" {
		return rules.Failed[Doc]("missing expression")
	}
	program, err := expr.Compile(operand)
	if err != nil {
		return rules.Failed[Doc]("invalid expression: %v", err)
	}
	return rules.Compiled(func(d Doc) bool {
		output, err := expr.Run(program, d.Map())
		if err != nil {
			return false
		}
		result, ok := output.(bool)
		return ok && result
	})
}
