package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

// Token kinds produced by Lex.
const (
	TokenEOF TokenKind = iota
	TokenTerm
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of rule"
	case TokenTerm:
		return "term"
	case TokenAnd:
		return "'&'"
	case TokenOr:
		return "'|'"
	case TokenNot:
		return "'!'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	default:
		return "unknown token"
	}
}

// Grammar characters. None of them can be used as an operator.
const (
	runeAnd    = '&'
	runeOr     = '|'
	runeNot    = '!'
	runeLParen = '('
	runeRParen = ')'
	runeQuote  = '"'
	runeEscape = '\\'
)

// IsReserved reports whether r is used by the rule grammar and therefore
// cannot name a domain operator.
func IsReserved(r rune) bool {
	switch r {
	case runeAnd, runeOr, runeNot, runeLParen, runeRParen, runeQuote:
		return true
	}
	return unicode.IsSpace(r) || r == utf8.RuneError
}

// Token is a lexical unit of a rule. Operator and Operand are set for terms.
type Token struct {
	Kind     TokenKind
	Operator rune
	Operand  string
	Pos      int
}

// Lex splits a rule into tokens. The returned slice always ends with a
// TokenEOF token.
func Lex(rule string) ([]Token, error) {
	var tokens []Token
	pos := 0
	for pos < len(rule) {
		r, size := utf8.DecodeRuneInString(rule[pos:])
		if r == utf8.RuneError && size <= 1 {
			return nil, syntaxErrorf(pos, "invalid UTF-8 encoding")
		}
		if unicode.IsSpace(r) {
			pos += size
			continue
		}

		switch r {
		case runeAnd:
			tokens = append(tokens, Token{Kind: TokenAnd, Pos: pos})
			pos += size
		case runeOr:
			tokens = append(tokens, Token{Kind: TokenOr, Pos: pos})
			pos += size
		case runeNot:
			tokens = append(tokens, Token{Kind: TokenNot, Pos: pos})
			pos += size
		case runeLParen:
			tokens = append(tokens, Token{Kind: TokenLParen, Pos: pos})
			pos += size
		case runeRParen:
			tokens = append(tokens, Token{Kind: TokenRParen, Pos: pos})
			pos += size
		case runeQuote:
			return nil, syntaxErrorf(pos, "quoted operand without an operator")
		case utf8.RuneError:
			return nil, syntaxErrorf(pos, "U+FFFD cannot be an operator")
		default:
			start := pos
			pos += size
			operand, next, err := lexOperand(rule, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenTerm, Operator: r, Operand: operand, Pos: start})
			pos = next
		}
	}
	tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(rule)})
	return tokens, nil
}

// lexOperand reads the operand that starts at pos and returns it along with
// the offset just past it.
func lexOperand(rule string, pos int) (string, int, error) {
	if pos < len(rule) && rule[pos] == runeQuote {
		return lexQuoted(rule, pos)
	}
	end := pos
	for end < len(rule) {
		r, size := utf8.DecodeRuneInString(rule[end:])
		if r == utf8.RuneError {
			if size <= 1 {
				return "", 0, syntaxErrorf(end, "invalid UTF-8 encoding")
			}
			// a literally encoded U+FFFD is ordinary operand text
			end += size
			continue
		}
		if IsReserved(r) {
			break
		}
		end += size
	}
	return rule[pos:end], end, nil
}

func lexQuoted(rule string, pos int) (string, int, error) {
	var b strings.Builder
	i := pos + 1
	for i < len(rule) {
		c := rule[i]
		switch c {
		case runeQuote:
			return b.String(), i + 1, nil
		case runeEscape:
			if i+1 >= len(rule) {
				return "", 0, syntaxErrorf(i, "unfinished escape sequence")
			}
			next := rule[i+1]
			if next != runeQuote && next != runeEscape {
				return "", 0, syntaxErrorf(i, "invalid escape sequence \\%c", next)
			}
			b.WriteByte(next)
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, syntaxErrorf(pos, "unterminated quoted operand")
}

// quoteOperand renders an operand so that Lex reads it back unchanged.
func quoteOperand(operand string) string {
	needsQuotes := false
	for _, r := range operand {
		if IsReserved(r) || r == runeEscape {
			needsQuotes = true
			break
		}
	}
	if !needsQuotes {
		return operand
	}
	var b strings.Builder
	b.WriteByte(runeQuote)
	for i := 0; i < len(operand); i++ {
		c := operand[i]
		if c == runeQuote || c == runeEscape {
			b.WriteByte(runeEscape)
		}
		b.WriteByte(c)
	}
	b.WriteByte(runeQuote)
	return b.String()
}
