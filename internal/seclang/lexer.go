package seclang

import (
	"strings"

	"github.com/klyr/seclang/internal/logging"
)

type TokenKind int

const (
	TokenDirective TokenKind = iota
	TokenArgument
	TokenEnd
)

// Token is one lexical item with the line it starts on.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
}

// Directive is a directive name with its arguments, quotes removed.
type Directive struct {
	Name string
	Args []string
	File string
	Line int
}

// Tokenize splits configuration text into tokens. Lines ending with a
// backslash continue on the next line, # starts a comment line, and
// arguments may be double or single quoted with \" escaping a quote.
// A malformed line is reported and skipped.
func Tokenize(file, src string) ([]Token, []*logging.CompileError) {
	var (
		tokens []Token
		errs   []*logging.CompileError
	)
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		start := i + 1
		logical := lines[i]
		for strings.HasSuffix(logical, `\`) && i+1 < len(lines) {
			i++
			logical = logical[:len(logical)-1] + lines[i]
		}

		trimmed := strings.TrimSpace(logical)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		words, err := splitWords(trimmed)
		if err != nil {
			errs = append(errs, err.At(file, start))
			continue
		}
		tokens = append(tokens, Token{Kind: TokenDirective, Value: words[0], Line: start})
		for _, w := range words[1:] {
			tokens = append(tokens, Token{Kind: TokenArgument, Value: w, Line: start})
		}
		tokens = append(tokens, Token{Kind: TokenEnd, Line: start})
	}
	return tokens, errs
}

func splitWords(line string) ([]string, *logging.CompileError) {
	var words []string
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"' || c == '\'':
			word, next, ok := quoted(line, i)
			if !ok {
				return nil, logging.Syntaxf("unterminated quoted argument: %s", line[i:])
			}
			words = append(words, word)
			i = next
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			words = append(words, line[i:j])
			i = j
		}
	}
	return words, nil
}

// quoted reads the quoted word opening at line[start]. Only an escaped
// quote character is unescaped; other backslashes are kept for regexes.
func quoted(line string, start int) (string, int, bool) {
	q := line[start]
	var b strings.Builder
	for i := start + 1; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && line[i+1] == q:
			b.WriteByte(q)
			i++
		case c == q:
			return b.String(), i + 1, true
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}

// Group turns tokens into directives.
func Group(file string, tokens []Token) []Directive {
	var (
		out     []Directive
		current *Directive
	)
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenDirective:
			current = &Directive{Name: tok.Value, File: file, Line: tok.Line}
		case TokenArgument:
			if current != nil {
				current.Args = append(current.Args, tok.Value)
			}
		case TokenEnd:
			if current != nil {
				out = append(out, *current)
				current = nil
			}
		}
	}
	return out
}

// Lex tokenizes and groups src.
func Lex(file, src string) ([]Directive, []*logging.CompileError) {
	tokens, errs := Tokenize(file, src)
	return Group(file, tokens), errs
}
