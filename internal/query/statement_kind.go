package query

import (
	"strings"
	"unicode"

	"github.com/umarmk/mcp-server/internal/errs"
)

// StatementKind is what a custom query claims to be.
type StatementKind string

const (
	KindRead  StatementKind = "read"
	KindWrite StatementKind = "write"
)

// ParseStatementKind accepts read/write, and the verbs select, insert,
// update and delete as aliases.
func ParseStatementKind(s string) (StatementKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "select":
		return KindRead, nil
	case "write", "insert", "update", "delete":
		return KindWrite, nil
	default:
		return "", errInvalidArgument("declared_kind must be read or write, got %q", s)
	}
}

var (
	ddlKeywords = map[string]bool{
		"CREATE": true, "DROP": true, "ALTER": true,
		"TRUNCATE": true, "GRANT": true, "REVOKE": true,
	}
	// Any of these in a read means it writes somewhere: a data-modifying
	// CTE, SELECT … INTO a new table, or a row-locking FOR UPDATE.
	writeKeywords = map[string]bool{
		"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "INTO": true,
	}
	writeVerbs = map[string]bool{"INSERT": true, "UPDATE": true, "DELETE": true}
	mainVerbs  = map[string]bool{"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true}
)

// ValidateStatementKind checks caller SQL against its declared kind, using
// d's rules for comments and quoting.
//
// This is a keyword heuristic, not a parser. The text is scanned with
// comments, string literals, quoted identifiers and dollar-quoted bodies
// removed; then:
//
//   - a ';' followed by more SQL is rejected (one statement per call)
//   - CREATE, DROP, ALTER, TRUNCATE, GRANT and REVOKE are rejected anywhere
//   - the main verb is the first keyword, or for WITH the first SELECT,
//     INSERT, UPDATE, DELETE or MERGE outside the CTE parentheses
//   - read requires SELECT and no INSERT, UPDATE, DELETE, MERGE or INTO
//   - write requires INSERT, UPDATE or DELETE
func ValidateStatementKind(d Dialect, sql string, kind StatementKind) error {
	if kind != KindRead && kind != KindWrite {
		return errInvalidArgument("declared_kind must be read or write, got %q", kind)
	}
	toks, multi := scanner{dialect: d, r: []rune(sql)}.run()
	if len(toks) == 0 {
		return errInvalidArgument("query text is empty")
	}
	if multi {
		return errs.New(errs.ErrKindStatementKindMismatch, "multiple statements are not allowed")
	}
	for _, t := range toks {
		if ddlKeywords[t.word] {
			return errs.Newf(errs.ErrKindStatementKindMismatch, "%s statements are not allowed", t.word)
		}
	}

	verb := mainVerb(toks)
	switch kind {
	case KindRead:
		if verb != "SELECT" {
			return mismatch(kind, verb)
		}
		for _, t := range toks {
			if writeKeywords[t.word] {
				return errs.Newf(errs.ErrKindStatementKindMismatch,
					"query declared read contains %s", t.word)
			}
		}
	case KindWrite:
		if !writeVerbs[verb] {
			return mismatch(kind, verb)
		}
	}
	return nil
}

func mismatch(kind StatementKind, verb string) error {
	if verb == "" {
		verb = "unknown"
	}
	return errs.Newf(errs.ErrKindStatementKindMismatch,
		"query declared %s but its statement is %s", kind, verb)
}

func mainVerb(toks []token) string {
	if toks[0].word != "WITH" {
		return toks[0].word
	}
	for _, t := range toks[1:] {
		if t.depth == 0 && mainVerbs[t.word] {
			return t.word
		}
	}
	return ""
}

type token struct {
	word  string // upper-cased
	depth int    // parenthesis depth
}

// scanner splits SQL into bare words, skipping everything that cannot be a
// keyword: comments, literals, quoted identifiers and dollar-quoted bodies.
type scanner struct {
	dialect Dialect
	r       []rune
	i       int
	depth   int
	semi    bool // a ';' has been seen
	multi   bool // something followed it
	toks    []token
}

func (s scanner) run() ([]token, bool) {
	mysql := s.dialect == DialectMySQL
	for s.i < len(s.r) {
		c := s.r[s.i]
		switch {
		case unicode.IsSpace(c):
			s.i++
		case c == '-' && s.peek(1) == '-' && (!mysql || s.peek(2) == 0 || unicode.IsSpace(s.peek(2))):
			s.skipLine()
		case c == '#' && mysql:
			s.skipLine()
		case c == '/' && s.peek(1) == '*':
			if mysql && (s.peek(2) == '!' || s.peek(2) == '+') {
				// MySQL executes the body of /*! … */, so scan it as SQL.
				s.i += 3
				continue
			}
			s.skipBlockComment()
		case c == '\'' || c == '"' || c == '`':
			s.mark()
			backslash := mysql && c != '`'
			s.skipQuoted(c, backslash)
		case c == '$' && !mysql:
			s.mark()
			s.skipDollar()
		case c == ';':
			s.semi = true
			s.i++
		case c == '(':
			s.mark()
			s.depth++
			s.i++
		case c == ')':
			if s.depth > 0 {
				s.depth--
			}
			s.i++
		case unicode.IsLetter(c) || c == '_':
			s.mark()
			start := s.i
			for s.i < len(s.r) && (unicode.IsLetter(s.r[s.i]) || unicode.IsDigit(s.r[s.i]) || s.r[s.i] == '_' || s.r[s.i] == '$') {
				s.i++
			}
			word := strings.ToUpper(string(s.r[start:s.i]))
			if word == "E" && !mysql && s.i-start == 1 && s.peek(0) == '\'' {
				// E'...' escape string: backslashes escape.
				s.skipQuoted('\'', true)
				continue
			}
			s.toks = append(s.toks, token{word: word, depth: s.depth})
		default:
			s.mark()
			s.i++
		}
	}
	return s.toks, s.multi
}

// peek returns the rune n places ahead, or 0 past the end.
func (s *scanner) peek(n int) rune {
	if s.i+n < len(s.r) {
		return s.r[s.i+n]
	}
	return 0
}

// mark records that statement content follows an earlier ';'.
func (s *scanner) mark() {
	if s.semi {
		s.multi = true
	}
}

func (s *scanner) skipLine() {
	for s.i < len(s.r) && s.r[s.i] != '\n' {
		s.i++
	}
}

func (s *scanner) skipBlockComment() {
	s.i += 2
	for s.i < len(s.r) && !(s.r[s.i] == '*' && s.peek(1) == '/') {
		s.i++
	}
	s.i += 2
}

// skipQuoted skips a literal or quoted identifier opened by q. A doubled
// quote is an escaped quote; with backslash set, \x escapes too.
func (s *scanner) skipQuoted(q rune, backslash bool) {
	s.i++
	for s.i < len(s.r) {
		switch {
		case backslash && s.r[s.i] == '\\':
			s.i += 2
		case s.r[s.i] == q && s.peek(1) == q:
			s.i += 2
		case s.r[s.i] == q:
			s.i++
			return
		default:
			s.i++
		}
	}
}

// skipDollar skips a dollar-quoted body ($$…$$ or $tag$…$tag$). A positional
// parameter such as $1 is skipped on its own.
func (s *scanner) skipDollar() {
	j := s.i + 1
	for j < len(s.r) && (unicode.IsLetter(s.r[j]) || s.r[j] == '_' || (j > s.i+1 && unicode.IsDigit(s.r[j]))) {
		j++
	}
	if j >= len(s.r) || s.r[j] != '$' {
		for j < len(s.r) && unicode.IsDigit(s.r[j]) {
			j++
		}
		s.i = j
		return
	}
	tag := s.r[s.i : j+1]
	for k := j + 1; k+len(tag) <= len(s.r); k++ {
		if string(s.r[k:k+len(tag)]) == string(tag) {
			s.i = k + len(tag)
			return
		}
	}
	s.i = len(s.r)
}
