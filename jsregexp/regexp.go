// Package jsregexp wraps a regular-expression engine behind the narrow
// opaque-matcher contract spec.md §1 describes: the core only ever calls a
// match/replace/split surface, never inspects the engine's own AST, so any
// conforming regex library can sit behind it (original_source/v7/src/
// regexp.c wraps the bundled "slre" engine the same way, through
// regexp_public.h's v7_mk_regexp/v7_is_regexp pair).
package jsregexp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// Flags holds the flag letters ParseFlags accepts: g (global, repeat
// matches), i (case-insensitive) and m (multiline). Sticky and every other
// letter are rejected; spec.md's Non-goals exclude a full RegExp builtin
// library.
type Flags struct {
	Global     bool
	IgnoreCase bool
	Multiline  bool
}

// ParseFlags decodes a flag string, rejecting any letter this matcher does
// not support.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, c := range s {
		switch c {
		case 'g':
			f.Global = true
		case 'i':
			f.IgnoreCase = true
		case 'm':
			f.Multiline = true
		default:
			return Flags{}, fmt.Errorf("jsregexp: unsupported flag %q", c)
		}
	}
	return f, nil
}

// namedGroup matches `(?<name>...)` / `(?P<name>...)` forms, which this
// matcher rejects at construction time per spec.md's Non-goals: the core's
// capture-group surface is purely positional (`exec()` returns a dense
// array of substrings), so a named group could never be observed anyway,
// and rejecting it early gives a clear error instead of a silently
// discarded name.
var namedGroup = regexp.MustCompile(`\(\?P?<[A-Za-z_][A-Za-z0-9_]*>`)

// Matcher is an opaque compiled pattern bound into a value.Regexp payload.
// Its source and flags are retained for introspection without needing to
// re-derive them from the underlying regexp2.Regexp.
type Matcher struct {
	Source string
	Flags  Flags
	re     *regexp2.Regexp
}

// Compile builds a Matcher from a pattern and a "gi"-style flag string.
// Named capture groups are rejected outright; everything else is delegated
// to regexp2's .NET-flavored syntax, which is a superset of the ECMAScript
// grammar original_source/v7 implements against "slre" closely enough for
// this engine's purposes.
func Compile(pattern, flagStr string) (*Matcher, error) {
	if namedGroup.MatchString(pattern) {
		return nil, fmt.Errorf("jsregexp: named capture groups are not supported")
	}
	flags, err := ParseFlags(flagStr)
	if err != nil {
		return nil, err
	}
	opts := regexp2.None
	if flags.IgnoreCase {
		opts |= regexp2.IgnoreCase
	}
	if flags.Multiline {
		opts |= regexp2.Multiline
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("jsregexp: %w", err)
	}
	return &Matcher{Source: pattern, Flags: flags, re: re}, nil
}

// Match is one successful match: the whole match plus each numbered
// capture group (empty string, and present=false, for a group that did
// not participate), and the byte offset the match started at — exactly the
// fields `String.prototype.match`/`exec`/`replace` need to build their
// result array/replacement string.
type Match struct {
	Index  int
	Groups []Group
}

// Group is one capture group's participation in a Match. Group 0 is
// always the whole match.
type Group struct {
	Text    string
	Present bool
}

// FindFirst returns the first match starting at byte offset start, or nil
// if the pattern does not match anywhere in s[start:].
func (m *Matcher) FindFirst(s string, start int) (*Match, error) {
	var match *regexp2.Match
	var err error
	if start <= 0 {
		match, err = m.re.FindStringMatch(s)
	} else if start >= len(s) {
		return nil, nil
	} else {
		match, err = m.re.FindStringMatchStartingAt(s, start)
	}
	if err != nil {
		return nil, fmt.Errorf("jsregexp: %w", err)
	}
	if match == nil {
		return nil, nil
	}
	return toMatch(match), nil
}

// FindAll returns every non-overlapping match in s, honoring the `g` flag's
// "repeat until exhausted" semantics. Used by split/replace-all.
func (m *Matcher) FindAll(s string) ([]*Match, error) {
	var out []*Match
	match, err := m.re.FindStringMatch(s)
	if err != nil {
		return nil, fmt.Errorf("jsregexp: %w", err)
	}
	for match != nil {
		out = append(out, toMatch(match))
		match, err = m.re.FindNextMatch(match)
		if err != nil {
			return nil, fmt.Errorf("jsregexp: %w", err)
		}
	}
	return out, nil
}

// Test reports whether the pattern matches anywhere in s, the semantics
// RegExp.prototype.test needs without building a full Match.
func (m *Matcher) Test(s string) (bool, error) {
	match, err := m.re.FindStringMatch(s)
	if err != nil {
		return false, fmt.Errorf("jsregexp: %w", err)
	}
	return match != nil, nil
}

// Split implements String.prototype.split(regexp): s cut at every match of
// the pattern, empty matches included, discarding the delimiters.
func (m *Matcher) Split(s string) ([]string, error) {
	matches, err := m.FindAll(s)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []string{s}, nil
	}
	var parts []string
	prev := 0
	for _, mt := range matches {
		whole := mt.Groups[0]
		if mt.Index < prev {
			continue
		}
		parts = append(parts, s[prev:mt.Index])
		prev = mt.Index + len(whole.Text)
	}
	parts = append(parts, s[prev:])
	return parts, nil
}

// String returns the RegExp's toString() form: "/source/flags".
func (m *Matcher) String() string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(m.Source)
	b.WriteByte('/')
	if m.Flags.Global {
		b.WriteByte('g')
	}
	if m.Flags.IgnoreCase {
		b.WriteByte('i')
	}
	if m.Flags.Multiline {
		b.WriteByte('m')
	}
	return b.String()
}

func toMatch(m *regexp2.Match) *Match {
	groups := m.Groups()
	out := make([]Group, len(groups))
	for i, g := range groups {
		if len(g.Captures) == 0 {
			out[i] = Group{Present: false}
			continue
		}
		out[i] = Group{Text: g.String(), Present: true}
	}
	return &Match{Index: m.Index, Groups: out}
}
