// Package stringsearch finds many literal patterns in one pass over a text
// with an Aho-Corasick automaton.
package stringsearch

import "strings"

// Matcher is an immutable multi-pattern matcher, safe for concurrent use
type Matcher struct {
	patterns []string
	fold     bool
	nodes    []node
}

type node struct {
	next map[byte]int
	fail int
	// out lists the patterns ending here, including those reached by failure links
	out []int
}

// Option configures a Matcher
type Option func(*Matcher)

// IgnoreCase matches ASCII letters case-insensitively
func IgnoreCase() Option {
	return func(m *Matcher) { m.fold = true }
}

// New builds a matcher for patterns. Empty patterns are ignored.
func New(patterns []string, opts ...Option) *Matcher {
	m := &Matcher{nodes: []node{{next: map[byte]int{}}}}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.insert(m.normalize(p), len(m.patterns))
		m.patterns = append(m.patterns, p)
	}
	m.link()
	return m
}

func (m *Matcher) normalize(s string) string {
	if m.fold {
		return strings.ToLower(s)
	}
	return s
}

func (m *Matcher) insert(p string, idx int) {
	cur := 0
	for i := 0; i < len(p); i++ {
		nxt, ok := m.nodes[cur].next[p[i]]
		if !ok {
			m.nodes = append(m.nodes, node{next: map[byte]int{}})
			nxt = len(m.nodes) - 1
			m.nodes[cur].next[p[i]] = nxt
		}
		cur = nxt
	}
	m.nodes[cur].out = append(m.nodes[cur].out, idx)
}

// link computes failure links breadth first
func (m *Matcher) link() {
	queue := make([]int, 0, len(m.nodes))
	for _, child := range m.nodes[0].next {
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for c, child := range m.nodes[cur].next {
			f := m.nodes[cur].fail
			for f != 0 {
				if _, ok := m.nodes[f].next[c]; ok {
					break
				}
				f = m.nodes[f].fail
			}
			if nxt, ok := m.nodes[f].next[c]; ok && nxt != child {
				f = nxt
			}
			m.nodes[child].fail = f
			m.nodes[child].out = append(m.nodes[child].out, m.nodes[f].out...)
			queue = append(queue, child)
		}
	}
}

func (m *Matcher) step(state int, c byte) int {
	for {
		if nxt, ok := m.nodes[state].next[c]; ok {
			return nxt
		}
		if state == 0 {
			return 0
		}
		state = m.nodes[state].fail
	}
}

// Match returns the indices of the patterns occurring in text, in pattern order
func (m *Matcher) Match(text string) []int {
	text = m.normalize(text)
	seen := make([]bool, len(m.patterns))
	state := 0
	for i := 0; i < len(text); i++ {
		state = m.step(state, text[i])
		for _, idx := range m.nodes[state].out {
			seen[idx] = true
		}
	}
	var out []int
	for idx, ok := range seen {
		if ok {
			out = append(out, idx)
		}
	}
	return out
}

// FindAll returns the patterns occurring in text
func (m *Matcher) FindAll(text string) []string {
	var out []string
	for _, idx := range m.Match(text) {
		out = append(out, m.patterns[idx])
	}
	return out
}

// Contains reports whether any pattern occurs in text
func (m *Matcher) Contains(text string) bool {
	text = m.normalize(text)
	state := 0
	for i := 0; i < len(text); i++ {
		state = m.step(state, text[i])
		if len(m.nodes[state].out) > 0 {
			return true
		}
	}
	return false
}

// Patterns returns the non-empty patterns
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
