package operators

import "errors"

// phraseMatcher is an Aho-Corasick automaton over ASCII-folded phrases,
// backing @pm and @pmFromFile.
type phraseMatcher struct {
	nodes   []phraseNode
	phrases int
}

type phraseNode struct {
	next map[byte]int
	fail int
	// hit is a phrase ending at this state, possibly found via fail links
	hit string
}

func newPhraseMatcher(phrases []string) (*phraseMatcher, error) {
	m := &phraseMatcher{nodes: []phraseNode{{next: map[byte]int{}}}}
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		m.insert(phrase)
		m.phrases++
	}
	if m.phrases == 0 {
		return nil, errors.New("no non-empty phrases")
	}
	m.link()
	return m, nil
}

func (m *phraseMatcher) insert(phrase string) {
	state := 0
	for i := 0; i < len(phrase); i++ {
		b := foldByte(phrase[i])
		next, ok := m.nodes[state].next[b]
		if !ok {
			m.nodes = append(m.nodes, phraseNode{next: map[byte]int{}})
			next = len(m.nodes) - 1
			m.nodes[state].next[b] = next
		}
		state = next
	}
	if hit := m.nodes[state].hit; hit == "" || len(phrase) < len(hit) {
		m.nodes[state].hit = phrase
	}
}

// link computes failure transitions breadth first.
func (m *phraseMatcher) link() {
	queue := make([]int, 0, len(m.nodes))
	for _, child := range m.nodes[0].next {
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]
		for b, child := range m.nodes[state].next {
			fail := m.nodes[state].fail
			for fail != 0 {
				if _, ok := m.nodes[fail].next[b]; ok {
					break
				}
				fail = m.nodes[fail].fail
			}
			if target, ok := m.nodes[fail].next[b]; ok && target != child {
				m.nodes[child].fail = target
			}
			if m.nodes[child].hit == "" {
				m.nodes[child].hit = m.nodes[m.nodes[child].fail].hit
			}
			queue = append(queue, child)
		}
	}
}

func foldByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
