package matcher

import (
	"fmt"
	"strings"
)

type (
	Matchable interface {
		URI() string
		Namespaces() []string
	}

	Matcher struct {
		Nodes       []*Node
		Matchables  []Matchable
		methodIndex map[string]int
		templates   [][]Segment
	}

	Node struct {
		Matched         []int
		ExactChildren   []*Node
		WildcardMatcher *Node
		GreedyMatcher   *Node
		urlIndex        map[string]int
		positionIndex   map[int]bool
	}

	// Match is a resolved Matchable with the path parameters it captured.
	Match struct {
		Matchable Matchable
		Params    map[string]string
	}
)

func NewNode() *Node {
	return &Node{
		urlIndex:      map[string]int{},
		positionIndex: map[int]bool{},
	}
}

func (n *Node) Add(routeIndex int, segments []Segment) {
	if len(segments) == 0 {
		if !n.positionIndex[routeIndex] {
			n.Matched = append(n.Matched, routeIndex)
			n.positionIndex[routeIndex] = true
		}
		return
	}

	var child *Node
	switch segment := segments[0]; segment.Kind {
	case Param:
		child = n.getWildcardMatcher()
	case Greedy:
		child = n.getGreedyMatcher()
	default:
		child = n.getChildOrCreate(segment.Value)
	}

	child.Add(routeIndex, segments[1:])
}

func (n *Node) getChildOrCreate(segment string) *Node {
	if childIndex, ok := n.urlIndex[segment]; ok {
		return n.ExactChildren[childIndex]
	}

	n.urlIndex[segment] = len(n.ExactChildren)
	child := NewNode()
	n.ExactChildren = append(n.ExactChildren, child)
	return child
}

func (n *Node) getWildcardMatcher() *Node {
	if n.WildcardMatcher == nil {
		n.WildcardMatcher = NewNode()
	}
	return n.WildcardMatcher
}

func (n *Node) getGreedyMatcher() *Node {
	if n.GreedyMatcher == nil {
		n.GreedyMatcher = NewNode()
	}
	return n.GreedyMatcher
}

// Match walks the trie preferring exact segments, then {param}, then {name+}.
// A dead end on a more specific branch falls back to the next one.
func (n *Node) Match(segments []string) *Node {
	if len(segments) == 0 {
		if len(n.Matched) > 0 {
			return n
		}
		return nil
	}

	segment := segments[0]
	if childIndex, ok := n.urlIndex[segment]; ok {
		if matched := n.ExactChildren[childIndex].Match(segments[1:]); matched != nil {
			return matched
		}
	}

	if n.WildcardMatcher != nil && segment != "" {
		if matched := n.WildcardMatcher.Match(segments[1:]); matched != nil {
			return matched
		}
	}

	if n.GreedyMatcher != nil && len(n.GreedyMatcher.Matched) > 0 && strings.Join(segments, "") != "" {
		return n.GreedyMatcher
	}

	return nil
}

func NewMatcher(matchables []Matchable) (*Matcher, error) {
	m := &Matcher{
		methodIndex: map[string]int{},
		Matchables:  matchables,
		templates:   make([][]Segment, len(matchables)),
	}

	for i, matchable := range matchables {
		template, err := ParseTemplate(matchable.URI())
		if err != nil {
			return nil, err
		}

		m.templates[i] = template
		for _, namespace := range matchable.Namespaces() {
			m.getOrCreateNode(namespace).Add(i, template)
		}
	}

	return m, nil
}

func (m *Matcher) getOrCreateNode(namespace string) *Node {
	index, ok := m.methodIndex[namespace]
	if !ok {
		index = len(m.Nodes)
		m.methodIndex[namespace] = index
		m.Nodes = append(m.Nodes, NewNode())
	}

	return m.Nodes[index]
}

// MatchOne resolves uri within the first namespace that has a route for it.
func (m *Matcher) MatchOne(uri string, namespaces ...string) (*Match, error) {
	segments := Split(uri)
	for _, namespace := range namespaces {
		index, ok := m.methodIndex[namespace]
		if !ok {
			continue
		}

		node := m.Nodes[index].Match(segments)
		if node == nil {
			continue
		}

		if len(node.Matched) > 1 {
			return nil, fmt.Errorf("matched more than one route for %v %v", namespace, uri)
		}

		routeIndex := node.Matched[0]
		return &Match{
			Matchable: m.Matchables[routeIndex],
			Params:    extractParams(m.templates[routeIndex], segments),
		}, nil
	}

	return nil, fmt.Errorf("not found route for %v", uri)
}

func extractParams(template []Segment, segments []string) map[string]string {
	params := map[string]string{}
	for i, segment := range template {
		switch segment.Kind {
		case Param:
			params[segment.Value] = segments[i]
		case Greedy:
			params[segment.Value] = strings.Join(segments[i:], "/")
		}
	}

	return params
}
