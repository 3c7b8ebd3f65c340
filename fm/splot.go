package fm

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// sxfm is the XML envelope of a SPLOT feature model.
type sxfm struct {
	XMLName     xml.Name `xml:"feature_model"`
	Name        string   `xml:"name,attr"`
	Tree        string   `xml:"feature_tree"`
	Constraints string   `xml:"constraints"`
}

// Kinds of nodes in a feature tree.
const (
	kindRoot      = 'r'
	kindMandatory = 'm'
	kindOptional  = 'o'
	kindGroup     = 'g'
	kindGrouped   = ' '
)

// A node of the feature tree. Groups are nodes, too, but they are not features.
type node struct {
	kind     byte
	id       string
	indent   int
	feature  int // index of the feature, 0 for groups
	min, max int // cardinality, for groups only; max == -1 means '*'
	children []*node
	line     int
}

// ParseSPLOT parses a SPLOT (SXFM) feature model.
// Features are numbered in the order they appear in the feature tree.
// Feature identifiers, not their descriptive names, are used as feature names.
func ParseSPLOT(r io.Reader) (*Model, error) {
	var doc sxfm
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Msg: "invalid SXFM document", Err: err}
	}
	root, features, err := parseTree(doc.Tree)
	if err != nil {
		return nil, err
	}
	m := New(strings.TrimSpace(doc.Name), features, nil)
	clauses := [][]int{{root.feature}}
	clauses = treeClauses(root, clauses)
	constrs, err := parseConstraints(doc.Constraints, m)
	if err != nil {
		return nil, err
	}
	m.Clauses = append(clauses, constrs...)
	return m, nil
}

// parseTree parses the indented feature tree.
func parseTree(tree string) (root *node, features []string, err error) {
	var stack []*node
	seen := make(map[string]bool)
	for i, line := range strings.Split(tree, "\n") {
		lineNb := i + 1
		trimmed := strings.TrimLeft(line, " \t")
		trimmed = strings.TrimRight(trimmed, " \t\r")
		if trimmed == "" {
			continue
		}
		n, err := parseNode(trimmed, lineNb)
		if err != nil {
			return nil, nil, err
		}
		n.indent = len(line) - len(strings.TrimLeft(line, " \t"))
		for len(stack) > 0 && stack[len(stack)-1].indent >= n.indent {
			stack = stack[:len(stack)-1]
		}
		if n.kind == kindRoot {
			if root != nil {
				return nil, nil, parseErrorf(lineNb, "several roots in feature tree")
			}
			root = n
		} else {
			if len(stack) == 0 {
				return nil, nil, parseErrorf(lineNb, "feature %q has no parent", n.id)
			}
			parent := stack[len(stack)-1]
			if (parent.kind == kindGroup) != (n.kind == kindGrouped) {
				return nil, nil, parseErrorf(lineNb, "node %q is not allowed under %q", n.id, parent.id)
			}
			parent.children = append(parent.children, n)
		}
		if n.kind != kindGroup {
			if seen[n.id] {
				return nil, nil, parseErrorf(lineNb, "duplicate feature %q", n.id)
			}
			seen[n.id] = true
			features = append(features, n.id)
			n.feature = len(features)
		}
		stack = append(stack, n)
	}
	if root == nil {
		return nil, nil, parseErrorf(0, "no root in feature tree")
	}
	return root, features, nil
}

// parseNode parses a line such as ":m name (id)", ":g (id) [1,*]" or ": name (id)".
func parseNode(line string, lineNb int) (*node, error) {
	if len(line) < 2 || line[0] != ':' {
		return nil, parseErrorf(lineNb, "invalid feature tree line %q", line)
	}
	n := &node{kind: line[1], line: lineNb}
	rest := strings.TrimSpace(line[2:])
	switch n.kind {
	case kindRoot, kindMandatory, kindOptional, kindGrouped:
	case kindGroup:
		open := strings.LastIndexByte(rest, '[')
		closing := strings.LastIndexByte(rest, ']')
		if open < 0 || closing < open {
			return nil, parseErrorf(lineNb, "missing cardinality in group %q", line)
		}
		bounds := strings.Split(rest[open+1:closing], ",")
		if len(bounds) != 2 {
			return nil, parseErrorf(lineNb, "invalid cardinality in group %q", line)
		}
		var err error
		if n.min, err = strconv.Atoi(strings.TrimSpace(bounds[0])); err != nil || n.min < 0 {
			return nil, parseErrorf(lineNb, "invalid min cardinality in group %q", line)
		}
		if hi := strings.TrimSpace(bounds[1]); hi == "*" {
			n.max = -1
		} else if n.max, err = strconv.Atoi(hi); err != nil || n.max < n.min {
			return nil, parseErrorf(lineNb, "invalid max cardinality in group %q", line)
		}
		rest = strings.TrimSpace(rest[:open])
	default:
		return nil, parseErrorf(lineNb, "unknown node kind %q", n.kind)
	}
	if open := strings.LastIndexByte(rest, '('); open >= 0 && strings.HasSuffix(rest, ")") {
		n.id = strings.TrimSpace(rest[open+1 : len(rest)-1])
		if name := strings.TrimSpace(rest[:open]); n.id == "" {
			n.id = name
		}
	} else {
		n.id = rest
	}
	if n.id == "" && n.kind != kindGroup {
		return nil, parseErrorf(lineNb, "feature without identifier in %q", line)
	}
	return n, nil
}

// treeClauses appends to clauses the CNF translation of the subtree rooted at n.
func treeClauses(n *node, clauses [][]int) [][]int {
	for _, child := range n.children {
		switch child.kind {
		case kindMandatory:
			clauses = append(clauses, []int{-child.feature, n.feature}, []int{-n.feature, child.feature})
		case kindOptional:
			clauses = append(clauses, []int{-child.feature, n.feature})
		case kindGroup:
			clauses = groupClauses(n.feature, child, clauses)
			for _, grouped := range child.children {
				clauses = treeClauses(grouped, clauses)
			}
			continue
		}
		clauses = treeClauses(child, clauses)
	}
	return clauses
}

// groupClauses translates a group of features under parent with cardinality [min, max].
// At least min features among k are selected iff every subset of k-min+1 features holds a selected one.
// At most max features are selected iff every subset of max+1 features holds a deselected one.
func groupClauses(parent int, group *node, clauses [][]int) [][]int {
	k := len(group.children)
	members := make([]int, k)
	for i, child := range group.children {
		members[i] = child.feature
		clauses = append(clauses, []int{-child.feature, parent})
	}
	lo, hi := group.min, group.max
	if hi < 0 || hi > k {
		hi = k
	}
	if lo > k {
		// Unsatisfiable group: the parent cannot be selected.
		return append(clauses, []int{-parent})
	}
	if lo > 0 {
		subsets(members, k-lo+1, func(sub []int) {
			clause := append([]int{-parent}, sub...)
			clauses = append(clauses, clause)
		})
	}
	if hi < k {
		subsets(members, hi+1, func(sub []int) {
			clause := make([]int, len(sub))
			for i, f := range sub {
				clause[i] = -f
			}
			clauses = append(clauses, clause)
		})
	}
	return clauses
}

// subsets calls fn on every subset of size n of vals.
// The slice given to fn is a fresh copy.
func subsets(vals []int, n int, fn func([]int)) {
	if n <= 0 || n > len(vals) {
		return
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for {
		sub := make([]int, n)
		for i, j := range idx {
			sub[i] = vals[j]
		}
		fn(sub)
		i := n - 1
		for i >= 0 && idx[i] == len(vals)-n+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < n; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// parseConstraints parses cross-tree constraints such as "c1: ~a or b".
func parseConstraints(text string, m *Model) ([][]int, error) {
	var res [][]int
	for i, line := range strings.Split(text, "\n") {
		lineNb := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if colon := strings.IndexByte(line, ':'); colon >= 0 {
			line = strings.TrimSpace(line[colon+1:])
		}
		var clause []int
		for _, tok := range strings.Split(line, " or ") {
			tok = strings.TrimSpace(tok)
			neg := strings.HasPrefix(tok, "~")
			id := strings.TrimSpace(strings.TrimPrefix(tok, "~"))
			f, ok := m.Index(id)
			if !ok {
				return nil, parseErrorf(lineNb, "constraint %q references unknown feature %q", line, id)
			}
			if neg {
				f = -f
			}
			clause = append(clause, f)
		}
		res = append(res, clause)
	}
	return res, nil
}
