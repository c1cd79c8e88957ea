package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// leafHandle is one open output file staged at a temp path.
type leafHandle struct {
	tmpPath   string
	finalPath string
	closer    io.Closer
}

// handleNode is a tagged variant: either a single open handle or a named
// set of sub-nodes (product → measurement nesting). Exactly one of leaf
// and children is set.
type handleNode struct {
	leaf     *leafHandle
	children map[string]*handleNode
}

// walkLeaves visits every leaf handle depth-first in sorted child order.
func (n *handleNode) walkLeaves(fn func(*leafHandle) error) error {
	if n == nil {
		return nil
	}
	if n.leaf != nil {
		return fn(n.leaf)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := n.children[name].walkLeaves(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fileSet is the per-driver-instance collection of open handles, keyed by
// output product name.
type fileSet struct {
	nodes map[string]*handleNode
}

func newFileSet() *fileSet { return &fileSet{nodes: map[string]*handleNode{}} }

func (s *fileSet) empty() bool { return len(s.nodes) == 0 }

// setLeaf registers a handle under product (and optionally measurement).
func (s *fileSet) setLeaf(product, measurement string, leaf *leafHandle) {
	if measurement == "" {
		s.nodes[product] = &handleNode{leaf: leaf}
		return
	}
	node, ok := s.nodes[product]
	if !ok || node.children == nil {
		node = &handleNode{children: map[string]*handleNode{}}
		s.nodes[product] = node
	}
	node.children[measurement] = &handleNode{leaf: leaf}
}

func (s *fileSet) walkLeaves(fn func(*leafHandle) error) error {
	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := s.nodes[name].walkLeaves(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// close closes every leaf exactly once and either renames temp files to
// their final paths (commit) or leaves them staged (discard). It returns
// the final paths that were, or would have been, finalized. Per-leaf
// failures are surfaced, not swallowed, so partial commits are visible.
func (s *fileSet) close(commit bool) (paths []string, err error) {
	var errs []error
	walkErr := s.walkLeaves(func(leaf *leafHandle) error {
		paths = append(paths, leaf.finalPath)
		if cerr := leaf.closer.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", leaf.tmpPath, cerr))
			return nil
		}
		if commit {
			if rerr := os.Rename(leaf.tmpPath, leaf.finalPath); rerr != nil {
				errs = append(errs, fmt.Errorf("commit %s: %w", leaf.finalPath, rerr))
			}
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	s.nodes = map[string]*handleNode{}
	return paths, errors.Join(errs...)
}

// tmpPaths lists the staged temp paths of every leaf.
func (s *fileSet) tmpPaths() []string {
	var out []string
	_ = s.walkLeaves(func(leaf *leafHandle) error {
		out = append(out, leaf.tmpPath)
		return nil
	})
	return out
}

// hasExtension reports whether path ends in one of the accepted
// extensions.
func hasExtension(path string, accepted []string) bool {
	for _, ext := range accepted {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
