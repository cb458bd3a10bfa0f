// Package memory implements an in-memory hierarchical storage Store for
// tests. Nodes, AVUs, and grants live in a mutex-guarded map; writes are
// upserts with the same keying as the production backends.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"seqprov/internal/storage/core"
)

type node struct {
	collection bool
	avus       map[core.AVUKey]string
	acl        map[string]core.Permission
}

// Store implements core.Store backed by process memory. Intended for tests.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New returns an empty in-memory store.
func New() *Store { return &Store{nodes: make(map[string]*node)} }

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// MkdirAll creates a collection at path together with any missing
// parents. It stands in for the ingest pipeline that creates run
// folders before annotation.
func (s *Store) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = clean(p)
	for p != "/" {
		if _, ok := s.nodes[p]; !ok {
			s.nodes[p] = &node{collection: true, avus: map[core.AVUKey]string{}, acl: map[string]core.Permission{}}
		}
		p = path.Dir(p)
	}
}

// PutObject creates a data object at path, creating parent collections
// as needed. Existing objects are left as they are.
func (s *Store) PutObject(p string) {
	p = clean(p)
	s.MkdirAll(path.Dir(p))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[p]; !ok {
		s.nodes[p] = &node{avus: map[core.AVUKey]string{}, acl: map[string]core.Permission{}}
	}
}

// Stat resolves a node by path.
func (s *Store) Stat(_ context.Context, p string) (core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p = clean(p)
	n, ok := s.nodes[p]
	if !ok {
		return core.Info{}, fmt.Errorf("stat %s: %w", p, core.ErrNotFound)
	}
	return core.Info{Path: p, Collection: n.collection}, nil
}

// Metadata returns the node's AVUs ordered by (namespace, attribute).
func (s *Store) Metadata(_ context.Context, p string) ([]core.AVU, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[clean(p)]
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", p, core.ErrNotFound)
	}
	out := make([]core.AVU, 0, len(n.avus))
	for k, v := range n.avus {
		out = append(out, core.AVU{Namespace: k.Namespace, Attr: k.Attr, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Attr < out[j].Attr
	})
	return out, nil
}

// UpsertMetadata writes AVUs keyed by (namespace, attribute).
func (s *Store) UpsertMetadata(_ context.Context, p string, avus ...core.AVU) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[clean(p)]
	if !ok {
		return fmt.Errorf("upsert metadata %s: %w", p, core.ErrNotFound)
	}
	for _, avu := range avus {
		n.avus[avu.Key()] = avu.Value
	}
	return nil
}

// ACL returns the node's grants ordered by principal.
func (s *Store) ACL(_ context.Context, p string) ([]core.AC, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[clean(p)]
	if !ok {
		return nil, fmt.Errorf("acl %s: %w", p, core.ErrNotFound)
	}
	out := make([]core.AC, 0, len(n.acl))
	for principal, perm := range n.acl {
		out = append(out, core.AC{Principal: principal, Perm: perm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

// UpsertPermissions writes grants keyed by principal, recursing over
// descendants when requested.
func (s *Store) UpsertPermissions(_ context.Context, p string, recurse bool, acs ...core.AC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = clean(p)
	n, ok := s.nodes[p]
	if !ok {
		return fmt.Errorf("upsert permissions %s: %w", p, core.ErrNotFound)
	}
	apply := func(n *node) {
		for _, ac := range acs {
			n.acl[ac.Principal] = ac.Perm
		}
	}
	apply(n)
	if !recurse {
		return nil
	}
	prefix := p + "/"
	for k, child := range s.nodes {
		if strings.HasPrefix(k, prefix) {
			apply(child)
		}
	}
	return nil
}

// List returns the immediate children of a collection ordered by path.
func (s *Store) List(_ context.Context, p string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p = clean(p)
	n, ok := s.nodes[p]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", p, core.ErrNotFound)
	}
	if !n.collection {
		return nil, fmt.Errorf("list %s: not a collection", p)
	}
	var out []core.Info
	for k, child := range s.nodes {
		if path.Dir(k) == p && k != p {
			out = append(out, core.Info{Path: k, Collection: child.collection})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func clean(p string) string {
	p = path.Clean("/" + strings.TrimPrefix(p, "/"))
	return p
}

// Compile-time contract assertion.
var _ core.Store = (*Store)(nil)
