// Package core defines the hierarchical storage abstractions shared by
// all storage backends: path-addressed collections and data objects
// carrying AVU metadata and access-control grants.
package core

import (
	"context"
	"errors"
	"fmt"
)

// Driver identifies a concrete storage backend implementation.
type Driver string

const (
	DriverS3     Driver = "s3"     // S3 / MinIO compatible namespace
	DriverMemory Driver = "memory" // in-memory (tests)
)

// Permission is an access level granted to a principal on a node and,
// when applied recursively, on its descendants.
type Permission string

const (
	// PermNull revokes access for the principal. Applied when a
	// sample's consent has been withdrawn.
	PermNull  Permission = "null"
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermOwn   Permission = "own"
)

// AVU is an attribute-value unit attached to a node, optionally
// namespaced. The (Namespace, Attr) pair is the upsert key: writing an
// AVU replaces any prior value for the same pair and leaves other
// attributes untouched.
type AVU struct {
	Namespace string `json:"namespace,omitempty"`
	Attr      string `json:"attr"`
	Value     string `json:"value"`
}

func (a AVU) String() string {
	if a.Namespace == "" {
		return fmt.Sprintf("%s=%s", a.Attr, a.Value)
	}
	return fmt.Sprintf("%s:%s=%s", a.Namespace, a.Attr, a.Value)
}

// Key returns the upsert key for the AVU.
func (a AVU) Key() AVUKey { return AVUKey{Namespace: a.Namespace, Attr: a.Attr} }

// AVUKey is the (namespace, attribute) pair that identifies an AVU slot.
type AVUKey struct {
	Namespace string
	Attr      string
}

// AC is an access-control grant. The Principal is the upsert key: a
// grant replaces any prior grant for the same principal rather than
// widening it.
type AC struct {
	Principal string     `json:"principal"`
	Perm      Permission `json:"perm"`
}

func (a AC) String() string { return fmt.Sprintf("%s#%s", a.Principal, a.Perm) }

// Info describes a node in the hierarchical namespace.
type Info struct {
	// Path is the absolute node path, "/"-separated.
	Path string `json:"path"`
	// Collection is true for directory-like nodes, false for data objects.
	Collection bool `json:"collection"`
}

// Store is the capability interface over a hierarchical storage
// namespace. All write operations are idempotent upserts; nothing is
// ever deleted through this interface.
type Store interface {
	// Stat resolves path to a node. Returns ErrNotFound when no node
	// exists at the path.
	Stat(ctx context.Context, path string) (Info, error)
	// Metadata returns the AVUs attached to the node, ordered by
	// (namespace, attribute).
	Metadata(ctx context.Context, path string) ([]AVU, error)
	// UpsertMetadata writes AVUs onto the node keyed by (namespace,
	// attribute). Attributes not mentioned are left untouched.
	UpsertMetadata(ctx context.Context, path string, avus ...AVU) error
	// ACL returns the grants on the node, ordered by principal.
	ACL(ctx context.Context, path string) ([]AC, error)
	// UpsertPermissions writes grants onto the node keyed by principal.
	// With recurse set, the grants are also applied to every descendant
	// node already stored beneath the path.
	UpsertPermissions(ctx context.Context, path string, recurse bool, acs ...AC) error
	// List returns the immediate children of a collection, ordered by path.
	List(ctx context.Context, path string) ([]Info, error)
	// Driver returns the configured backend driver identifier.
	Driver() Driver
}

// ErrNotFound indicates that no node exists at the requested path.
var ErrNotFound = errors.New("storage: node not found")

// ErrUnavailable indicates a connectivity failure talking to the
// backend. Callers surface it without retrying; retry policy belongs to
// upstream schedulers.
var ErrUnavailable = errors.New("storage: unavailable")
