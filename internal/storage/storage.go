// Package storage re-exports the core storage abstractions for stable
// imports by the annotation core. Concrete backends live under
// internal/infra/storage; everything else depends on the Store
// interface defined here.
package storage

import (
	"seqprov/internal/storage/core"
)

type (
	// Driver identifies a storage backend driver.
	Driver = core.Driver
	// Permission is an access level granted to a principal.
	Permission = core.Permission
	// AVU is a namespaced attribute-value unit attached to a node.
	AVU = core.AVU
	// AVUKey is the (namespace, attribute) upsert key of an AVU.
	AVUKey = core.AVUKey
	// AC is a (principal, permission) access grant.
	AC = core.AC
	// Info describes a node in the hierarchical namespace.
	Info = core.Info
	// Store is the interface for hierarchical storage backends.
	Store = core.Store
)

const (
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory

	// PermNull revokes a principal's access.
	PermNull = core.PermNull
	// PermRead grants read access.
	PermRead = core.PermRead
	// PermWrite grants write access.
	PermWrite = core.PermWrite
	// PermOwn grants ownership.
	PermOwn = core.PermOwn
)

// ErrNotFound indicates that no node exists at the requested path.
var ErrNotFound = core.ErrNotFound

// ErrUnavailable indicates a backend connectivity failure.
var ErrUnavailable = core.ErrUnavailable
