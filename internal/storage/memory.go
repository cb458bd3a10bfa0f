package storage

import (
	memorystore "seqprov/internal/infra/storage/memory"
)

// NewMemory returns an in-memory storage.Store suitable for tests.
func NewMemory() *memorystore.Store { return memorystore.New() }
