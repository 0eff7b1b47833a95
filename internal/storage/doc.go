// Package storage provides the per-shard item sets. Each shard owns its set
// exclusively and guards it with its own read/write lock; contents are
// enumerated in ring order (by item position).
package storage
