// Package placement assigns items to shards using a ring snapshot.
package placement
