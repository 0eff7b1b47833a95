// Package item defines the unit of data distributed across shards.
package item
