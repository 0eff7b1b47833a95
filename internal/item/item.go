package item

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"shardring/internal/position"
)

// Item is a keyed payload placed on the ring. ID and Position are fixed at
// creation; only the owning shard changes as the ring grows.
type Item struct {
	ID       uuid.UUID
	Position position.Position
	Content  []byte
}

// New creates an item with a fresh random identity, positioned by hashing content.
func New(content []byte) Item {
	return NewWithID(uuid.New(), content)
}

// NewWithID creates an item with a caller-supplied identity.
func NewWithID(id uuid.UUID, content []byte) Item {
	return Item{
		ID:       id,
		Position: position.Hash(content),
		Content:  append([]byte(nil), content...),
	}
}

// Less orders items by position, then by identity. This is the order
// shard contents are enumerated in.
func Less(a, b Item) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Same reports whether a and b are the same item.
func (it Item) Same(other Item) bool {
	return it.ID == other.ID
}

func (it Item) String() string {
	return fmt.Sprintf("%s@%s(%q)", it.ID, it.Position, it.Content)
}
