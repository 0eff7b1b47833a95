// Package datagen produces synthetic person names for demonstration runs.
// Generation is deterministic for a given non-zero seed.
package datagen

import (
	"github.com/brianvoe/gofakeit/v7"

	"shardring/internal/item"
)

// Generator draws names from a seeded faker. It is not safe for
// concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator seeded with seed. A zero seed draws from a
// random source.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Name returns one "First Last" name.
func (g *Generator) Name() string {
	return g.faker.Name()
}

// Names returns n names. Duplicates are possible.
func (g *Generator) Names(n int) []string {
	names := make([]string, 0, n)
	for range n {
		names = append(names, g.Name())
	}
	return names
}

// Items wraps each name as an item with a fresh identity. Equal names hash
// to the same position and stay distinct by identity.
func Items(names []string) []item.Item {
	items := make([]item.Item, 0, len(names))
	for _, name := range names {
		items = append(items, item.New([]byte(name)))
	}
	return items
}
