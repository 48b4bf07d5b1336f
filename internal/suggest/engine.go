package suggest

import (
	"math/rand/v2"
	"sync"

	"github.com/andresmejia3/moodlens/internal/emotion"
)

// PayloadSize is how many entries a payload carries at most.
const PayloadSize = 2

// Payload is the render-ready suggestion set for one dominant emotion.
type Payload struct {
	Emotion emotion.Label `json:"emotion"`
	// Fallback is set when Emotion had no catalog entries and neutral was used.
	Fallback bool    `json:"fallback,omitempty"`
	Entries  []Entry `json:"entries"`
}

// Engine picks random catalog subsets. It is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	size    int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the random source, e.g. a seeded one in tests.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSize overrides PayloadSize.
func WithSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.size = n
		}
	}
}

// NewEngine returns an Engine over c with a non-seeded source unless overridden.
func NewEngine(c *Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: c, size: PayloadSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

// Catalog returns the catalog the engine draws from.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Suggest shuffles the entries for l (or neutral if l is absent) and returns the
// first PayloadSize of them. Short lists yield short payloads.
func (e *Engine) Suggest(l emotion.Label) Payload {
	list, fallback := e.catalog.Entries(l)

	e.mu.Lock()
	e.rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	e.mu.Unlock()

	if len(list) > e.size {
		list = list[:e.size]
	}
	return Payload{Emotion: l, Fallback: fallback, Entries: list}
}
