package suggest

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestSuggestDrawsFromEmotionList(t *testing.T) {
	c := DefaultCatalog()
	e := NewEngine(c)

	for _, l := range emotion.Labels {
		allowed, _ := c.Lookup(l)
		for i := 0; i < 50; i++ {
			p := e.Suggest(l)
			require.Len(t, p.Entries, PayloadSize)
			assert.Equal(t, l, p.Emotion)
			assert.False(t, p.Fallback)
			assert.NotEqual(t, p.Entries[0], p.Entries[1], "sampling must be without replacement")
			for _, entry := range p.Entries {
				assert.Contains(t, allowed, entry)
			}
		}
	}
}

func TestSuggestFallsBackToNeutral(t *testing.T) {
	c, err := NewCatalog(map[emotion.Label][]Entry{
		emotion.Happy: {{URL: "https://h.example"}},
		emotion.Neutral: {
			{URL: "https://n1.example"},
			{URL: "https://n2.example"},
			{URL: "https://n3.example"},
		},
	})
	require.NoError(t, err)
	neutral, _ := c.Lookup(emotion.Neutral)

	p := NewEngine(c).Suggest(emotion.Fearful)
	assert.True(t, p.Fallback)
	assert.Equal(t, emotion.Fearful, p.Emotion)
	require.Len(t, p.Entries, 2)
	for _, entry := range p.Entries {
		assert.Contains(t, neutral, entry)
	}
}

func TestSuggestShortList(t *testing.T) {
	c, err := NewCatalog(map[emotion.Label][]Entry{
		emotion.Happy:   {{URL: "https://only.example", Description: "Only"}},
		emotion.Neutral: {{URL: "https://n.example"}},
	})
	require.NoError(t, err)

	p := NewEngine(c).Suggest(emotion.Happy)
	assert.Equal(t, []Entry{{URL: "https://only.example", Description: "Only"}}, p.Entries)
}

func TestSuggestSeededIsDeterministic(t *testing.T) {
	c := DefaultCatalog()
	a := NewEngine(c, WithRand(seeded(42)))
	b := NewEngine(c, WithRand(seeded(42)))

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Suggest(emotion.Sad), b.Suggest(emotion.Sad))
	}
}

func TestSuggestCoversWholeList(t *testing.T) {
	// Every entry should be reachable; a biased shuffle would starve some.
	c := DefaultCatalog()
	e := NewEngine(c, WithRand(seeded(7)))
	sad, _ := c.Lookup(emotion.Sad)

	seen := make(map[Entry]int)
	for i := 0; i < 2000; i++ {
		for _, entry := range e.Suggest(emotion.Sad).Entries {
			seen[entry]++
		}
	}
	require.Len(t, seen, len(sad))
	for entry, n := range seen {
		// Expected 1000 picks each (2000 draws * 2 slots / 4 entries).
		assert.InDelta(t, 1000, n, 200, entry.URL)
	}
}

func TestSuggestDoesNotReorderCatalog(t *testing.T) {
	c := DefaultCatalog()
	before, _ := c.Lookup(emotion.Neutral)
	e := NewEngine(c, WithRand(seeded(1)))
	for i := 0; i < 10; i++ {
		e.Suggest(emotion.Neutral)
	}
	after, _ := c.Lookup(emotion.Neutral)
	assert.Equal(t, before, after)
}

func TestSuggestConcurrent(t *testing.T) {
	e := NewEngine(DefaultCatalog(), WithSize(3))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Len(t, e.Suggest(emotion.Angry).Entries, 3)
			}
		}()
	}
	wg.Wait()
}
