package fusion

// Preset bundles the source list and caps one search mode implies.
type Preset struct {
	// Sources are the adapter names this mode queries.
	Sources []string

	// MaxPerSource caps results requested from each source.
	MaxPerSource int

	// MaxTotal caps the fused result count.
	MaxTotal int

	// Rerank enables semantic reranking for this mode.
	Rerank bool
}

// DefaultPresets returns the built-in mode presets. Fast sticks to the
// cheapest sources with small caps; comprehensive queries everything,
// including paid and specialized sources, and implies reranking.
func DefaultPresets() map[Mode]Preset {
	return map[Mode]Preset{
		ModeFast: {
			Sources:      []string{"web", "ragindex"},
			MaxPerSource: 5,
			MaxTotal:     10,
		},
		ModeBalanced: {
			Sources:      []string{"web", "ragindex", "vector", "docstore"},
			MaxPerSource: 10,
			MaxTotal:     20,
		},
		ModeComprehensive: {
			Sources:      []string{"web", "ragindex", "vector", "docstore", "filings"},
			MaxPerSource: 20,
			MaxTotal:     50,
			Rerank:       true,
		},
	}
}
