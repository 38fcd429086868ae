package domain

// KeyPrefix namespaces every key facetdex writes to a shared store.
const KeyPrefix = "facetdex:"

// Engine limits shared across query shapes.
const (
	// ResultWindow is the backend's native from+size ceiling.
	ResultWindow = 10000
	// MaxPageSize is the hard cap on a single page.
	MaxPageSize = 10000
	// AggregationSize is the bucket cap for every terms aggregation.
	AggregationSize = 1000
	// CardinalityPrecision is the precision_threshold for distinct counts.
	CardinalityPrecision = 40000
	// DaysPerYear converts year-denominated age ranges into day offsets.
	DaysPerYear = 365
)
