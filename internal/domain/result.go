package domain

import "time"

// SearchResult is the merged, ranked response returned to callers.
type SearchResult struct {
	Query       Query
	Offers      []Offer
	CacheState  CacheState
	Partial     bool           // true if one or more sources failed or were skipped
	SourceMix   map[string]int // source_id -> offer count contributed
	GeneratedAt time.Time
}

// PriceHistoryRow is one persisted price observation, written by the
// background refresh pipeline for later prediction/analytics use.
type PriceHistoryRow struct {
	QueryKey    string
	Fingerprint string
	Price       Price
	ObservedAt  time.Time
	SourceID    string
}

// RankedOffer pairs an Offer with a pluggable score, produced by a
// ScoringFunc.
type RankedOffer struct {
	Offer Offer
	Score float64
}
