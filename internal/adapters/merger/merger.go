// Package merger deduplicates and merges Offers collected from multiple
// adapters into a single canonical list, grounded on
// sky_scanner_crawler/pipeline/merger.py's merge_results: group by
// dedup key, keep the highest-trust source's metadata, union every
// source's prices for the same itinerary, and sort by converted price
// ascending.
package merger

import (
	"github.com/flightmesh/flightmesh/internal/adapters/normalize"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// Merge groups offers by domain.Offer.Fingerprint(), keeps the metadata of
// the highest-trust duplicate, and unions the Prices reported by every
// source for that itinerary -- no source's price or booking_url is ever
// discarded. The input slice is never mutated. Output order is
// deterministic: ascending price (converted to targetCurrency), fingerprint
// as a tiebreak, which also makes Merge commutative and idempotent under
// reordered/duplicated input.
func Merge(offers []domain.Offer, targetCurrency string) []domain.Offer {
	groups := make(map[string]domain.Offer, len(offers))
	order := make([]string, 0, len(offers))

	for _, o := range offers {
		key := o.Fingerprint()
		existing, ok := groups[key]
		if !ok {
			cp := o
			cp.Prices = append([]domain.Price{}, o.Prices...)
			groups[key] = cp
			order = append(order, key)
			continue
		}
		groups[key] = mergeOne(existing, o)
	}

	merged := make([]domain.Offer, 0, len(order))
	for _, key := range order {
		merged = append(merged, groups[key])
	}
	domain.SortOffersByPrice(merged, targetCurrency, normalize.ConvertAmount)
	return merged
}

// mergeOne folds b into a, keeping a's non-price metadata unless b's source
// is more trusted, and always keeping the union of both sides' Prices --
// grounded on merge_results' existing.prices.extend(flight.prices), which
// never drops a reporting source's price row.
func mergeOne(a, b domain.Offer) domain.Offer {
	prices := append(append([]domain.Price{}, a.Prices...), b.Prices...)

	winner := a
	if domain.TrustScore(b.Source) > domain.TrustScore(a.Source) {
		winner = b
	}

	winner.Prices = prices
	return winner
}

// DedupRatio reports the fraction of raw offers collapsed by merging, fed
// into the merge_dedup_ratio gauge.
func DedupRatio(rawCount, mergedCount int) float64 {
	if rawCount == 0 {
		return 0
	}
	return 1 - float64(mergedCount)/float64(rawCount)
}
