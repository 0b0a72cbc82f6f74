package app

import (
	"github.com/flightmesh/flightmesh/internal/adapters/normalize"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// ScoringFunc ranks a merged offer list for a query. Personalized ranking
// is explicitly out of scope; this seam exists so a real ranking service
// can be plugged in as a named collaborator without SearchService
// changing shape.
type ScoringFunc func(offers []domain.Offer, q domain.Query) []domain.RankedOffer

// PriceAscendingScoring is the default ScoringFunc: lower price (converted
// to the query currency) scores higher, ties broken by stop count. It
// keeps the core runnable standalone with no ranking service wired in.
func PriceAscendingScoring(offers []domain.Offer, q domain.Query) []domain.RankedOffer {
	if len(offers) == 0 {
		return nil
	}

	amounts := make([]float64, len(offers))
	maxPrice := 0.0
	for i, o := range offers {
		_, amt, err := o.LowestPrice(q.Currency, normalize.ConvertAmount)
		if err != nil {
			amt = 0
		}
		amounts[i] = amt
		if amt > maxPrice {
			maxPrice = amt
		}
	}

	out := make([]domain.RankedOffer, len(offers))
	for i, o := range offers {
		score := 1.0
		if maxPrice > 0 {
			score = 1 - (amounts[i] / maxPrice)
		}
		out[i] = domain.RankedOffer{Offer: o, Score: score}
	}
	return out
}
