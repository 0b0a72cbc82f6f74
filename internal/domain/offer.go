package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// SourceKind identifies which adapter family produced a RawOffer.
type SourceKind string

const (
	SourceBinaryMeta SourceKind = "BINARY_META"  // Google-Flights-style protobuf metasearch
	SourceAggregator SourceKind = "AGGREGATOR"    // Kiwi/Skyscanner-style JSON API aggregator
	SourceTenant     SourceKind = "TENANT"        // multi-tenant direct-airline crawl (client.py per airline)
	SourceReverse    SourceKind = "REVERSE"       // reverse-engineered internal airline API
	SourceGDS        SourceKind = "GDS"           // Amadeus/Sabre-style GDS
	SourceBrowser    SourceKind = "BROWSER"       // headless-browser crawl, last resort
	SourceOfficial   SourceKind = "OFFICIAL_API"  // published partner/official airline API
)

// trustOrder mirrors pipeline/merger.py's _TRUST_ORDER: higher wins metadata
// ties during merge.
var trustOrder = map[SourceKind]int{
	SourceBinaryMeta: 40,
	SourceOfficial:   35,
	SourceAggregator: 30,
	SourceGDS:        20,
	SourceReverse:    15,
	SourceTenant:     12,
	SourceBrowser:    10,
}

// TrustScore returns the merge tie-break weight for a source kind.
func TrustScore(k SourceKind) int {
	return trustOrder[k]
}

// Segment is one flown leg of an itinerary.
type Segment struct {
	FlightNumber       string
	MarketingCarrier   string
	OperatingCarrier   string
	Origin             string
	Destination        string
	DepartureTime      time.Time
	ArrivalTime        time.Time
	Aircraft           string
	DurationMinutes    int
}

// Price is one source's priced quote for an Offer's itinerary: the
// original amount/currency that source reported, plus the fare metadata
// and provenance needed to rank and display it. Never rewritten in
// place -- a merge unions the Prices of every source that reported the
// same itinerary rather than collapsing them into one.
type Price struct {
	SourceID        string
	TrustScore      int
	Amount          float64
	Currency        string
	IncludesBaggage bool
	IncludesMeal    bool
	FareClass       string
	BookingURL      string
	FetchedAt       time.Time
}

// RawOffer is what an Adapter emits before normalization.
type RawOffer struct {
	Source   SourceKind
	SourceID string // e.g. "kiwi", "google_flights", "turkish_airlines"
	Payload  any    // adapter-native shape, consumed only by the matching Normalizer
	FetchedAt time.Time
}

// Offer is a normalized, mergeable itinerary quote. Prices is non-empty:
// one entry per source that has reported this itinerary. Source/SourceID
// identify whichever source's non-price metadata (segments, carrier,
// cabin) currently wins the fingerprint group -- the highest-trust
// reporter, per merger.Merge.
type Offer struct {
	Segments          []Segment
	Prices            []Price
	ValidatingCarrier string
	Cabin             Cabin
	Source            SourceKind
	SourceID          string
	FetchedAt         time.Time
}

// Fingerprint is the deduplication key: carriers + flight numbers +
// departure times (minute-truncated) across all segments, plus cabin,
// independent of price or source. Two instances of the same flight in
// different cabins must never collapse into one Offer.
func (o Offer) Fingerprint() string {
	h := sha1.New()
	for _, s := range o.Segments {
		fmt.Fprintf(h, "%s|%s|%s|%s|%d|",
			s.MarketingCarrier, s.FlightNumber, s.Origin, s.Destination,
			s.DepartureTime.Truncate(time.Minute).Unix())
	}
	fmt.Fprintf(h, "%s", o.Cabin)
	return hex.EncodeToString(h.Sum(nil))
}

// StopCount is the number of connections (segments - 1, floored at 0).
func (o Offer) StopCount() int {
	if len(o.Segments) == 0 {
		return 0
	}
	return len(o.Segments) - 1
}

// CurrencyConverter converts amount from currency `from` into `to` at a
// stamped rate. Returns an error if either currency has no rate on file.
type CurrencyConverter func(amount float64, from, to string) (float64, error)

// LowestPrice picks the Prices entry whose amount, once converted into
// targetCurrency, is smallest -- without mutating the original Price
// rows, so each source's own reported amount/currency survives. Ties
// prefer the higher TrustScore, then the earlier FetchedAt.
func (o Offer) LowestPrice(targetCurrency string, convert CurrencyConverter) (Price, float64, error) {
	var best Price
	var bestAmt float64
	haveBest := false

	for _, p := range o.Prices {
		amt, err := convert(p.Amount, p.Currency, targetCurrency)
		if err != nil {
			continue
		}
		switch {
		case !haveBest:
			best, bestAmt, haveBest = p, amt, true
		case amt < bestAmt:
			best, bestAmt = p, amt
		case amt == bestAmt && tieBreakBetter(p, best):
			best, bestAmt = p, amt
		}
	}
	if !haveBest {
		return Price{}, 0, fmt.Errorf("domain: no price on offer convertible to %s", targetCurrency)
	}
	return best, bestAmt, nil
}

func tieBreakBetter(candidate, current Price) bool {
	if candidate.TrustScore != current.TrustScore {
		return candidate.TrustScore > current.TrustScore
	}
	return candidate.FetchedAt.Before(current.FetchedAt)
}

// SortOffersByPrice sorts in place, ascending by lowest converted price
// in targetCurrency, tiebreak by fingerprint for determinism.
func SortOffersByPrice(offers []Offer, targetCurrency string, convert CurrencyConverter) {
	sort.SliceStable(offers, func(i, j int) bool {
		fpI, fpJ := offers[i].Fingerprint(), offers[j].Fingerprint()
		_, ai, _ := offers[i].LowestPrice(targetCurrency, convert)
		_, aj, _ := offers[j].LowestPrice(targetCurrency, convert)
		if ai != aj {
			return ai < aj
		}
		return fpI < fpJ
	})
}
