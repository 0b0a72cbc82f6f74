package domain

import (
	"fmt"
	"testing"
	"time"
)

func sameCurrency(amount float64, from, to string) (float64, error) {
	if from != to {
		return 0, fmt.Errorf("sameCurrency fake only supports %s", to)
	}
	return amount, nil
}

func sampleOffer(price float64) Offer {
	dep := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	return Offer{
		Segments: []Segment{
			{MarketingCarrier: "BA", FlightNumber: "BA117", Origin: "JFK", Destination: "LHR", DepartureTime: dep},
		},
		Prices: []Price{{SourceID: "kiwi", Amount: price, Currency: "USD"}},
		Cabin:  CabinEconomy,
		Source: SourceAggregator,
	}
}

func TestFingerprint_StableRegardlessOfPrice(t *testing.T) {
	a := sampleOffer(500)
	b := sampleOffer(612.50)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprint must ignore price: %q vs %q", a.Fingerprint(), b.Fingerprint())
	}
}

func TestFingerprint_DiffersOnFlightNumber(t *testing.T) {
	a := sampleOffer(500)
	b := sampleOffer(500)
	b.Segments[0].FlightNumber = "BA118"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected different fingerprints for different flight numbers")
	}
}

func TestFingerprint_DiffersOnCabin(t *testing.T) {
	a := sampleOffer(500)
	b := sampleOffer(500)
	b.Cabin = CabinBusiness
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected ECONOMY and BUSINESS instances of the same flight to have distinct fingerprints")
	}
}

func TestTrustScore_OrderingMatchesMerger(t *testing.T) {
	if TrustScore(SourceBinaryMeta) <= TrustScore(SourceAggregator) {
		t.Fatal("binary-metasearch must outrank aggregator")
	}
	if TrustScore(SourceAggregator) <= TrustScore(SourceGDS) {
		t.Fatal("aggregator must outrank GDS")
	}
	if TrustScore(SourceBrowser) >= TrustScore(SourceTenant) {
		t.Fatal("browser scrape must be the lowest-trust source")
	}
}

func TestOffer_LowestPrice_PicksSmallestConvertedAmount(t *testing.T) {
	o := sampleOffer(900)
	o.Prices = append(o.Prices, Price{SourceID: "amadeus", Amount: 650, Currency: "USD"})
	_, amt, err := o.LowestPrice("USD", sameCurrency)
	if err != nil {
		t.Fatalf("LowestPrice: %v", err)
	}
	if amt != 650 {
		t.Fatalf("expected lowest amount 650, got %v", amt)
	}
}

func TestOffer_LowestPrice_TieBreaksOnTrustScoreThenFetchedAt(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	o := Offer{
		Prices: []Price{
			{SourceID: "kiwi", Amount: 500, Currency: "USD", TrustScore: 10, FetchedAt: later},
			{SourceID: "amadeus", Amount: 500, Currency: "USD", TrustScore: 20, FetchedAt: earlier},
		},
	}
	best, _, err := o.LowestPrice("USD", sameCurrency)
	if err != nil {
		t.Fatalf("LowestPrice: %v", err)
	}
	if best.SourceID != "amadeus" {
		t.Fatalf("expected higher-trust source to win the tie, got %q", best.SourceID)
	}
}

func TestSortOffersByPrice(t *testing.T) {
	offers := []Offer{sampleOffer(900), sampleOffer(400), sampleOffer(650)}
	SortOffersByPrice(offers, "USD", sameCurrency)
	if offers[0].Prices[0].Amount != 400 || offers[2].Prices[0].Amount != 900 {
		t.Fatalf("offers not sorted ascending: %+v", offers)
	}
}

func TestSortOffersByPrice_TiesBreakOnFingerprint(t *testing.T) {
	a := sampleOffer(500)
	b := sampleOffer(500)
	b.Segments[0].FlightNumber = "BA999"

	forward := []Offer{a, b}
	backward := []Offer{b, a}
	SortOffersByPrice(forward, "USD", sameCurrency)
	SortOffersByPrice(backward, "USD", sameCurrency)

	if forward[0].Fingerprint() != backward[0].Fingerprint() || forward[1].Fingerprint() != backward[1].Fingerprint() {
		t.Fatalf("equal-amount offers with distinct fingerprints sorted differently depending on input order: %+v vs %+v", forward, backward)
	}
	if forward[0].Fingerprint() >= forward[1].Fingerprint() {
		t.Fatalf("expected ascending fingerprint tiebreak, got %+v", forward)
	}
}

func TestStopCount(t *testing.T) {
	o := sampleOffer(500)
	if o.StopCount() != 0 {
		t.Fatalf("expected nonstop, got %d stops", o.StopCount())
	}
	o.Segments = append(o.Segments, Segment{MarketingCarrier: "BA", FlightNumber: "BA1"})
	if o.StopCount() != 1 {
		t.Fatalf("expected 1 stop, got %d", o.StopCount())
	}
}
