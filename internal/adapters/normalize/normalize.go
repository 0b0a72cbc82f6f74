package normalize

import (
	"fmt"
	"time"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// Generic is the tolerant-lookup normalizer shared by every adapter
// variant. Registry (registry.go) maps each SourceKind to it, and For lets
// the app layer dispatch by RawOffer.Source without importing every
// adapter package.
func Generic(raw domain.RawOffer, q domain.Query) ([]domain.Offer, error) {
	payload, ok := raw.Payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalize: %s payload is not a map[string]any", raw.SourceID)
	}

	itineraries := firstSlice(payload, "itineraries", "legs", "offers", "slices")
	if len(itineraries) == 0 {
		// Some sources (tenant/reverse direct crawls) return one itinerary
		// per payload instead of a list.
		itineraries = []any{payload}
	}

	offers := make([]domain.Offer, 0, len(itineraries))
	for _, it := range itineraries {
		m := asMap(it)
		if m == nil {
			continue
		}
		offer, err := normalizeOne(m, payload, raw, q)
		if err != nil {
			continue
		}
		offers = append(offers, offer)
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("normalize: %s produced no usable offers", raw.SourceID)
	}
	return offers, nil
}

func normalizeOne(it, root map[string]any, raw domain.RawOffer, q domain.Query) (domain.Offer, error) {
	segRaw := firstSlice(it, "segments", "flights", "legs")
	if len(segRaw) == 0 {
		segRaw = []any{it}
	}

	segments := make([]domain.Segment, 0, len(segRaw))
	for _, s := range segRaw {
		sm := asMap(s)
		if sm == nil {
			continue
		}
		segments = append(segments, normalizeSegment(sm))
	}
	if len(segments) == 0 {
		return domain.Offer{}, fmt.Errorf("no segments")
	}

	amount, ok := firstFloatFlexible(it, priceAliases["amount"]...)
	if !ok {
		amount, ok = firstFloatFlexible(root, priceAliases["amount"]...)
	}
	if !ok {
		return domain.Offer{}, fmt.Errorf("no price")
	}
	currency := firstNonEmptyAlias(it, priceAliases, "currency")
	if currency == "" {
		currency = firstNonEmptyAlias(root, priceAliases, "currency")
	}
	if currency == "" {
		return domain.Offer{}, fmt.Errorf("normalize: %s offer has no usable price currency", raw.SourceID)
	}

	cabinRaw := firstNonEmptyAlias(it, cabinAliases, "cabin")
	if cabinRaw == "" {
		cabinRaw = firstNonEmptyAlias(root, cabinAliases, "cabin")
	}

	validatingCarrier := firstNonEmptyAlias(it, bookingAliases, "validating_carrier")
	if validatingCarrier == "" {
		validatingCarrier = segments[0].MarketingCarrier
	}

	fareClass := firstNonEmptyAlias(it, fareDetailAliases, "fare_class")
	if fareClass == "" {
		fareClass = firstNonEmptyAlias(root, fareDetailAliases, "fare_class")
	}

	price := domain.Price{
		SourceID:        raw.SourceID,
		TrustScore:      domain.TrustScore(raw.Source),
		Amount:          amount,
		Currency:        currency,
		IncludesBaggage: firstBoolFlexible(it, fareDetailAliases["includes_baggage"]...) || firstBoolFlexible(root, fareDetailAliases["includes_baggage"]...),
		IncludesMeal:    firstBoolFlexible(it, fareDetailAliases["includes_meal"]...) || firstBoolFlexible(root, fareDetailAliases["includes_meal"]...),
		FareClass:       fareClass,
		BookingURL:      firstNonEmptyAlias(it, bookingAliases, "url"),
		FetchedAt:       raw.FetchedAt,
	}

	return domain.Offer{
		Segments:          segments,
		Prices:            []domain.Price{price},
		ValidatingCarrier: validatingCarrier,
		Cabin:             domain.Cabin(cabinCode(cabinRaw)),
		Source:            raw.Source,
		SourceID:          raw.SourceID,
		FetchedAt:         raw.FetchedAt,
	}, nil
}

func normalizeSegment(sm map[string]any) domain.Segment {
	marketing := firstNonEmptyAlias(sm, carrierAliases, "marketing_carrier")
	operating := firstNonEmptyAlias(sm, carrierAliases, "operating_carrier")
	if operating == "" {
		operating = marketing
	}
	durationMin, _ := firstIntFlexible(sm, "duration_minutes", "durationMinutes")

	dep := parseTimeFlexible(sm, "departure_time", "departureTime", "departure.datetime", "dep_time")
	arr := parseTimeFlexible(sm, "arrival_time", "arrivalTime", "arrival.datetime", "arr_time")
	if durationMin == 0 && !dep.IsZero() && !arr.IsZero() {
		durationMin = int(arr.Sub(dep).Minutes())
	}

	return domain.Segment{
		FlightNumber:     firstNonEmptyAlias(sm, carrierAliases, "flight_number"),
		MarketingCarrier: marketing,
		OperatingCarrier: operating,
		Origin:           firstNonEmptyAlias(sm, carrierAliases, "origin"),
		Destination:      firstNonEmptyAlias(sm, carrierAliases, "destination"),
		DepartureTime:    dep,
		ArrivalTime:      arr,
		Aircraft:         firstNonEmptyAlias(sm, carrierAliases, "aircraft"),
		DurationMinutes:  durationMin,
	}
}

func parseTimeFlexible(m map[string]any, paths ...string) time.Time {
	for _, p := range paths {
		s := lookupStr(m, p)
		if s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
