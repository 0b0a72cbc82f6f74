package router

import (
	"testing"

	"github.com/flightmesh/flightmesh/internal/domain"
)

func TestRoute_UsesCoverageTableMatch(t *testing.T) {
	q := domain.Query{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy}
	plans := Route(q, nil)
	if len(plans) == 0 {
		t.Fatal("expected at least one route plan")
	}
	if plans[0].AdapterID != "google_flights" && plans[0].AdapterID != "kiwi" {
		t.Fatalf("expected a primary-tier adapter first, got %+v", plans[0])
	}
}

func TestRoute_FallsBackToDefaultOutsideCoverageTable(t *testing.T) {
	q := domain.Query{Origin: "GRU", Destination: "EZE", Cabin: domain.CabinFirst}
	plans := Route(q, nil)
	if len(plans) == 0 {
		t.Fatal("expected default plan to apply")
	}
}

func TestRoute_DropsOpenCircuitAdapters(t *testing.T) {
	q := domain.Query{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy}
	health := []domain.SourceHealth{
		{SourceID: "google_flights", State: domain.CircuitOpen},
		{SourceID: "kiwi", State: domain.CircuitOpen},
	}
	plans := Route(q, health)
	for _, p := range plans {
		if p.AdapterID == "google_flights" || p.AdapterID == "kiwi" {
			t.Fatalf("expected open-circuit adapters dropped, found %+v", p)
		}
	}
}

func TestRoute_FallsBackToBrowserWhenAllPrimaryOpen(t *testing.T) {
	q := domain.Query{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy}
	health := []domain.SourceHealth{
		{SourceID: "google_flights", State: domain.CircuitOpen},
		{SourceID: "kiwi", State: domain.CircuitOpen},
		{SourceID: "tenant_pool", State: domain.CircuitOpen},
		{SourceID: "amadeus", State: domain.CircuitOpen},
	}
	plans := Route(q, health)
	if len(plans) != 1 || plans[0].AdapterID != "browser_pool" {
		t.Fatalf("expected browser_pool as sole last-resort plan, got %+v", plans)
	}
}

func TestRoute_DemotesLowSuccessRateToFallbackTier(t *testing.T) {
	q := domain.Query{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy}
	health := []domain.SourceHealth{
		{SourceID: "google_flights", State: domain.CircuitClosed, WindowRequests: 20, WindowSuccesses: 5},
	}
	plans := Route(q, health)

	var demoted, other RoutePlan
	for _, p := range plans {
		if p.AdapterID == "google_flights" {
			demoted = p
		} else if p.AdapterID == "kiwi" {
			other = p
		}
	}
	if demoted.Tier != TierFallback {
		t.Fatalf("expected google_flights demoted to fallback tier, got %+v", demoted)
	}
	if other.Tier >= demoted.Tier {
		t.Fatalf("expected the healthy adapter to still rank ahead of the demoted one: %+v vs %+v", other, demoted)
	}
}

func TestRoute_LowSampleCountNotDemoted(t *testing.T) {
	q := domain.Query{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy}
	health := []domain.SourceHealth{
		{SourceID: "google_flights", State: domain.CircuitClosed, WindowRequests: 3, WindowSuccesses: 0},
	}
	plans := Route(q, health)
	for _, p := range plans {
		if p.AdapterID == "google_flights" && p.Tier == TierFallback {
			t.Fatal("expected too few samples to demote the adapter")
		}
	}
}

func TestRoute_OrdersByTier(t *testing.T) {
	q := domain.Query{Origin: "EU", Destination: "ME"}
	_ = q
	plans := Route(domain.Query{Origin: "LHR", Destination: "DXB", Cabin: domain.CabinBusiness}, nil)
	for i := 1; i < len(plans); i++ {
		if plans[i-1].Tier > plans[i].Tier {
			t.Fatalf("plans not ordered by tier: %+v", plans)
		}
	}
}
