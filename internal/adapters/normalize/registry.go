package normalize

import "github.com/flightmesh/flightmesh/internal/domain"

// Registry maps a SourceKind to the Normalizer that understands its raw
// payload shape. Every adapter variant currently shares the same tolerant
// lookup logic (Generic); the registry exists so a future adapter with a
// genuinely different wire format (e.g. a real protobuf binary-metasearch
// decode) can register its own without touching the Merger.
var Registry = map[domain.SourceKind]domain.Normalizer{
	domain.SourceBinaryMeta: Generic,
	domain.SourceAggregator: Generic,
	domain.SourceTenant:     Generic,
	domain.SourceReverse:    Generic,
	domain.SourceGDS:        Generic,
	domain.SourceBrowser:    Generic,
	domain.SourceOfficial:   Generic,
}

// For returns the normalizer registered for kind, falling back to Generic
// if the source has no bespoke normalizer.
func For(kind domain.SourceKind) domain.Normalizer {
	if n, ok := Registry[kind]; ok {
		return n
	}
	return Generic
}
