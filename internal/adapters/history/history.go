package history

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// Store implements domain.HistoryStore by writing through to MySQL (the
// system of record) and then best-effort indexing the same row into
// OpenSearch: the relational store stays authoritative, and secondary-sink
// errors are logged rather than failing the write.
type Store struct {
	repo    *Repo
	indexer *Indexer
}

func NewStore(repo *Repo, indexer *Indexer) *Store {
	return &Store{repo: repo, indexer: indexer}
}

func (s *Store) RecordObservation(ctx context.Context, row domain.PriceHistoryRow) error {
	if err := s.repo.RecordObservation(ctx, row); err != nil {
		return err
	}
	if s.indexer == nil {
		return nil
	}
	if err := s.indexer.IndexObservation(ctx, row); err != nil {
		log.Warn().Err(err).Str("query_key", row.QueryKey).Msg("opensearch index failed, mysql write stands")
	}
	return nil
}

func (s *Store) PriceHistory(ctx context.Context, origin, dest string, from, to time.Time) ([]domain.PriceHistoryRow, error) {
	return s.repo.PriceHistory(ctx, origin, dest, from, to)
}
