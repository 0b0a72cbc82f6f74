package history

// Raw SQL kept in its own file as constants, split between query text
// and the repo that runs it.

const upsertObservationSQL = `
INSERT INTO price_observations
  (query_key, fingerprint, source_id, amount, currency, observed_at)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  amount      = VALUES(amount),
  currency    = VALUES(currency),
  observed_at = VALUES(observed_at)
`

// priceHistorySQL matches on the origin:destination prefix of query_key
// (see domain.Query.QueryKey) rather than requiring an exact key, since
// prediction_data wants the full price curve for a route across every
// departure date and cabin that was ever searched, not one frozen query.
const priceHistorySQL = `
SELECT query_key, fingerprint, source_id, amount, currency, observed_at
FROM price_observations
WHERE query_key LIKE ?
  AND observed_at >= ?
  AND observed_at <= ?
ORDER BY observed_at ASC
`
