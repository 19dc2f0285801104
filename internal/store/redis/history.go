package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// AppendProbeCycle pushes one sample per node of the cycle onto that node's
// history list, newest first, capped and expiring.
func (s *Store) AppendProbeCycle(ctx context.Context, cycle *domain.ProbeCycle) error {
	if cycle == nil || len(cycle.Results) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for name, r := range cycle.Results {
		if r.Node == nil {
			continue
		}
		data, err := json.Marshal(domain.SampleOf(r, cycle.CompletedAt))
		if err != nil {
			return fmt.Errorf("failed to marshal sample for %s: %w", name, err)
		}
		key := HistoryKey(r.Node.HistoryID())
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.historyLen-1)
		pipe.Expire(ctx, key, s.historyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save probe history: %w", err)
	}
	return nil
}

// ProbeHistory returns up to limit samples for the node with history id, newest first.
func (s *Store) ProbeHistory(ctx context.Context, id string, limit int) ([]domain.ProbeSample, error) {
	if limit <= 0 || int64(limit) > s.historyLen {
		limit = int(s.historyLen)
	}
	raw, err := s.client.LRange(ctx, HistoryKey(id), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get probe history: %w", err)
	}
	return decodeSamples(raw), nil
}

// decodeSamples skips entries that no longer decode.
func decodeSamples(raw []string) []domain.ProbeSample {
	out := make([]domain.ProbeSample, 0, len(raw))
	for _, item := range raw {
		var sample domain.ProbeSample
		if err := json.Unmarshal([]byte(item), &sample); err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// HistoryIDs lists the history ids that currently have a history list.
func (s *Store) HistoryIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, KeyPrefixHistory+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := ExtractHistoryID(iter.Val())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan history keys: %w", err)
	}
	return ids, nil
}

// DeleteHistory removes one probe history.
func (s *Store) DeleteHistory(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, HistoryKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete history %s: %w", id, err)
	}
	return nil
}
