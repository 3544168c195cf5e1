package services

import (
	"context"
	"fmt"
)

// BulkLookup fetches the records for the supplied ids in a single batched
// call, returning only those that exist.
type BulkLookup[T any, ID comparable] func(ctx context.Context, ids []ID) ([]T, error)

// BulkApply runs op against every requested id and tolerates per-item
// failures. The contract, shared by every entity exposing batch endpoints:
//
//   - ids are resolved with one batched lookup; ids the lookup does not
//     return are recorded as failures first, in input order, with the reason
//     "<entity> not found".
//   - found records are processed sequentially in the order the lookup
//     returned them. An op error records a failure for that item and the
//     batch continues.
//   - duplicate input ids are applied once per occurrence against the same
//     record. For destructive ops the second occurrence surfaces whatever
//     error op reports for the now-missing record.
//   - an empty id set yields a zero result and no error.
//
// Only the lookup itself can fail the whole call; a result with failures is
// a successful batch. Failure reasons are display strings, not values to
// branch on.
func BulkApply[T any, ID comparable](
	ctx context.Context,
	ids []ID,
	entity string,
	lookup BulkLookup[T, ID],
	identify func(T) ID,
	op func(ctx context.Context, record T) error,
) (BulkResult, error) {
	result := BulkResult{}
	if len(ids) == 0 {
		return result, nil
	}
	if lookup == nil || identify == nil || op == nil {
		return result, fmt.Errorf("bulk %s: lookup, identify, and op are required", entity)
	}

	seen := make(map[ID]struct{}, len(ids))
	unique := make([]ID, 0, len(ids))
	occurrences := make(map[ID]int, len(ids))
	for _, id := range ids {
		occurrences[id]++
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	records, err := lookup(ctx, unique)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk %s: lookup: %w", entity, err)
	}

	found := make(map[ID]struct{}, len(records))
	for _, record := range records {
		found[identify(record)] = struct{}{}
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			result.Failures = append(result.Failures, BulkFailure{
				ID:     fmt.Sprintf("%v", id),
				Reason: entity + " not found",
			})
		}
	}

	for _, record := range records {
		id := identify(record)
		for i := 0; i < occurrences[id]; i++ {
			if err := op(ctx, record); err != nil {
				result.Failures = append(result.Failures, BulkFailure{
					ID:     fmt.Sprintf("%v", id),
					Reason: err.Error(),
				})
				continue
			}
			result.Processed++
		}
	}

	return result, nil
}
