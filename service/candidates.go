package service

import (
	"context"
	"regexp"
	"sort"
	"time"

	es2 "github.com/CharellKing/ela-move/pkg/es"
	"github.com/CharellKing/ela-move/utils"
	"github.com/samber/lo"
)

// Candidates lists the indices on a cluster matching the inclusion pattern,
// minus any matching the exclusion expression, lexicographically sorted.
// An unreachable cluster yields an empty set: at this layer that is
// indistinguishable from "no matches", and callers treat it as a no-op.
func Candidates(ctx context.Context, esInstance es2.ES, pattern string, exclude *regexp.Regexp) []string {
	indices, err := esInstance.GetIndexes(pattern)
	if err != nil {
		utils.GetRunLogger(ctx).Warnf("list indices for pattern %s: %+v", pattern, err)
		return nil
	}

	if exclude != nil {
		indices = lo.Filter(indices, func(index string, _ int) bool {
			return !exclude.MatchString(index)
		})
	}

	indices = lo.Uniq(indices)
	sort.Strings(indices)
	return indices
}

// DefaultExcludePattern matches indices stamped with the given processing
// date. Those still receive live writes and must not be locked or migrated.
func DefaultExcludePattern(now time.Time) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(now.Format("2006.01.02")) + "$")
}
