package service

import (
	"context"

	"github.com/CharellKing/ela-move/utils"
)

// Decision is the conflict resolver's verdict for an index that already
// exists on both clusters.
type Decision string

const (
	// DecisionAlreadyMigrated means counts match and are both known; a prior
	// run finished this index and it must not be reindexed again.
	DecisionAlreadyMigrated Decision = "already_migrated"

	// DecisionBlocked means the copies disagree (or a count could not be
	// observed) and overwriting is disabled; the index is skipped this run.
	DecisionBlocked Decision = "blocked"

	// DecisionOverwrite means the target copy is a stale partial and has been
	// deleted; the index goes through the full pipeline as if it were new.
	DecisionOverwrite Decision = "overwrite"
)

// resolveConflict decides what to do with an index present in both candidate
// sets. Counts on the descriptor must already be populated. A target copy is
// only ever deleted on an observed mismatch of two known counts: an unknown
// count blocks instead, since a broken connection must not trigger deletion.
func (m *Migrator) resolveConflict(ctx context.Context, desc *IndexDescriptor) (Decision, error) {
	logger := utils.GetRunLogger(ctx)

	if desc.SourceCount.Equals(desc.TargetCount) {
		logger.Infof("index %s already migrated (%s docs on both clusters)", desc.Name, desc.SourceCount)
		return DecisionAlreadyMigrated, nil
	}

	if !desc.SourceCount.IsKnown() || !desc.TargetCount.IsKnown() {
		logger.Warnf("index %s has unobservable counts (source %s, target %s), skipping",
			desc.Name, desc.SourceCount, desc.TargetCount)
		return DecisionBlocked, nil
	}

	if !m.OverwriteIfBroken {
		logger.Warnf("index %s exists on both clusters with mismatched counts (source %s, target %s) "+
			"and overwrite is disabled, skipping", desc.Name, desc.SourceCount, desc.TargetCount)
		return DecisionBlocked, nil
	}

	logger.Warnf("index %s has a broken target copy (source %s, target %s), deleting it for a clean re-copy",
		desc.Name, desc.SourceCount, desc.TargetCount)
	if err := m.TargetES.DeleteIndex(desc.Name); err != nil {
		return DecisionBlocked, err
	}
	return DecisionOverwrite, nil
}
