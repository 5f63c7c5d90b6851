package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/CharellKing/ela-move/config"
	es2 "github.com/CharellKing/ela-move/pkg/es"
	"github.com/CharellKing/ela-move/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Migrator relocates every candidate index from the source cluster to the
// target cluster, one index at a time, through the
// lock -> reindex -> verify -> finalize sequence. Verification by document
// count is the only authority for deleting source data; a failed index is
// left read-only on the source and reconsidered on the next run.
type Migrator struct {
	ctx context.Context

	SourceES es2.ES
	TargetES es2.ES

	IndexPattern string
	Exclude      *regexp.Regexp

	OverwriteIfBroken  bool
	CloseOnSuccess     bool
	AbortOnLockFailure bool

	RetryCount    uint
	RetryInterval time.Duration

	report *Report
}

func NewMigratorWithConfig(ctx context.Context, cfg *config.Config) (*Migrator, error) {
	if cfg.Migrate == nil {
		return nil, fmt.Errorf("no migrate section in config")
	}

	for _, esCfgName := range []string{cfg.Migrate.SourceES, cfg.Migrate.TargetES} {
		if cfg.ESConfigs[esCfgName] == nil {
			return nil, fmt.Errorf("es config not found: %s", esCfgName)
		}
	}

	srcES, err := es2.NewESV0(cfg.ESConfigs[cfg.Migrate.SourceES]).GetES()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dstES, err := es2.NewESV0(cfg.ESConfigs[cfg.Migrate.TargetES]).GetES()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return NewMigrator(ctx, srcES, dstES, cfg.Migrate)
}

func NewMigrator(ctx context.Context, srcES, dstES es2.ES, migrateCfg *config.MigrateCfg) (*Migrator, error) {
	if lo.IsNotEmpty(srcES) {
		ctx = utils.SetCtxKeySourceESVersion(ctx, srcES.GetClusterVersion())
	}

	if lo.IsNotEmpty(dstES) {
		ctx = utils.SetCtxKeyTargetESVersion(ctx, dstES.GetClusterVersion())
	}

	exclude := DefaultExcludePattern(time.Now())
	if migrateCfg.ExcludePattern != "" {
		var err error
		exclude, err = regexp.Compile(migrateCfg.ExcludePattern)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	retryCount := migrateCfg.RetryCount
	if retryCount == 0 {
		retryCount = config.DefaultRetryCount
	}

	retryInterval := migrateCfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = config.DefaultRetryInterval
	}

	return &Migrator{
		ctx:                ctx,
		SourceES:           srcES,
		TargetES:           dstES,
		IndexPattern:       migrateCfg.IndexPattern,
		Exclude:            exclude,
		OverwriteIfBroken:  migrateCfg.OverwriteIfBroken,
		CloseOnSuccess:     migrateCfg.CloseOnSuccess,
		AbortOnLockFailure: migrateCfg.AbortOnLockFailure,
		RetryCount:         retryCount,
		RetryInterval:      time.Duration(retryInterval) * time.Second,
		report:             NewReport(utils.GetCtxKeyRunID(ctx)),
	}, nil
}

func (m *Migrator) GetCtx() context.Context {
	return m.ctx
}

func (m *Migrator) Report() *Report {
	return m.report
}

// Run migrates every candidate in order. A failed index never stops the
// run; each candidate is processed independently.
func (m *Migrator) Run() (*Report, error) {
	logger := utils.GetRunLogger(m.ctx)

	sourceCandidates := Candidates(m.ctx, m.SourceES, m.IndexPattern, m.Exclude)
	if len(sourceCandidates) == 0 {
		logger.Infof("no candidate indices for pattern %s on the source cluster", m.IndexPattern)
		return m.report, nil
	}

	targetCandidates := Candidates(m.ctx, m.TargetES, m.IndexPattern, m.Exclude)
	logger.Infof("candidates: %d on source, %d on target", len(sourceCandidates), len(targetCandidates))

	var errs utils.Errs
	bar := utils.NewProgressBar(m.ctx, len(sourceCandidates))
	for _, name := range sourceCandidates {
		result := m.migrateIndex(name, lo.Contains(targetCandidates, name))
		m.report.Add(result)
		if result.Outcome == OutcomeFailed {
			errs.Add(fmt.Errorf("index %s: source %s, target %s: %s",
				result.Name, result.SourceCount, result.TargetCount, result.Error))
		}
		bar.Increment()
	}
	bar.Finish()

	logger.Infof("run finished: %s", m.report.Summary())
	if err := errs.Ret(); err != nil {
		logger.Errorf("failed indices: %+v", err)
	}
	return m.report, nil
}

// migrateIndex drives the state machine for one index through to a
// terminal state.
func (m *Migrator) migrateIndex(name string, existsOnTarget bool) *IndexResult {
	ctx := utils.SetCtxKeyIndex(m.ctx, name)
	logger := utils.GetRunLogger(ctx)

	desc := NewIndexDescriptor(name)

	// The target listing comes back empty when that cluster is unreachable,
	// so a missing entry there is not proof of absence. Ask the target
	// directly before treating the index as new; reindexing over an
	// unnoticed partial copy must never happen.
	if !existsOnTarget {
		existed, err := m.TargetES.IndexExisted(name)
		if err != nil {
			logger.Warnf("existence check for %s on target: %+v", name, err)
			existed = true
		}
		existsOnTarget = existed
	}

	if existsOnTarget {
		desc.SourceCount = m.countOf(ctx, m.SourceES, name)
		desc.TargetCount = m.countOf(ctx, m.TargetES, name)

		decision, err := m.resolveConflict(ctx, desc)
		if err != nil {
			desc.State = StateFailed
			logger.Errorf("delete broken target copy of %s: %+v", name, err)
			return newIndexResult(desc, OutcomeFailed, err)
		}
		_ = desc.Advance(StateConflictChecked)

		switch decision {
		case DecisionAlreadyMigrated:
			_ = desc.Advance(StateFinalized)
			return newIndexResult(desc, OutcomeAlreadyMigrated, nil)
		case DecisionBlocked:
			return newIndexResult(desc, OutcomeBlocked, nil)
		}
	} else {
		_ = desc.Advance(StateConflictChecked)
	}

	// Writes must stop before the copy starts; reindexing a writable index
	// can miss documents written behind the copy cursor.
	if err := m.SourceES.SetIndexReadOnly(ctx, name); err != nil {
		if m.AbortOnLockFailure {
			desc.State = StateFailed
			lockErr := utils.NewCustomError(utils.ReadOnlyLockRefused, "read-only lock refused for %s: %v", name, err)
			logger.Errorf("%+v", lockErr)
			return newIndexResult(desc, OutcomeFailed, lockErr)
		}
		logger.Warnf("read-only lock refused for %s, continuing anyway: %+v", name, err)
	}
	_ = desc.Advance(StateReadOnlyLocked)

	// The reindex response is advisory only: a failure here very likely
	// shows up as a count mismatch, and verification is the authority.
	remote := &es2.RemoteSource{
		Host:     m.SourceES.GetAddresses()[0],
		User:     m.SourceES.GetUser(),
		Password: m.SourceES.GetPassword(),
		Index:    name,
	}
	if err := m.TargetES.ReindexFrom(ctx, remote, name); err != nil {
		logger.Warnf("reindex of %s reported failure, verification will decide: %+v", name, err)
	}
	_ = desc.Advance(StateReindexed)

	if !m.verify(ctx, desc) {
		desc.State = StateFailed
		logger.Errorf("verification exhausted for %s: source %s, target %s; "+
			"source stays read-only for inspection", name, desc.SourceCount, desc.TargetCount)
		return newIndexResult(desc, OutcomeFailed,
			fmt.Errorf("counts did not converge after %d attempts", m.RetryCount))
	}
	_ = desc.Advance(StateVerified)

	if err := m.finalize(ctx, desc); err != nil {
		desc.State = StateFailed
		logger.Errorf("finalize %s: %+v", name, err)
		return newIndexResult(desc, OutcomeFailed, err)
	}
	_ = desc.Advance(StateFinalized)

	logger.Infof("index %s migrated, %s documents on both clusters", name, desc.SourceCount)
	return newIndexResult(desc, OutcomeMigrated, nil)
}

// countOf asks a cluster for an index's document count. Any transport
// failure or malformed reply is an unknown count, never zero.
func (m *Migrator) countOf(ctx context.Context, esInstance es2.ES, index string) es2.DocCount {
	value, err := esInstance.Count(ctx, index)
	if err != nil {
		utils.GetRunLogger(ctx).Warnf("count %s: %+v", index, err)
		return es2.UnknownCount()
	}
	return es2.KnownCount(value)
}

// verify flushes the target index so freshly copied documents become
// countable, then polls both counts until they converge or the retry
// attempts run out.
func (m *Migrator) verify(ctx context.Context, desc *IndexDescriptor) bool {
	logger := utils.GetRunLogger(ctx)

	if err := m.TargetES.Flush(ctx, desc.Name); err != nil {
		logger.Warnf("flush %s: %+v", desc.Name, err)
	}

	for attempt := uint(0); attempt < m.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(m.RetryInterval)
		}

		desc.SourceCount = m.countOf(ctx, m.SourceES, desc.Name)
		desc.TargetCount = m.countOf(ctx, m.TargetES, desc.Name)
		if desc.SourceCount.Equals(desc.TargetCount) {
			return true
		}

		logger.Infof("counts for %s not yet converged (attempt %d/%d): source %s, target %s",
			desc.Name, attempt+1, m.RetryCount, desc.SourceCount, desc.TargetCount)
	}
	return false
}

// finalize deletes the source index and optionally closes the target one.
// Deleting the source is irreversible; the guard re-checks the invariant
// even though Verified is only reachable through converged known counts.
func (m *Migrator) finalize(ctx context.Context, desc *IndexDescriptor) error {
	if !desc.SourceCount.Equals(desc.TargetCount) {
		return fmt.Errorf("refusing to delete source %s: source %s, target %s",
			desc.Name, desc.SourceCount, desc.TargetCount)
	}

	if err := m.SourceES.DeleteIndex(desc.Name); err != nil {
		return errors.WithStack(err)
	}

	if m.CloseOnSuccess {
		if err := m.TargetES.CloseIndex(ctx, desc.Name); err != nil {
			// The data is already safe on the target; keeping the index open
			// only costs cluster memory.
			utils.GetRunLogger(ctx).Warnf("close %s after migration: %+v", desc.Name, err)
		}
	}
	return nil
}
