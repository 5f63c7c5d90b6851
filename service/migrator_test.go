package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/CharellKing/ela-move/config"
	es2 "github.com/CharellKing/ela-move/pkg/es"
)

type opsLog struct {
	entries []string
}

func (l *opsLog) add(cluster, op, index string) {
	l.entries = append(l.entries, fmt.Sprintf("%s.%s:%s", cluster, op, index))
}

func (l *opsLog) indexOf(entry string) int {
	for i, e := range l.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

func (l *opsLog) count(prefix string) int {
	n := 0
	for _, e := range l.entries {
		if strings.HasPrefix(e, prefix) {
			n += 1
		}
	}
	return n
}

// fakeCluster implements es.ES in memory. Reindex copies the count from
// copyFrom, short by copyShortfall documents to simulate a partial copy.
type fakeCluster struct {
	name    string
	indices map[string]uint64

	countErr  map[string]bool
	listErr   bool
	lockErr   bool
	existsErr bool

	copyFrom      *fakeCluster
	copyShortfall uint64

	ops *opsLog
}

func newFakeCluster(name string, ops *opsLog) *fakeCluster {
	return &fakeCluster{
		name:     name,
		indices:  make(map[string]uint64),
		countErr: make(map[string]bool),
		ops:      ops,
	}
}

func (f *fakeCluster) GetClusterVersion() string {
	return "7.10.2"
}

func (f *fakeCluster) GetIndexes(pattern string) ([]string, error) {
	f.ops.add(f.name, "list", pattern)
	if f.listErr {
		return nil, fmt.Errorf("cluster unreachable")
	}

	var indices []string
	for index := range f.indices {
		indices = append(indices, index)
	}
	sort.Strings(indices)
	return indices, nil
}

func (f *fakeCluster) IndexExisted(index string) (bool, error) {
	f.ops.add(f.name, "exists", index)
	if f.existsErr {
		return false, fmt.Errorf("cluster unreachable")
	}
	_, ok := f.indices[index]
	return ok, nil
}

func (f *fakeCluster) Count(ctx context.Context, index string) (uint64, error) {
	f.ops.add(f.name, "count", index)
	if f.countErr[index] {
		return 0, fmt.Errorf("count unavailable for %s", index)
	}
	value, ok := f.indices[index]
	if !ok {
		return 0, fmt.Errorf("no such index %s", index)
	}
	return value, nil
}

func (f *fakeCluster) SetIndexReadOnly(ctx context.Context, index string) error {
	f.ops.add(f.name, "lock", index)
	if f.lockErr {
		return fmt.Errorf("lock refused for %s", index)
	}
	return nil
}

func (f *fakeCluster) ReindexFrom(ctx context.Context, remote *es2.RemoteSource, index string) error {
	f.ops.add(f.name, "reindex", index)
	if f.copyFrom != nil {
		if value, ok := f.copyFrom.indices[remote.Index]; ok {
			if f.copyShortfall > 0 && value >= f.copyShortfall {
				value -= f.copyShortfall
			}
			f.indices[index] = value
		}
	}
	return nil
}

func (f *fakeCluster) Flush(ctx context.Context, index string) error {
	f.ops.add(f.name, "flush", index)
	return nil
}

func (f *fakeCluster) DeleteIndex(index string) error {
	f.ops.add(f.name, "delete", index)
	delete(f.indices, index)
	return nil
}

func (f *fakeCluster) CloseIndex(ctx context.Context, index string) error {
	f.ops.add(f.name, "close", index)
	return nil
}

func (f *fakeCluster) GetAddresses() []string {
	return []string{"http://" + f.name + ":9200"}
}

func (f *fakeCluster) GetUser() string {
	return "elastic"
}

func (f *fakeCluster) GetPassword() string {
	return "changeme"
}

func newTestMigrator(t *testing.T, src, dst *fakeCluster, migrateCfg *config.MigrateCfg) *Migrator {
	t.Helper()

	if migrateCfg.IndexPattern == "" {
		migrateCfg.IndexPattern = "wazuh-alerts-*"
	}

	m, err := NewMigrator(context.Background(), src, dst, migrateCfg)
	if err != nil {
		t.Fatalf("create migrator: %+v", err)
	}
	m.RetryInterval = time.Millisecond
	return m
}

func TestMigrateFreshIndex(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.01"] = 1000
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{CloseOnSuccess: true})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, ok := report.Get("wazuh-alerts-4.x-2024.01.01")
	if !ok {
		t.Fatalf("no result recorded")
	}
	if result.Outcome != OutcomeMigrated {
		t.Errorf("outcome: %s", result.Outcome)
	}
	if result.State != StateFinalized {
		t.Errorf("state: %s", result.State)
	}
	if result.SourceCount != "1000" || result.TargetCount != "1000" {
		t.Errorf("counts: source %s, target %s", result.SourceCount, result.TargetCount)
	}

	if _, ok := src.indices["wazuh-alerts-4.x-2024.01.01"]; ok {
		t.Errorf("source index should have been deleted")
	}
	if dst.indices["wazuh-alerts-4.x-2024.01.01"] != 1000 {
		t.Errorf("target index should hold the full copy")
	}

	lockAt := ops.indexOf("source.lock:wazuh-alerts-4.x-2024.01.01")
	reindexAt := ops.indexOf("target.reindex:wazuh-alerts-4.x-2024.01.01")
	flushAt := ops.indexOf("target.flush:wazuh-alerts-4.x-2024.01.01")
	deleteAt := ops.indexOf("source.delete:wazuh-alerts-4.x-2024.01.01")
	closeAt := ops.indexOf("target.close:wazuh-alerts-4.x-2024.01.01")

	if lockAt < 0 || reindexAt < 0 || flushAt < 0 || deleteAt < 0 || closeAt < 0 {
		t.Fatalf("missing pipeline step, ops: %v", ops.entries)
	}
	if !(lockAt < reindexAt && reindexAt < flushAt && flushAt < deleteAt && deleteAt < closeAt) {
		t.Errorf("pipeline out of order: %v", ops.entries)
	}
}

func TestAlreadyMigratedIsIdempotent(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.02"] = 500
	dst.indices["wazuh-alerts-4.x-2024.01.02"] = 500

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.02")
	if result.Outcome != OutcomeAlreadyMigrated {
		t.Errorf("outcome: %s", result.Outcome)
	}

	if n := ops.count("target.reindex"); n != 0 {
		t.Errorf("reindex calls: %d", n)
	}
	if n := ops.count("source.delete") + ops.count("target.delete"); n != 0 {
		t.Errorf("delete calls: %d", n)
	}
	if src.indices["wazuh-alerts-4.x-2024.01.02"] != 500 {
		t.Errorf("source index must be untouched")
	}
}

func TestOverwriteDisabledBlocksMismatch(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.03"] = 700
	dst.indices["wazuh-alerts-4.x-2024.01.03"] = 650

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{OverwriteIfBroken: false})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.03")
	if result.Outcome != OutcomeBlocked {
		t.Errorf("outcome: %s", result.Outcome)
	}

	if dst.indices["wazuh-alerts-4.x-2024.01.03"] != 650 {
		t.Errorf("target index must be untouched when overwrite is disabled")
	}
	if n := ops.count("target.reindex"); n != 0 {
		t.Errorf("reindex calls: %d", n)
	}
	if n := ops.count("target.delete"); n != 0 {
		t.Errorf("target delete calls: %d", n)
	}
}

func TestOverwriteEnabledRecopiesFromScratch(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.03"] = 700
	dst.indices["wazuh-alerts-4.x-2024.01.03"] = 650
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{OverwriteIfBroken: true})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.03")
	if result.Outcome != OutcomeMigrated {
		t.Errorf("outcome: %s", result.Outcome)
	}

	deleteAt := ops.indexOf("target.delete:wazuh-alerts-4.x-2024.01.03")
	reindexAt := ops.indexOf("target.reindex:wazuh-alerts-4.x-2024.01.03")
	if deleteAt < 0 || reindexAt < 0 || deleteAt > reindexAt {
		t.Errorf("broken target copy must be deleted before the re-copy: %v", ops.entries)
	}

	if dst.indices["wazuh-alerts-4.x-2024.01.03"] != 700 {
		t.Errorf("target count after re-copy: %d", dst.indices["wazuh-alerts-4.x-2024.01.03"])
	}
	if _, ok := src.indices["wazuh-alerts-4.x-2024.01.03"]; ok {
		t.Errorf("source index should have been deleted after verification")
	}
}

func TestUnknownTargetCountBlocksConflict(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.04"] = 300
	dst.indices["wazuh-alerts-4.x-2024.01.04"] = 300
	dst.countErr["wazuh-alerts-4.x-2024.01.04"] = true

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{OverwriteIfBroken: true})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.04")
	if result.Outcome != OutcomeBlocked {
		t.Errorf("outcome: %s", result.Outcome)
	}
	if result.TargetCount != "unknown" {
		t.Errorf("target count: %s", result.TargetCount)
	}

	if n := ops.count("target.delete"); n != 0 {
		t.Errorf("an unobservable count must never trigger deletion, ops: %v", ops.entries)
	}
}

func TestUnknownCountNeverDeletesSource(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.05"] = 100
	dst.copyFrom = src
	dst.countErr["wazuh-alerts-4.x-2024.01.05"] = true

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{RetryCount: 2})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.05")
	if result.Outcome != OutcomeFailed {
		t.Errorf("outcome: %s", result.Outcome)
	}
	if result.State != StateFailed {
		t.Errorf("state: %s", result.State)
	}

	if n := ops.count("source.delete"); n != 0 {
		t.Errorf("source must never be deleted on unknown counts")
	}
	if src.indices["wazuh-alerts-4.x-2024.01.05"] != 100 {
		t.Errorf("source index must survive a failed verification")
	}
}

func TestVerificationExhaustionIsBounded(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.06"] = 700
	dst.copyFrom = src
	dst.copyShortfall = 10

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{RetryCount: 6})
	m.RetryInterval = 10 * time.Millisecond

	started := time.Now()
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}
	elapsed := time.Since(started)

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.06")
	if result.Outcome != OutcomeFailed {
		t.Errorf("outcome: %s", result.Outcome)
	}
	if result.SourceCount != "700" || result.TargetCount != "690" {
		t.Errorf("discrepancy not reported: source %s, target %s", result.SourceCount, result.TargetCount)
	}

	if n := ops.count("source.count"); n != 6 {
		t.Errorf("source count comparisons: %d, want 6", n)
	}
	if n := ops.count("target.count"); n != 6 {
		t.Errorf("target count comparisons: %d, want 6", n)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("attempts not separated by the retry interval, elapsed %s", elapsed)
	}

	if n := ops.count("source.delete"); n != 0 {
		t.Errorf("no deletion on verification failure")
	}
	if n := ops.count("source.lock"); n != 1 {
		t.Errorf("source must have been locked before the copy")
	}
}

func TestVerificationHaltsOnConvergence(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.07"] = 250
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{RetryCount: 6})
	if _, err := m.Run(); err != nil {
		t.Fatalf("run: %+v", err)
	}

	if n := ops.count("source.count"); n != 1 {
		t.Errorf("verification must halt the instant counts match, comparisons: %d", n)
	}
}

func TestLockFailureBehavior(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.08"] = 50
	src.lockErr = true
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.08")
	if result.Outcome != OutcomeMigrated {
		t.Errorf("lenient mode should proceed past a lock failure, outcome: %s", result.Outcome)
	}

	ops2 := &opsLog{}
	src2 := newFakeCluster("source", ops2)
	dst2 := newFakeCluster("target", ops2)
	src2.indices["wazuh-alerts-4.x-2024.01.08"] = 50
	src2.lockErr = true
	dst2.copyFrom = src2

	m2 := newTestMigrator(t, src2, dst2, &config.MigrateCfg{AbortOnLockFailure: true})
	report2, err := m2.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result2, _ := report2.Get("wazuh-alerts-4.x-2024.01.08")
	if result2.Outcome != OutcomeFailed {
		t.Errorf("strict mode should abort on a lock failure, outcome: %s", result2.Outcome)
	}
	if n := ops2.count("target.reindex"); n != 0 {
		t.Errorf("no reindex after an aborted lock")
	}
	if src2.indices["wazuh-alerts-4.x-2024.01.08"] != 50 {
		t.Errorf("source index must be untouched")
	}
}

func TestRunContinuesAfterIndexFailure(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.01"] = 10
	src.indices["wazuh-alerts-4.x-2024.01.02"] = 20
	src.countErr["wazuh-alerts-4.x-2024.01.01"] = true
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{RetryCount: 2})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	first, _ := report.Get("wazuh-alerts-4.x-2024.01.01")
	if first.Outcome != OutcomeFailed {
		t.Errorf("first index outcome: %s", first.Outcome)
	}

	second, _ := report.Get("wazuh-alerts-4.x-2024.01.02")
	if second == nil || second.Outcome != OutcomeMigrated {
		t.Errorf("one index's failure must not block the remaining candidates")
	}

	if !report.HasFailures() {
		t.Errorf("report should flag the failed index")
	}
}

func TestNewMigratorWithConfigRejectsUnknownCluster(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{
		ESConfigs: map[string]*config.ESConfig{},
		Migrate: &config.MigrateCfg{
			SourceES: "no-such-cluster",
			TargetES: "no-such-cluster-either",
		},
	}
	if _, err := NewMigratorWithConfig(ctx, cfg); err == nil {
		t.Fatalf("an unknown source cluster name must be rejected")
	}

	cfg.ESConfigs["src"] = &config.ESConfig{Addresses: []string{"http://127.0.0.1:9200"}}
	cfg.Migrate.SourceES = "src"
	if _, err := NewMigratorWithConfig(ctx, cfg); err == nil {
		t.Fatalf("an unknown target cluster name must be rejected")
	}
}

func TestCloseOnSuccessDisabledLeavesTargetOpen(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.09"] = 400
	dst.copyFrom = src

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{CloseOnSuccess: false})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.09")
	if result.Outcome != OutcomeMigrated {
		t.Fatalf("outcome: %s", result.Outcome)
	}
	if n := ops.count("target.close"); n != 0 {
		t.Errorf("target must stay open when close_on_success is off, ops: %v", ops.entries)
	}
}

func TestUnlistedTargetCopyIsStillDetected(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.10"] = 700
	dst.indices["wazuh-alerts-4.x-2024.01.10"] = 650
	dst.listErr = true

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.10")
	if result.Outcome != OutcomeBlocked {
		t.Errorf("a partial copy hidden by a failed listing must block, outcome: %s", result.Outcome)
	}
	if n := ops.count("target.exists"); n != 1 {
		t.Errorf("target existence checks: %d", n)
	}
	if n := ops.count("target.reindex"); n != 0 {
		t.Errorf("no reindex over an existing copy, ops: %v", ops.entries)
	}
	if dst.indices["wazuh-alerts-4.x-2024.01.10"] != 650 {
		t.Errorf("target copy must be untouched")
	}
}

func TestExistenceCheckFailureBlocksIndex(t *testing.T) {
	ops := &opsLog{}
	src := newFakeCluster("source", ops)
	dst := newFakeCluster("target", ops)

	src.indices["wazuh-alerts-4.x-2024.01.11"] = 80
	dst.listErr = true
	dst.existsErr = true

	m := newTestMigrator(t, src, dst, &config.MigrateCfg{})
	report, err := m.Run()
	if err != nil {
		t.Fatalf("run: %+v", err)
	}

	result, _ := report.Get("wazuh-alerts-4.x-2024.01.11")
	if result.Outcome != OutcomeBlocked {
		t.Errorf("an unreachable target must block, outcome: %s", result.Outcome)
	}
	if n := ops.count("target.reindex"); n != 0 {
		t.Errorf("no reindex against an unreachable target, ops: %v", ops.entries)
	}
}
