package pipeline

// silver.go - the Silver validation stage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// ruleOutcome pairs one rule's check result with the rows it found in
// violation, in dataset order.
type ruleOutcome struct {
	result    *core.CheckResult
	violating []int
}

// runSilver evaluates the domain's rules against the Bronze dataset.
// Schema rules go first over every row; rows they flag are excluded
// from all later evaluation. Constraint and business rules then run
// over the eligible rows, in parallel, with results merged back in
// rule order so the persisted sequence is deterministic. The returned
// slice holds the indexes of rows with no blocking violation.
func (e *Engine) runSilver(ctx context.Context, source *core.DataSource, run *core.PipelineRun, ds *core.Dataset, opts RunOptions) ([]int, error) {
	if err := ctx.Err(); err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, err
	}

	if err := e.applyLayer(run, core.LayerUpdate{RunID: run.ID, Layer: core.LayerSilver, Status: core.LayerRunning}, opts); err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, fmt.Errorf("failed to start silver layer: %w", err)
	}

	pinned, err := e.pinRules(source.Domain)
	if err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, err
	}

	var schemaRules, rowRules []core.QualityRule
	for _, r := range pinned {
		if r.CheckType == core.CheckSchema {
			schemaRules = append(schemaRules, r)
		} else {
			rowRules = append(rowRules, r)
		}
	}

	// Phase 1: schema rules over the full dataset. Their violations
	// always block, whatever severity the definition declares.
	var (
		outcomes []ruleOutcome
		excluded = make(map[int]struct{})
		blocked  = make(map[int]struct{})
	)
	for _, rule := range schemaRules {
		oc, err := e.evalRule(ctx, rule, ds, nil, run.ID)
		if err != nil {
			e.failLayer(run, core.LayerSilver, opts)
			return nil, err
		}
		for _, i := range oc.violating {
			excluded[i] = struct{}{}
			blocked[i] = struct{}{}
		}
		outcomes = append(outcomes, oc)
		e.emitRuleTick(run.ID, rule.Key, len(outcomes), len(pinned), opts)
	}

	eligible := make([]int, 0, ds.Len())
	for i := range ds.Rows {
		if _, bad := excluded[i]; !bad {
			eligible = append(eligible, i)
		}
	}

	// Phase 2: constraint and business rules over the eligible rows.
	// Each rule writes into its own slot, so the merge below preserves
	// registry order no matter how the goroutines interleave.
	slots := make([]ruleOutcome, len(rowRules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := range rowRules {
		g.Go(func() error {
			oc, err := e.evalRule(gctx, rowRules[i], ds, eligible, run.ID)
			if err != nil {
				return err
			}
			slots[i] = oc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, err
	}

	for i := range slots {
		for _, ri := range slots[i].violating {
			blocked[ri] = struct{}{}
		}
		outcomes = append(outcomes, slots[i])
		e.emitRuleTick(run.ID, slots[i].result.RuleKey, len(outcomes), len(pinned), opts)
	}

	results := make([]*core.CheckResult, len(outcomes))
	for i, oc := range outcomes {
		results[i] = oc.result
	}
	if err := e.store.SaveCheckResults(results); err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, fmt.Errorf("failed to save check results: %w", err)
	}

	update := core.LayerUpdate{
		RunID:         run.ID,
		Layer:         core.LayerSilver,
		Status:        core.LayerCompleted,
		ChecksApplied: intPtr(len(results)),
	}
	if err := e.applyLayer(run, update, opts); err != nil {
		e.failLayer(run, core.LayerSilver, opts)
		return nil, fmt.Errorf("failed to record silver completion: %w", err)
	}

	passed := make([]int, 0, ds.Len())
	for i := range ds.Rows {
		if _, bad := blocked[i]; !bad {
			passed = append(passed, i)
		}
	}

	e.logger.Debug("silver layer completed",
		"run_id", run.ID,
		"checks", len(results),
		"passed", len(passed),
		"excluded", len(excluded))
	return passed, nil
}

func (e *Engine) emitRuleTick(runID, ruleKey string, done, total int, opts RunOptions) {
	opts.emit(ProgressEvent{
		RunID:      runID,
		Layer:      core.LayerSilver,
		Status:     core.LayerRunning,
		RuleKey:    ruleKey,
		RulesDone:  done,
		RulesTotal: total,
	})
}

// pinRules persists the current revision of every rule that applies to
// the domain, so check results reference immutable definitions.
// RulesFor already orders schema rules first.
func (e *Engine) pinRules(domain core.Domain) ([]core.QualityRule, error) {
	domainRules := e.registry.RulesFor(domain)

	pinned := make([]core.QualityRule, len(domainRules))
	for i := range domainRules {
		rev, err := e.store.EnsureRuleRevision(&domainRules[i])
		if err != nil {
			return nil, fmt.Errorf("failed to pin rule %s: %w", domainRules[i].Key, err)
		}
		pinned[i] = *rev
	}
	return pinned, nil
}

// evalRule runs one pinned rule and builds its check result. A broken
// rule (unsupported predicate, expression failure) is reported as a
// failed result carrying the error detail; only context cancellation
// aborts evaluation.
func (e *Engine) evalRule(ctx context.Context, rule core.QualityRule, ds *core.Dataset, eligible []int, runID string) (ruleOutcome, error) {
	out, err := rules.Evaluate(ctx, rule, ds, eligible, rules.EvalOptions{Compiler: e.compiler})
	if err != nil {
		if ctx.Err() != nil {
			return ruleOutcome{}, ctx.Err()
		}
		e.logger.Warn("rule evaluation failed", "rule", rule.Key, "error", err)
		return ruleOutcome{result: &core.CheckResult{
			RunID:     runID,
			RuleID:    rule.ID,
			RuleKey:   rule.Key,
			RuleName:  rule.Name,
			CheckType: rule.CheckType,
			Status:    core.CheckFailed,
			Details: core.CheckDetails{
				TotalRecords: ds.Len(),
				Error:        err.Error(),
			},
		}}, nil
	}

	oc := ruleOutcome{result: buildResult(runID, rule, ds.Len(), out)}
	if blocking(rule) {
		oc.violating = out.ViolatingRows()
	}
	return oc, nil
}

// buildResult folds an evaluation outcome into a check result with a
// bounded violation sample.
func buildResult(runID string, rule core.QualityRule, total int, out *rules.Outcome) *core.CheckResult {
	status := core.CheckPassed
	if len(out.Violations) > 0 {
		if blocking(rule) {
			status = core.CheckFailed
		} else {
			status = core.CheckWarning
		}
	}

	details := core.CheckDetails{
		TotalRecords:     total,
		EvaluatedRecords: out.Evaluated,
		ViolationCount:   len(out.Violations),
	}
	sample := out.Violations
	if len(sample) > core.DetailSampleLimit {
		sample = sample[:core.DetailSampleLimit]
	}
	for _, v := range sample {
		details.SampleViolations = append(details.SampleViolations, core.ViolationDetail{
			RowID:   v.RowID,
			Field:   v.Field,
			Value:   v.Value,
			Message: v.Message,
		})
	}

	return &core.CheckResult{
		RunID:     runID,
		RuleID:    rule.ID,
		RuleKey:   rule.Key,
		RuleName:  rule.Name,
		CheckType: rule.CheckType,
		Status:    status,
		Details:   details,
	}
}

// blocking reports whether violations of this rule bar a row from the
// Gold layer. Schema rules block regardless of declared severity.
func blocking(rule core.QualityRule) bool {
	return rule.CheckType == core.CheckSchema || rule.Severity == core.SeverityBlocking
}
