package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/nvoss/needforge/pkg/models"
)

// Pipeline stage identifiers used in the call log and stage breakdown.
const (
	StageAgentGeneration      = "agent_generation"
	StageExperienceSimulation = "experience_simulation"
	StageInterviews           = "interviews"
	StageNeedExtraction       = "need_extraction"
	StageParallelProcessing   = "parallel_processing"
)

// Log is an append-only record of backend calls for one run. Summaries are
// derived views recomputed from the log on demand, so recording stays cheap
// on the hot path.
type Log struct {
	mu        sync.Mutex
	calls     []models.MetricsRecord
	stages    map[string]*stageWindow
	prices    *PriceTable
	collector *Collector
}

type stageWindow struct {
	start time.Time
	end   time.Time
	items int
}

// NewLog creates an empty call log. The collector may be nil when
// prometheus export is not wanted (stability iterations use fresh
// throwaway logs).
func NewLog(prices *PriceTable, collector *Collector) *Log {
	if prices == nil {
		prices = DefaultPriceTable()
	}
	return &Log{
		stages:    make(map[string]*stageWindow),
		prices:    prices,
		collector: collector,
	}
}

// StartStage marks the beginning of a pipeline stage window.
func (l *Log) StartStage(stageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages[stageID] = &stageWindow{start: time.Now()}
}

// EndStage closes a stage window and records how many items it processed.
func (l *Log) EndStage(stageID string, itemsProcessed int) {
	l.mu.Lock()
	w, ok := l.stages[stageID]
	if !ok {
		w = &stageWindow{start: time.Now()}
		l.stages[stageID] = w
	}
	w.end = time.Now()
	w.items = itemsProcessed
	duration := w.end.Sub(w.start)
	collector := l.collector
	l.mu.Unlock()

	if collector != nil {
		collector.RecordStageDuration(stageID, duration)
	}
}

// RecordStage sets a stage window from explicit bounds. Useful when the
// stage's timing is measured by the caller rather than bracketed inline.
func (l *Log) RecordStage(stageID string, start, end time.Time, itemsProcessed int) {
	l.mu.Lock()
	l.stages[stageID] = &stageWindow{start: start, end: end, items: itemsProcessed}
	collector := l.collector
	l.mu.Unlock()

	if collector != nil {
		collector.RecordStageDuration(stageID, end.Sub(start))
	}
}

// RecordCall appends one backend call to the log. The cost estimate is
// filled in from the price table when the record does not carry one.
func (l *Log) RecordCall(rec models.MetricsRecord) {
	if rec.CostEstimate == 0 && rec.Outcome == models.OutcomeSuccess {
		rec.CostEstimate = l.prices.EstimateCost(rec.Model, rec.TokensIn, rec.TokensOut)
	}

	l.mu.Lock()
	l.calls = append(l.calls, rec)
	collector := l.collector
	l.mu.Unlock()

	if collector != nil {
		success := rec.Outcome == models.OutcomeSuccess
		collector.RecordAPIRequest(rec.Model, rec.Duration(), success)
		collector.IncrementCalls(rec.StageID, success)
	}
}

// CallCount returns the number of recorded calls.
func (l *Log) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// Summarize computes the full derived view over the current log contents.
func (l *Log) Summarize() models.MetricsSummary {
	l.mu.Lock()
	calls := make([]models.MetricsRecord, len(l.calls))
	copy(calls, l.calls)
	stages := make(map[string]*stageWindow, len(l.stages))
	for id, w := range l.stages {
		cp := *w
		stages[id] = &cp
	}
	l.mu.Unlock()

	summary := models.MetricsSummary{
		Stages: make(map[string]models.StageMetrics),
		Units:  []models.UnitMetrics{},
		Calls:  calls,
	}

	if len(calls) == 0 {
		return summary
	}

	// Run-wide totals
	var (
		first      = calls[0].StartTime
		last       = calls[0].EndTime
		durSum     float64
		totalCost  float64
		tokens     int
		successful int
	)
	for _, c := range calls {
		if c.StartTime.Before(first) {
			first = c.StartTime
		}
		if c.EndTime.After(last) {
			last = c.EndTime
		}
		durSum += c.Duration().Seconds()
		totalCost += c.CostEstimate
		tokens += c.TotalTokens()
		if c.Outcome == models.OutcomeSuccess {
			successful++
		}
	}

	totalDuration := last.Sub(first).Seconds()
	summary.Overview = models.MetricsOverview{
		TotalDuration:   totalDuration,
		TotalCalls:      len(calls),
		SuccessfulCalls: successful,
		FailedCalls:     len(calls) - successful,
		TotalTokens:     tokens,
		TotalCost:       totalCost,
		AvgLatency:      durSum / float64(len(calls)),
	}
	if totalDuration > 0 {
		summary.Overview.TokensPerSecond = float64(tokens) / totalDuration
	}

	// Stage breakdown: windows provide the time bounds, the call log
	// provides token and cost attribution
	stageCalls := make(map[string][]models.MetricsRecord)
	for _, c := range calls {
		stageCalls[c.StageID] = append(stageCalls[c.StageID], c)
	}
	for id, w := range stages {
		sm := models.StageMetrics{
			StageID:        id,
			StartTime:      w.start,
			EndTime:        w.end,
			ItemsProcessed: w.items,
		}
		if !w.end.IsZero() {
			sm.Duration = w.end.Sub(w.start).Seconds()
		}
		for _, c := range stageCalls[id] {
			sm.Calls++
			sm.Tokens += c.TotalTokens()
			sm.Cost += c.CostEstimate
		}
		summary.Stages[id] = sm
	}

	// Unit rollups, fastest first
	unitByID := make(map[int]*models.UnitMetrics)
	unitSpan := make(map[int][2]time.Time)
	for _, c := range calls {
		if c.UnitID == 0 {
			continue
		}
		um, ok := unitByID[c.UnitID]
		if !ok {
			um = &models.UnitMetrics{UnitID: c.UnitID}
			unitByID[c.UnitID] = um
			unitSpan[c.UnitID] = [2]time.Time{c.StartTime, c.EndTime}
		}
		um.Calls++
		um.Tokens += c.TotalTokens()
		um.Cost += c.CostEstimate
		span := unitSpan[c.UnitID]
		if c.StartTime.Before(span[0]) {
			span[0] = c.StartTime
		}
		if c.EndTime.After(span[1]) {
			span[1] = c.EndTime
		}
		unitSpan[c.UnitID] = span
	}
	for id, um := range unitByID {
		span := unitSpan[id]
		um.Duration = span[1].Sub(span[0]).Seconds()
		summary.Units = append(summary.Units, *um)
	}
	sort.Slice(summary.Units, func(i, j int) bool {
		return summary.Units[i].Duration < summary.Units[j].Duration
	})

	summary.Extremes = findExtremes(calls, summary.Units)
	return summary
}

func findExtremes(calls []models.MetricsRecord, units []models.UnitMetrics) models.MetricsExtremes {
	var ex models.MetricsExtremes

	for i := range calls {
		c := calls[i]
		if c.Outcome != models.OutcomeSuccess {
			continue
		}
		if ex.SlowestCall == nil || c.Duration() > ex.SlowestCall.Duration() {
			rec := c
			ex.SlowestCall = &rec
		}
		if ex.FastestCall == nil || c.Duration() < ex.FastestCall.Duration() {
			rec := c
			ex.FastestCall = &rec
		}
	}

	if len(units) > 0 {
		fastest := units[0]
		ex.FastestUnit = &fastest
		costliest := units[0]
		for _, u := range units[1:] {
			if u.Cost > costliest.Cost {
				costliest = u
			}
		}
		ex.MostExpensiveUnit = &costliest
	}

	return ex
}
