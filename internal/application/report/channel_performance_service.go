package report

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/domain/report"
	"github.com/trafficlens/backend/internal/domain/shared"
	"github.com/trafficlens/backend/internal/infrastructure/telemetry"
)

var (
	oneHundred = decimal.NewFromInt(100)
)

// Window is a half-open reporting window [After, Before).
type Window struct {
	After  time.Time
	Before time.Time
}

// IsValid reports whether the window bounds are usable.
func (w Window) IsValid() bool {
	return !w.After.IsZero() && !w.Before.IsZero() && w.After.Before(w.Before)
}

// Preceding returns the window of equal length immediately before this one.
func (w Window) Preceding() Window {
	length := w.Before.Sub(w.After)
	return Window{After: w.After.Add(-length), Before: w.After}
}

// RuleResolver resolves a tenant's active channel rules into a snapshot.
// Satisfied by the attribution rule service.
type RuleResolver interface {
	ActiveSnapshot(ctx context.Context, tenantID uuid.UUID) (attribution.RuleSnapshot, error)
}

// ChannelPerformanceService builds per-channel performance reports with
// period-over-period comparison. Orders are aggregated at the (source,
// medium) level and classified at report time against the active rule
// snapshot: editing a rule changes the next report immediately, without a
// re-sync.
type ChannelPerformanceService struct {
	repo   report.Repository
	rules  RuleResolver
	logger *zap.Logger
}

// NewChannelPerformanceService creates a new ChannelPerformanceService.
func NewChannelPerformanceService(repo report.Repository, rules RuleResolver, logger *zap.Logger) *ChannelPerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelPerformanceService{repo: repo, rules: rules, logger: logger}
}

// channelRollup accumulates the raw numbers of one channel in one window.
type channelRollup struct {
	orders   int64
	sessions int64
	revenue  decimal.Decimal
}

// Report builds the channel performance report for the current window, with
// deltas against the comparison window. Every channel present in either
// window gets a row; all five metrics carry a delta, per channel and on the
// totals. A zero comparison window defaults to the preceding window of
// equal length.
func (s *ChannelPerformanceService) Report(ctx context.Context, tenantID uuid.UUID, current, comparison Window) (result *report.PerformanceReport, err error) {
	if !current.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	if comparison.After.IsZero() && comparison.Before.IsZero() {
		comparison = current.Preceding()
	}
	if !comparison.IsValid() {
		return nil, shared.ErrInvalidInput
	}

	ctx, span := telemetry.StartSpan(ctx, "channel_report.build",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrWindowAfter, current.After.Format(time.RFC3339)),
		telemetry.WithAttribute(telemetry.SpanAttrWindowBefore, current.Before.Format(time.RFC3339)),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	snapshot, err := s.rules.ActiveSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	currentPairs, err := s.repo.SourceMediumAggregates(ctx, tenantID, current.After, current.Before)
	if err != nil {
		return nil, err
	}
	comparisonPairs, err := s.repo.SourceMediumAggregates(ctx, tenantID, comparison.After, comparison.Before)
	if err != nil {
		return nil, err
	}

	currentByChannel := rollupByChannel(currentPairs, snapshot)
	previousByChannel := rollupByChannel(comparisonPairs, snapshot)

	channels := make([]string, 0, len(currentByChannel)+len(previousByChannel))
	for name := range currentByChannel {
		channels = append(channels, name)
	}
	for name := range previousByChannel {
		if _, ok := currentByChannel[name]; !ok {
			channels = append(channels, name)
		}
	}

	result = &report.PerformanceReport{
		WindowAfter:  current.After,
		WindowBefore: current.Before,
		Channels:     make([]report.ChannelPerformance, 0, len(channels)),
	}

	var totalCur, totalPrev channelRollup
	totalCur.revenue = decimal.Zero
	totalPrev.revenue = decimal.Zero

	for _, name := range channels {
		cur := currentByChannel[name]
		prev := previousByChannel[name]
		result.Channels = append(result.Channels, report.ChannelPerformance{
			Channel:        name,
			ChannelMetrics: buildMetrics(cur, prev),
		})

		totalCur.orders += cur.orders
		totalCur.sessions += cur.sessions
		totalCur.revenue = totalCur.revenue.Add(cur.revenue)
		totalPrev.orders += prev.orders
		totalPrev.sessions += prev.sessions
		totalPrev.revenue = totalPrev.revenue.Add(prev.revenue)
	}

	sort.SliceStable(result.Channels, func(i, j int) bool {
		a, b := result.Channels[i], result.Channels[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Channel < b.Channel
	})

	result.Totals = buildMetrics(totalCur, totalPrev)

	return result, nil
}

// UnclassifiedPairs lists the (source, medium) pairs in the window that no
// active rule or source override matches, ranked by order volume. Pairs with
// neither source nor medium and the sentinel direct pair are excluded; those
// are genuinely direct traffic, not classification gaps.
func (s *ChannelPerformanceService) UnclassifiedPairs(ctx context.Context, tenantID uuid.UUID, window Window, limit int) ([]report.UnclassifiedPair, error) {
	if !window.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}

	snapshot, err := s.rules.ActiveSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	aggregates, err := s.repo.SourceMediumAggregates(ctx, tenantID, window.After, window.Before)
	if err != nil {
		return nil, err
	}

	pairs := make([]report.UnclassifiedPair, 0, limit)
	for _, agg := range aggregates {
		if agg.Source == "" && agg.Medium == "" {
			continue
		}
		if agg.Source == attribution.DirectSource && agg.Medium == attribution.TypeinMedium {
			continue
		}
		if _, matched := classifyPair(agg.Source, agg.Medium, snapshot); matched {
			continue
		}
		pairs = append(pairs, report.UnclassifiedPair{
			Source: agg.Source,
			Medium: agg.Medium,
			Orders: agg.Orders,
		})
		if len(pairs) == limit {
			break
		}
	}
	return pairs, nil
}

// rollupByChannel classifies each pair against the snapshot and accumulates
// its numbers under the resulting channel.
func rollupByChannel(pairs []report.PairAggregate, snapshot attribution.RuleSnapshot) map[string]channelRollup {
	byChannel := make(map[string]channelRollup, len(pairs))
	for _, pair := range pairs {
		channel, _ := classifyPair(pair.Source, pair.Medium, snapshot)
		rollup := byChannel[channel]
		rollup.orders += pair.Orders
		rollup.sessions += pair.Sessions
		rollup.revenue = rollup.revenue.Add(pair.Revenue)
		byChannel[channel] = rollup
	}
	return byChannel
}

// classifyPair runs the stored pair back through the attribution pipeline as
// explicit fields, then classifies against the snapshot.
func classifyPair(source, medium string, snapshot attribution.RuleSnapshot) (string, bool) {
	attr := attribution.Extract(attribution.Signals{Source: source, Medium: medium})
	return attribution.ClassifyWithMatch(
		attribution.NormalizeSource(attr.Source),
		attribution.NormalizeMedium(attr.Medium),
		snapshot,
	)
}

// buildMetrics derives the metric row for one channel from its rollups in
// the current and comparison windows.
func buildMetrics(cur, prev channelRollup) report.ChannelMetrics {
	m := report.ChannelMetrics{
		Orders:         cur.orders,
		Sessions:       cur.sessions,
		Revenue:        cur.revenue,
		ConversionRate: conversionRate(cur),
		AvgOrderValue:  avgOrderValue(cur),
	}

	m.OrdersDelta = percentDelta(decimal.NewFromInt(cur.orders), decimal.NewFromInt(prev.orders))
	m.SessionsDelta = percentDelta(decimal.NewFromInt(cur.sessions), decimal.NewFromInt(prev.sessions))
	m.RevenueDelta = percentDelta(cur.revenue, prev.revenue)
	m.ConversionRateDelta = percentDelta(m.ConversionRate, conversionRate(prev))
	m.AvgOrderValueDelta = percentDelta(m.AvgOrderValue, avgOrderValue(prev))

	return m
}

// conversionRate is orders per session as a percentage.
func conversionRate(r channelRollup) decimal.Decimal {
	if r.sessions == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.orders).Div(decimal.NewFromInt(r.sessions)).Mul(oneHundred)
}

// avgOrderValue is revenue per order.
func avgOrderValue(r channelRollup) decimal.Decimal {
	if r.orders == 0 {
		return decimal.Zero
	}
	return r.revenue.Div(decimal.NewFromInt(r.orders))
}

// percentDelta is the period-over-period change as a percentage. A zero
// baseline cannot produce a meaningful ratio: the delta reports zero when
// the current value is also zero, otherwise one hundred.
func percentDelta(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsZero() {
			return decimal.Zero
		}
		return oneHundred
	}
	return current.Sub(previous).Div(previous).Mul(oneHundred)
}
