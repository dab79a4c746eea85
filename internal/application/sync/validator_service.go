package sync

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/domain/order"
)

// ValidatorService cross-checks a synced window against the remote store:
// id completeness in both directions plus a paid-search classification
// spot check recomputed from the raw remote payloads.
type ValidatorService struct {
	connRepo  commerce.StoreConnectionRepository
	platform  commerce.StorePlatform
	orderRepo order.Repository
	pageSize  int
	maxPages  int
	logger    *zap.Logger
}

// NewValidatorService creates a new ValidatorService.
func NewValidatorService(
	connRepo commerce.StoreConnectionRepository,
	platform commerce.StorePlatform,
	orderRepo order.Repository,
	pageSize int,
	maxPages int,
	logger *zap.Logger,
) *ValidatorService {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	if maxPages < 1 {
		maxPages = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidatorService{
		connRepo:  connRepo,
		platform:  platform,
		orderRepo: orderRepo,
		pageSize:  pageSize,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// Validate re-fetches the remote ids for the window and diffs them against
// what is stored locally.
func (s *ValidatorService) Validate(ctx context.Context, connectionID uuid.UUID, after, before time.Time) (*ValidationReport, error) {
	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	remoteIDs := make(map[string]bool)
	paidSearchExpected := 0

	for page := 1; page <= s.maxPages; page++ {
		resp, err := s.platform.PullOrders(ctx, conn, &commerce.OrderPullRequest{
			After:    after.UTC(),
			Before:   before.UTC(),
			Page:     page,
			PageSize: s.pageSize,
		})
		if err != nil {
			return nil, err
		}

		for i := range resp.Orders {
			remote := &resp.Orders[i]
			remoteIDs[remote.ExternalID] = true
			if hasPaidSearchSignature(remote) {
				paidSearchExpected++
			}
		}

		if !resp.HasMore {
			break
		}
	}

	localIDs, err := s.orderRepo.ExternalIDsByWindow(ctx, conn.TenantID, after, before)
	if err != nil {
		return nil, err
	}
	localSet := make(map[string]bool, len(localIDs))
	for _, id := range localIDs {
		localSet[id] = true
	}

	var missing, extra []string
	for id := range remoteIDs {
		if !localSet[id] {
			missing = append(missing, id)
		}
	}
	for _, id := range localIDs {
		if !remoteIDs[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	// Accuracy is (remote - missing) / remote; an empty remote window has
	// nothing to be accurate about and reports zero.
	accuracy := decimal.Zero
	if len(remoteIDs) > 0 {
		accuracy = decimal.NewFromInt(int64(len(remoteIDs) - len(missing))).
			Div(decimal.NewFromInt(int64(len(remoteIDs))))
	}

	counts, err := s.orderRepo.CountByChannel(ctx, conn.TenantID, after, before)
	if err != nil {
		return nil, err
	}
	paidSearchActual := int(counts[attribution.ChannelPaidSearch])

	report := &ValidationReport{
		ConnectionID:       conn.ID,
		WindowAfter:        after,
		WindowBefore:       before,
		RemoteCount:        len(remoteIDs),
		LocalCount:         len(localIDs),
		MissingIDs:         missing,
		ExtraIDs:           extra,
		Accuracy:           accuracy,
		PaidSearchExpected: paidSearchExpected,
		PaidSearchActual:   paidSearchActual,
		PaidSearchMatch:    paidSearchExpected == paidSearchActual,
	}

	if len(missing) > 0 || len(extra) > 0 {
		s.logger.Warn("sync completeness gap detected",
			zap.String("connection_id", conn.ID.String()),
			zap.Int("missing", len(missing)),
			zap.Int("extra", len(extra)))
	}

	return report, nil
}

// hasPaidSearchSignature recomputes, from the raw remote order alone,
// whether it should land in the Paid Search bucket under the seeded
// google rules (medium utm or cpc).
func hasPaidSearchSignature(remote *commerce.RemoteOrder) bool {
	attr := attribution.Extract(buildSignals(remote, sessionReferrer(remote)))
	source := attribution.NormalizeSource(attr.Source)
	medium := attribution.NormalizeMedium(attr.Medium)
	return source == "google" && (medium == "utm" || medium == "cpc")
}

// sessionReferrer pulls the session referrer meta entry, when present.
func sessionReferrer(remote *commerce.RemoteOrder) string {
	for _, entry := range remote.Meta {
		if entry.Key == metaKeyReferrer {
			return entry.Value
		}
	}
	return ""
}
