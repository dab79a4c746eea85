package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/domain/report"
	"github.com/trafficlens/backend/internal/infrastructure/persistence"
)

func TestChannelReportRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	orderRepo := persistence.NewGormOrderRepository(testDB.DB)
	reportRepo := persistence.NewGormChannelReportRepository(testDB.DB)
	ctx := context.Background()

	tenantID := uuid.New()
	windowAfter := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	windowBefore := time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC)

	seq := 0
	seed := func(source, medium string, sessions int, total int64) {
		seq++
		o := newTestOrder(tenantID, uuid.NewString(), windowAfter.Add(time.Duration(seq)*time.Hour))
		o.Source = source
		o.Medium = medium
		o.SessionCount = sessions
		o.Total = decimal.NewFromInt(total)
		require.NoError(t, orderRepo.Create(ctx, o))
	}

	seed("google", "organic", 3, 120)
	seed("google", "organic", 0, 80)
	seed("google", "cpc", 1, 300)
	seed("partner-blog", "banner", 1, 50)
	seed("partner-blog", "banner", 2, 60)
	seed("legacy-app", "", 1, 10)
	seed("", "", 1, 40)
	seed(attribution.DirectSource, attribution.TypeinMedium, 1, 30)

	// Outside the window, must not count anywhere
	outside := newTestOrder(tenantID, "wc-outside", windowBefore.Add(time.Hour))
	outside.Source = "google"
	outside.Medium = "organic"
	require.NoError(t, orderRepo.Create(ctx, outside))

	t.Run("SourceMediumAggregates", func(t *testing.T) {
		aggs, err := reportRepo.SourceMediumAggregates(ctx, tenantID, windowAfter, windowBefore)
		require.NoError(t, err)
		require.Len(t, aggs, 6)

		byPair := make(map[[2]string]report.PairAggregate, len(aggs))
		for _, a := range aggs {
			byPair[[2]string{a.Source, a.Medium}] = a
		}

		organic := byPair[[2]string{"google", "organic"}]
		assert.Equal(t, int64(2), organic.Orders)
		// The zero-session order still counts as one visit
		assert.Equal(t, int64(4), organic.Sessions)
		assert.True(t, organic.Revenue.Equal(decimal.NewFromInt(200)))

		cpc := byPair[[2]string{"google", "cpc"}]
		assert.Equal(t, int64(1), cpc.Orders)
		assert.True(t, cpc.Revenue.Equal(decimal.NewFromInt(300)))

		banner := byPair[[2]string{"partner-blog", "banner"}]
		assert.Equal(t, int64(2), banner.Orders)
		assert.Equal(t, int64(3), banner.Sessions)

		// Ordered by order count descending, then source and medium
		assert.Equal(t, int64(2), aggs[0].Orders)
		assert.Equal(t, int64(2), aggs[1].Orders)
		assert.Equal(t, "google", aggs[0].Source)
		assert.Equal(t, "partner-blog", aggs[1].Source)
	})

	t.Run("AggregatesAreTenantScoped", func(t *testing.T) {
		aggs, err := reportRepo.SourceMediumAggregates(ctx, uuid.New(), windowAfter, windowBefore)
		require.NoError(t, err)
		assert.Empty(t, aggs)
	})
}
