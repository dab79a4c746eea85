package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/domain/order"
	"github.com/trafficlens/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeConnRepo struct {
	conns map[uuid.UUID]*commerce.StoreConnection
}

func newFakeConnRepo(conns ...*commerce.StoreConnection) *fakeConnRepo {
	repo := &fakeConnRepo{conns: make(map[uuid.UUID]*commerce.StoreConnection)}
	for _, c := range conns {
		repo.conns[c.ID] = c
	}
	return repo
}

func (r *fakeConnRepo) Save(ctx context.Context, conn *commerce.StoreConnection) error {
	r.conns[conn.ID] = conn
	return nil
}

func (r *fakeConnRepo) FindByID(ctx context.Context, id uuid.UUID) (*commerce.StoreConnection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, commerce.ErrConnectionNotFound
	}
	return conn, nil
}

func (r *fakeConnRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]commerce.StoreConnection, error) {
	var out []commerce.StoreConnection
	for _, c := range r.conns {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnRepo) FindEnabled(ctx context.Context) ([]commerce.StoreConnection, error) {
	var out []commerce.StoreConnection
	for _, c := range r.conns {
		if c.IsEnabled {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.conns, id)
	return nil
}

type fakePlatform struct {
	pages   [][]commerce.RemoteOrder
	pullErr error
	calls   int
}

func (p *fakePlatform) PullOrders(ctx context.Context, conn *commerce.StoreConnection, req *commerce.OrderPullRequest) (*commerce.OrderPullResponse, error) {
	p.calls++
	if p.pullErr != nil {
		return nil, p.pullErr
	}
	if req.Page > len(p.pages) {
		return &commerce.OrderPullResponse{}, nil
	}
	return &commerce.OrderPullResponse{
		Orders:  p.pages[req.Page-1],
		HasMore: req.Page < len(p.pages),
	}, nil
}

func (p *fakePlatform) Ping(ctx context.Context, conn *commerce.StoreConnection) error {
	return nil
}

type fakeOrderRepo struct {
	orders      map[string]*order.Order // key tenant|external
	earlier     map[string]bool         // normalized email -> earlier order exists
	createErrBy map[string]error        // external id -> injected error
	createCalls int
	updateCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:      make(map[string]*order.Order),
		earlier:     make(map[string]bool),
		createErrBy: make(map[string]error),
	}
}

func orderKey(tenantID uuid.UUID, externalID string) string {
	return tenantID.String() + "|" + externalID
}

func (r *fakeOrderRepo) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*order.Order, error) {
	o, ok := r.orders[orderKey(tenantID, externalID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]order.Order, error) {
	var out []order.Order
	for _, o := range r.orders {
		if o.TenantID == tenantID && !o.OrderDate.Before(after) && o.OrderDate.Before(before) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ExternalIDsByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]string, error) {
	var out []string
	for _, o := range r.orders {
		if o.TenantID == tenantID && !o.OrderDate.Before(after) && o.OrderDate.Before(before) {
			out = append(out, o.ExternalOrderID)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	if err := r.createErrBy[o.ExternalOrderID]; err != nil {
		return err
	}
	key := orderKey(o.TenantID, o.ExternalOrderID)
	if _, exists := r.orders[key]; exists {
		return shared.ErrAlreadyExists
	}
	cp := *o
	r.orders[key] = &cp
	r.createCalls++
	return nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, o *order.Order) error {
	key := orderKey(o.TenantID, o.ExternalOrderID)
	existing, ok := r.orders[key]
	if !ok {
		return shared.ErrNotFound
	}
	cp := *o
	// Mirrors the SQL layer: these columns are never touched on update
	cp.IsNewCustomer = existing.IsNewCustomer
	cp.CreatedAt = existing.CreatedAt
	r.orders[key] = &cp
	r.updateCalls++
	return nil
}

func (r *fakeOrderRepo) HasEarlierOrderWithEmail(ctx context.Context, tenantID uuid.UUID, email string, before time.Time) (bool, error) {
	return r.earlier[email], nil
}

func (r *fakeOrderRepo) CountByChannel(ctx context.Context, tenantID uuid.UUID, after, before time.Time) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, o := range r.orders {
		if o.TenantID == tenantID && !o.OrderDate.Before(after) && o.OrderDate.Before(before) {
			counts[o.Channel]++
		}
	}
	return counts, nil
}

type fakeJobRepo struct {
	jobs            map[uuid.UUID]*order.SyncJob
	logs            []order.SyncLogEntry
	cancelRequested map[uuid.UUID]bool
	// cancelAfterChecks flips the flag after this many IsCancelRequested
	// reads; negative means never
	cancelAfterChecks int
	checks            int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:              make(map[uuid.UUID]*order.SyncJob),
		cancelRequested:   make(map[uuid.UUID]bool),
		cancelAfterChecks: -1,
	}
}

func (r *fakeJobRepo) Save(ctx context.Context, job *order.SyncJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) FindByID(ctx context.Context, id uuid.UUID) (*order.SyncJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter order.SyncJobFilter) ([]order.SyncJob, error) {
	var out []order.SyncJob
	for _, j := range r.jobs {
		if j.TenantID == tenantID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) Count(ctx context.Context, tenantID uuid.UUID, filter order.SyncJobFilter) (int64, error) {
	jobs, _ := r.FindAll(ctx, tenantID, filter)
	return int64(len(jobs)), nil
}

func (r *fakeJobRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	job, ok := r.jobs[id]
	if !ok {
		return shared.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return shared.ErrNotFound
	}
	r.cancelRequested[id] = true
	return nil
}

func (r *fakeJobRepo) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	r.checks++
	if r.cancelAfterChecks >= 0 && r.checks > r.cancelAfterChecks {
		r.cancelRequested[id] = true
	}
	return r.cancelRequested[id], nil
}

func (r *fakeJobRepo) AppendLog(ctx context.Context, entry *order.SyncLogEntry) error {
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *fakeJobRepo) FindLogs(ctx context.Context, jobID uuid.UUID) ([]order.SyncLogEntry, error) {
	var out []order.SyncLogEntry
	for _, e := range r.logs {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubResolver struct {
	rules []attribution.ChannelRule
	err   error
}

func (s *stubResolver) ActiveSnapshot(ctx context.Context, tenantID uuid.UUID) (attribution.RuleSnapshot, error) {
	if s.err != nil {
		return attribution.RuleSnapshot{}, s.err
	}
	return attribution.NewRuleSnapshot(s.rules), nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testConn(t *testing.T) *commerce.StoreConnection {
	t.Helper()
	conn, err := commerce.NewStoreConnection(uuid.New(), "Main Store",
		"https://shop.example.com", "ck_test", "cs_test")
	require.NoError(t, err)
	return conn
}

func testWindow() (time.Time, time.Time) {
	after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return after, after.AddDate(0, 0, 7)
}

func remoteOrder(externalID, email string, meta ...commerce.RemoteMetaEntry) commerce.RemoteOrder {
	return commerce.RemoteOrder{
		ExternalID:  externalID,
		Number:      externalID,
		Status:      "completed",
		Currency:    "USD",
		DateCreated: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Total:       decimal.NewFromInt(100),
		Billing:     commerce.RemoteAddress{Email: email, FirstName: "Pat"},
		Meta:        meta,
		Items: []commerce.RemoteLineItem{
			{ExternalID: "li-" + externalID, Name: "Widget", Quantity: 1, Total: decimal.NewFromInt(100)},
		},
		RawPayload: fmt.Sprintf(`{"id": %s, "status": "completed"}`, externalID),
	}
}

func seededRules(t *testing.T, tenantID uuid.UUID) []attribution.ChannelRule {
	t.Helper()
	paid, err := attribution.NewChannelRule(tenantID, "google", "utm", attribution.ChannelPaidSearch)
	require.NoError(t, err)
	social, err := attribution.NewChannelRule(tenantID, "facebook", "social", attribution.ChannelOrganicSocial)
	require.NoError(t, err)
	return []attribution.ChannelRule{*paid, *social}
}

func newTestService(conn *commerce.StoreConnection, platform *fakePlatform, orders *fakeOrderRepo, jobs *fakeJobRepo, resolver *stubResolver) *SyncService {
	return NewSyncService(newFakeConnRepo(conn), platform, orders, jobs, resolver, 100, 500, zap.NewNop())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSyncOrders_CreatesAndClassifies(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{
		remoteOrder("1001", "a@example.com",
			commerce.RemoteMetaEntry{Key: "_wc_order_attribution_utm_source", Value: "google"},
			commerce.RemoteMetaEntry{Key: "_wc_order_attribution_source_type", Value: "utm"},
		),
		remoteOrder("1002", "b@example.com",
			commerce.RemoteMetaEntry{Key: "_wc_order_attribution_referrer", Value: "https://www.facebook.com/groups/widgets"},
		),
	}}}
	orders := newFakeOrderRepo()
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, orders, jobs, &stubResolver{rules: seededRules(t, conn.TenantID)})

	after, before := testWindow()
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.NoError(t, err)
	assert.Equal(t, order.SyncJobStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalCount)
	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, 0, summary.FailedCount)

	stored, err := orders.FindByExternalID(context.Background(), conn.TenantID, "1001")
	require.NoError(t, err)
	assert.Equal(t, "google", stored.Source)
	assert.Equal(t, "utm", stored.Medium)
	assert.Equal(t, attribution.ChannelPaidSearch, stored.Channel)
	assert.True(t, stored.IsNewCustomer)
	require.Len(t, stored.Items, 1)

	social, err := orders.FindByExternalID(context.Background(), conn.TenantID, "1002")
	require.NoError(t, err)
	assert.Equal(t, "facebook", social.Source)
	assert.Equal(t, attribution.ChannelOrganicSocial, social.Channel)
	assert.Equal(t, "https://www.facebook.com/groups/widgets", social.ReferrerURL)
}

func TestSyncOrders_ResyncUpdatesWithoutRecomputingNewCustomer(t *testing.T) {
	conn := testConn(t)
	remote := remoteOrder("2001", "repeat@example.com")
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{remote}}}
	orders := newFakeOrderRepo()
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, orders, jobs, &stubResolver{})

	after, before := testWindow()

	// First sync creates the order as a new customer
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CreatedCount)

	// The customer gains history before the re-sync; the stored flag
	// must not change
	orders.earlier["repeat@example.com"] = true
	platform.pages[0][0].Status = "refunded"

	summary, err = service.SyncOrders(context.Background(), conn.ID, after, before)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.CreatedCount)
	assert.Equal(t, 1, summary.UpdatedCount)

	stored, err := orders.FindByExternalID(context.Background(), conn.TenantID, "2001")
	require.NoError(t, err)
	assert.Equal(t, "refunded", stored.Status)
	assert.True(t, stored.IsNewCustomer, "is_new_customer is computed once, never on re-sync")
}

func TestSyncOrders_PerOrderFailureDoesNotAbortBatch(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{
		remoteOrder("3001", "a@example.com"),
		remoteOrder("3002", "b@example.com"),
		remoteOrder("3003", "c@example.com"),
	}}}
	orders := newFakeOrderRepo()
	orders.createErrBy["3002"] = errors.New("constraint violation")
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, orders, jobs, &stubResolver{})

	after, before := testWindow()
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.NoError(t, err)
	assert.Equal(t, order.SyncJobStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 3, summary.Processed)

	// The failed order's raw payload is captured in the job log
	logs, err := jobs.FindLogs(context.Background(), summary.JobID)
	require.NoError(t, err)
	var found bool
	for _, e := range logs {
		if e.Level == order.SyncLogLevelError {
			found = true
			assert.Contains(t, e.Message, "3002")
			assert.Contains(t, e.Context, `"status": "completed"`)
		}
	}
	assert.True(t, found, "expected an error log entry for the skipped order")
}

func TestSyncOrders_UnmappableRecordCountsAsFailed(t *testing.T) {
	conn := testConn(t)
	bad := remoteOrder("3101", "a@example.com")
	bad.MappingError = `date_created_gmt: unrecognized timestamp "02/06/2025"`
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{
		bad,
		remoteOrder("3102", "b@example.com"),
	}}}
	orders := newFakeOrderRepo()
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, orders, jobs, &stubResolver{})

	after, before := testWindow()
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.NoError(t, err)
	assert.Equal(t, order.SyncJobStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)

	// The unmappable record was never written
	_, err = orders.FindByExternalID(context.Background(), conn.TenantID, "3101")
	assert.Error(t, err)

	logs, err := jobs.FindLogs(context.Background(), summary.JobID)
	require.NoError(t, err)
	var found bool
	for _, e := range logs {
		if e.Level == order.SyncLogLevelError {
			found = true
			assert.Contains(t, e.Message, "3101")
			assert.Contains(t, e.Message, "date_created_gmt")
		}
	}
	assert.True(t, found, "expected an error log entry for the unmappable record")
}

func TestSyncOrders_FetchFailureFailsJob(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pullErr: errors.New("remote returned status 500: boom")}
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, newFakeOrderRepo(), jobs, &stubResolver{})

	after, before := testWindow()
	_, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The job is terminal with the error captured verbatim
	var failed *order.SyncJob
	for _, j := range jobs.jobs {
		failed = j
	}
	require.NotNil(t, failed)
	assert.Equal(t, order.SyncJobStatusFailed, failed.Status)
	assert.Equal(t, "remote returned status 500: boom", failed.ErrorMessage)
}

func TestSyncOrders_Pagination(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{
		{remoteOrder("4001", "a@example.com"), remoteOrder("4002", "b@example.com")},
		{remoteOrder("4003", "c@example.com")},
	}}
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, newFakeOrderRepo(), jobs, &stubResolver{})

	after, before := testWindow()
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, platform.calls)
}

func TestSyncOrders_CancellationBetweenOrders(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{
		remoteOrder("5001", "a@example.com"),
		remoteOrder("5002", "b@example.com"),
		remoteOrder("5003", "c@example.com"),
	}}}
	orders := newFakeOrderRepo()
	jobs := newFakeJobRepo()
	// First check (before page 1) passes, second (before order 1) passes,
	// then the flag flips
	jobs.cancelAfterChecks = 2
	service := newTestService(conn, platform, orders, jobs, &stubResolver{})

	after, before := testWindow()
	summary, err := service.SyncOrders(context.Background(), conn.ID, after, before)

	require.NoError(t, err)
	assert.Equal(t, order.SyncJobStatusCancelled, summary.Status)
	assert.Less(t, summary.Processed, 3, "cancellation stops starting new orders")
}

func TestCreateJob_DisabledConnection(t *testing.T) {
	conn := testConn(t)
	conn.IsEnabled = false
	service := newTestService(conn, &fakePlatform{}, newFakeOrderRepo(), newFakeJobRepo(), &stubResolver{})

	after, before := testWindow()
	_, err := service.CreateJob(context.Background(), conn.ID, after, before)

	assert.ErrorIs(t, err, commerce.ErrConnectionDisabled)
}

func TestCreateJob_InvalidWindow(t *testing.T) {
	conn := testConn(t)
	service := newTestService(conn, &fakePlatform{}, newFakeOrderRepo(), newFakeJobRepo(), &stubResolver{})

	after, before := testWindow()
	_, err := service.CreateJob(context.Background(), conn.ID, before, after)

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCancel_WrongTenant(t *testing.T) {
	conn := testConn(t)
	jobs := newFakeJobRepo()
	service := newTestService(conn, &fakePlatform{}, newFakeOrderRepo(), jobs, &stubResolver{})

	after, before := testWindow()
	job, err := service.CreateJob(context.Background(), conn.ID, after, before)
	require.NoError(t, err)

	err = service.Cancel(context.Background(), uuid.New(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunJob_AlreadyTerminal(t *testing.T) {
	conn := testConn(t)
	platform := &fakePlatform{pages: [][]commerce.RemoteOrder{{}}}
	jobs := newFakeJobRepo()
	service := newTestService(conn, platform, newFakeOrderRepo(), jobs, &stubResolver{})

	after, before := testWindow()
	job, err := service.CreateJob(context.Background(), conn.ID, after, before)
	require.NoError(t, err)

	_, err = service.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = service.RunJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)
}
