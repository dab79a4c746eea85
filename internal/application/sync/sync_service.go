package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/domain/order"
	"github.com/trafficlens/backend/internal/domain/shared"
	"github.com/trafficlens/backend/internal/infrastructure/logger"
	"github.com/trafficlens/backend/internal/infrastructure/telemetry"
)

var (
	// ErrJobNotPending indicates a run was requested for a job that already ran
	ErrJobNotPending = errors.New("sync: job is not in pending state")
	// ErrJobNotFound indicates the job does not exist for the tenant
	ErrJobNotFound = errors.New("sync: job not found")
)

// RuleResolver resolves a tenant's active channel rules into a snapshot.
// Satisfied by the attribution rule service.
type RuleResolver interface {
	ActiveSnapshot(ctx context.Context, tenantID uuid.UUID) (attribution.RuleSnapshot, error)
}

// SyncService pulls orders from a remote store page by page and upserts
// them locally. One remote order failing is logged and counted, never
// fatal; only a failed page fetch aborts the job.
type SyncService struct {
	connRepo  commerce.StoreConnectionRepository
	platform  commerce.StorePlatform
	orderRepo order.Repository
	jobRepo   order.SyncJobRepository
	rules     RuleResolver
	pageSize  int
	maxPages  int
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics
}

// NewSyncService creates a new SyncService. pageSize and maxPages fall back
// to 100 and 500 when out of range.
func NewSyncService(
	connRepo commerce.StoreConnectionRepository,
	platform commerce.StorePlatform,
	orderRepo order.Repository,
	jobRepo order.SyncJobRepository,
	rules RuleResolver,
	pageSize int,
	maxPages int,
	logger *zap.Logger,
) *SyncService {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	if maxPages < 1 {
		maxPages = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		connRepo:  connRepo,
		platform:  platform,
		orderRepo: orderRepo,
		jobRepo:   jobRepo,
		rules:     rules,
		pageSize:  pageSize,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// SetMetrics attaches sync pipeline metrics. Optional; when unset no
// metrics are recorded.
func (s *SyncService) SetMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// Job Lifecycle
// ---------------------------------------------------------------------------

// CreateJob registers a pending sync job for a connection and window.
func (s *SyncService) CreateJob(ctx context.Context, connectionID uuid.UUID, after, before time.Time) (*order.SyncJob, error) {
	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsEnabled {
		return nil, commerce.ErrConnectionDisabled
	}
	if !after.Before(before) {
		return nil, shared.ErrInvalidInput
	}

	job := order.NewSyncJob(conn.TenantID, conn.ID, after.UTC(), before.UTC())
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// SyncOrders creates a job for the window and runs it to completion.
// This is the core entry point; the HTTP trigger and the scheduler are
// thin shells around it.
func (s *SyncService) SyncOrders(ctx context.Context, connectionID uuid.UUID, after, before time.Time) (*SyncSummary, error) {
	job, err := s.CreateJob(ctx, connectionID, after, before)
	if err != nil {
		return nil, err
	}
	return s.RunJob(ctx, job.ID)
}

// Cancel requests cancellation of a pending or running job. The engine
// observes the flag between pages and between orders; in-flight work is
// not interrupted.
func (s *SyncService) Cancel(ctx context.Context, tenantID, jobID uuid.UUID) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.TenantID != tenantID {
		return ErrJobNotFound
	}
	return s.jobRepo.RequestCancel(ctx, jobID)
}

// GetJob returns a job with its log trail.
func (s *SyncService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*order.SyncJob, []order.SyncLogEntry, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.TenantID != tenantID {
		return nil, nil, ErrJobNotFound
	}

	logs, err := s.jobRepo.FindLogs(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, logs, nil
}

// ListJobs lists a tenant's jobs with filtering and pagination.
func (s *SyncService) ListJobs(ctx context.Context, tenantID uuid.UUID, filter order.SyncJobFilter) ([]order.SyncJob, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	jobs, err := s.jobRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.jobRepo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return jobs, count, nil
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// RunJob executes a pending job to a terminal state. Returns the summary
// for completed and cancelled runs; a fetch failure returns the remote
// error after persisting the failed job.
func (s *SyncService) RunJob(ctx context.Context, jobID uuid.UUID) (summary *SyncSummary, err error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != order.SyncJobStatusPending {
		return nil, ErrJobNotPending
	}

	// Job-scoped logger travels in the context; everything below logs
	// with the job id attached.
	ctx, _ = logger.WithJobID(ctx, s.logger, job.ID.String())

	ctx, span := telemetry.StartSpan(ctx, "sync_job.run",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, job.ConnectionID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, job.TenantID.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	started := time.Now()
	defer func() {
		if s.metrics != nil && job.Status.IsTerminal() {
			s.metrics.RecordJobCompleted(ctx, job.TenantID, string(job.Status), time.Since(started))
		}
	}()

	conn, err := s.connRepo.FindByID(ctx, job.ConnectionID)
	if err != nil {
		return nil, s.failJob(ctx, job, 0, err)
	}

	job.Start()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.appendLog(ctx, job.ID, order.SyncLogLevelInfo,
		fmt.Sprintf("sync started for window [%s, %s)",
			job.WindowAfter.Format(time.RFC3339), job.WindowBefore.Format(time.RFC3339)), "")

	snapshot, err := s.rules.ActiveSnapshot(ctx, job.TenantID)
	if err != nil {
		return nil, s.failJob(ctx, job, 0, fmt.Errorf("resolving channel rules: %w", err))
	}

	// Tag CPU samples so profiles can be sliced per tenant and job kind.
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("sync_orders", map[string]string{
		telemetry.ProfilingLabelTenantID: job.TenantID.String(),
	}), func(ctx context.Context) {
		summary, err = s.runPages(ctx, job, conn, snapshot)
	})
	return summary, err
}

// runPages walks the remote order pages and applies each record, saving
// counters after every page so progress survives a restart.
func (s *SyncService) runPages(ctx context.Context, job *order.SyncJob, conn *commerce.StoreConnection, snapshot attribution.RuleSnapshot) (*SyncSummary, error) {
	log := logger.FromContext(ctx)
	pages := 0
	for page := 1; page <= s.maxPages; page++ {
		cancelled, err := s.checkCancel(ctx, job)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return summaryFromJob(job, pages), nil
		}

		resp, err := s.platform.PullOrders(ctx, conn, &commerce.OrderPullRequest{
			After:    job.WindowAfter,
			Before:   job.WindowBefore,
			Page:     page,
			PageSize: s.pageSize,
		})
		if err != nil {
			return nil, s.failJob(ctx, job, pages, err)
		}
		pages++
		job.TotalCount += len(resp.Orders)
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "page_fetched",
			telemetry.SpanAttrPage, page, "order_count", len(resp.Orders))
		s.appendLog(ctx, job.ID, order.SyncLogLevelInfo,
			fmt.Sprintf("page %d fetched: %d orders", page, len(resp.Orders)), "")

		for i := range resp.Orders {
			cancelled, err := s.checkCancel(ctx, job)
			if err != nil {
				return nil, err
			}
			if cancelled {
				return summaryFromJob(job, pages), nil
			}

			remote := &resp.Orders[i]
			created, err := s.processOrder(ctx, job, snapshot, remote)
			job.ProcessedCount++
			switch {
			case err != nil:
				job.FailedCount++
				log.Warn("order sync failed",
					zap.String("external_order_id", remote.ExternalID),
					zap.Error(err))
				s.appendLog(ctx, job.ID, order.SyncLogLevelError,
					fmt.Sprintf("order %s failed: %v", remote.ExternalID, err), remote.RawPayload)
				s.recordOrder(ctx, job.TenantID, telemetry.SyncResultFailed, remote)
			case created:
				job.CreatedCount++
				s.recordOrder(ctx, job.TenantID, telemetry.SyncResultCreated, remote)
			default:
				job.UpdatedCount++
				s.recordOrder(ctx, job.TenantID, telemetry.SyncResultUpdated, remote)
			}
		}

		// Persist counters once per page so progress survives a crash
		job.UpdatedAt = time.Now()
		if err := s.jobRepo.Save(ctx, job); err != nil {
			return nil, err
		}

		if !resp.HasMore {
			break
		}
	}

	job.Complete()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.appendLog(ctx, job.ID, order.SyncLogLevelInfo,
		fmt.Sprintf("sync completed: %d fetched, %d created, %d updated, %d failed",
			job.TotalCount, job.CreatedCount, job.UpdatedCount, job.FailedCount), "")
	log.Info("sync job completed",
		zap.Int("total", job.TotalCount),
		zap.Int("created", job.CreatedCount),
		zap.Int("updated", job.UpdatedCount),
		zap.Int("failed", job.FailedCount))

	return summaryFromJob(job, pages), nil
}

// checkCancel re-reads the persisted cancel flag and, when set, moves the
// job to cancelled. Reading from the store rather than memory lets a
// cancel issued through another process take effect.
func (s *SyncService) checkCancel(ctx context.Context, job *order.SyncJob) (bool, error) {
	requested, err := s.jobRepo.IsCancelRequested(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if !requested {
		return false, nil
	}

	job.MarkCancelled()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return true, err
	}
	s.appendLog(ctx, job.ID, order.SyncLogLevelWarning, "sync cancelled by operator", "")
	return true, nil
}

// failJob persists the failed state with the error captured verbatim.
func (s *SyncService) failJob(ctx context.Context, job *order.SyncJob, pages int, cause error) error {
	job.Fail(cause.Error())
	if err := s.jobRepo.Save(ctx, job); err != nil {
		s.logger.Error("failed to persist failed job",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	s.appendLog(ctx, job.ID, order.SyncLogLevelError, fmt.Sprintf("sync failed: %v", cause), "")
	return cause
}

// recordOrder reports one order outcome to the metrics pipeline. Failed
// orders count without an amount; nothing was stored for them.
func (s *SyncService) recordOrder(ctx context.Context, tenantID uuid.UUID, result telemetry.SyncResult, remote *commerce.RemoteOrder) {
	if s.metrics == nil {
		return
	}
	if result == telemetry.SyncResultFailed {
		s.metrics.RecordOrderResult(ctx, tenantID, result)
		return
	}
	s.metrics.RecordOrderWithAmount(ctx, tenantID, result, remote.Total)
}

// appendLog writes one entry to the job's audit trail. Log failures are
// swallowed; the trail is diagnostic, not transactional.
func (s *SyncService) appendLog(ctx context.Context, jobID uuid.UUID, level order.SyncLogLevel, message, detail string) {
	entry := order.NewSyncLogEntry(jobID, level, message, detail)
	if err := s.jobRepo.AppendLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append sync log",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

// processOrder upserts one remote order in its own transaction. Returns
// true when the order was created, false when an existing one was updated.
func (s *SyncService) processOrder(ctx context.Context, job *order.SyncJob, snapshot attribution.RuleSnapshot, remote *commerce.RemoteOrder) (bool, error) {
	if remote.MappingError != "" {
		return false, fmt.Errorf("remote record could not be mapped: %s", remote.MappingError)
	}

	existing, err := s.orderRepo.FindByExternalID(ctx, job.TenantID, remote.ExternalID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}

	if existing == nil {
		o := s.mapRemote(job.TenantID, remote, snapshot)

		// Computed once, at first sight of the order. An order with no
		// billing email has no purchase history to consult and counts
		// as a new customer.
		if email := o.NormalizedBillingEmail(); email != "" {
			hasEarlier, err := s.orderRepo.HasEarlierOrderWithEmail(ctx, job.TenantID, email, o.OrderDate)
			if err != nil {
				return false, err
			}
			o.IsNewCustomer = !hasEarlier
		} else {
			o.IsNewCustomer = true
		}

		err = s.orderRepo.Create(ctx, o)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return false, err
		}
		// Lost a create race with a concurrent job; fall through to update
		existing, err = s.orderRepo.FindByExternalID(ctx, job.TenantID, remote.ExternalID)
		if err != nil {
			return false, err
		}
	}

	updated := s.mapRemote(job.TenantID, remote, snapshot)
	updated.ID = existing.ID
	// IsNewCustomer and CreatedAt are excluded from the update statement
	// by the repository; carried here only for completeness
	updated.IsNewCustomer = existing.IsNewCustomer
	updated.CreatedAt = existing.CreatedAt

	if err := s.orderRepo.Update(ctx, updated); err != nil {
		return false, err
	}
	return false, nil
}

// mapRemote converts a remote order to the local shape, running the
// extraction, normalization, and classification pipeline.
func (s *SyncService) mapRemote(tenantID uuid.UUID, remote *commerce.RemoteOrder, snapshot attribution.RuleSnapshot) *order.Order {
	o := &order.Order{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ExternalOrderID: remote.ExternalID,
		OrderDate:       remote.DateCreated,
		Status:          remote.Status,
		Currency:        remote.Currency,

		Subtotal:      remote.Subtotal,
		TaxTotal:      remote.TaxTotal,
		ShippingTotal: remote.ShippingTotal,
		DiscountTotal: remote.DiscountTotal,
		FeeTotal:      remote.FeeTotal,
		Total:         remote.Total,

		BillingFirstName:  remote.Billing.FirstName,
		BillingLastName:   remote.Billing.LastName,
		BillingEmail:      remote.Billing.Email,
		BillingPhone:      remote.Billing.Phone,
		BillingAddress:    remote.Billing.Address1,
		BillingCity:       remote.Billing.City,
		BillingCountry:    remote.Billing.Country,
		ShippingFirstName: remote.Shipping.FirstName,
		ShippingLastName:  remote.Shipping.LastName,
		ShippingAddress:   remote.Shipping.Address1,
		ShippingCity:      remote.Shipping.City,
		ShippingCountry:   remote.Shipping.Country,

		RawPayload: remote.RawPayload,

		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	o.Items = make([]order.LineItem, 0, len(remote.Items))
	for _, item := range remote.Items {
		o.Items = append(o.Items, order.LineItem{
			ID:         uuid.New(),
			OrderID:    o.ID,
			ExternalID: item.ExternalID,
			ProductID:  item.ProductID,
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal,
			Total:      item.Total,
			TaxTotal:   item.TaxTotal,
		})
	}

	applySessionMeta(o, remote.Meta)

	attr := attribution.Extract(buildSignals(remote, o.ReferrerURL))
	o.RawSource = attr.Source
	o.RawMedium = attr.Medium
	o.Source = attribution.NormalizeSource(attr.Source)
	o.Medium = attribution.NormalizeMedium(attr.Medium)
	o.Channel = attribution.Classify(o.Source, o.Medium, snapshot)

	return o
}

// buildSignals assembles attribution signals from a remote order: explicit
// meta entries, the customer note, the session referrer, and the flat
// string fields of the raw payload.
func buildSignals(remote *commerce.RemoteOrder, referrerURL string) attribution.Signals {
	sig := attribution.Signals{
		ReferrerURL:  referrerURL,
		CustomerNote: remote.CustomerNote,
		Meta:         make([]attribution.MetaEntry, 0, len(remote.Meta)),
	}
	for _, entry := range remote.Meta {
		sig.Meta = append(sig.Meta, attribution.MetaEntry{Key: entry.Key, Value: entry.Value})
	}

	// Flat top-level string fields of the verbatim payload feed the
	// alias-scanning strategies.
	if remote.RawPayload != "" {
		var flat map[string]json.RawMessage
		if err := json.Unmarshal([]byte(remote.RawPayload), &flat); err == nil {
			sig.Fields = make(map[string]string, len(flat))
			for key, raw := range flat {
				var v string
				if err := json.Unmarshal(raw, &v); err == nil && v != "" {
					sig.Fields[key] = v
				}
			}
		}
	}
	return sig
}

// Session meta keys written by the WooCommerce order attribution feature.
const (
	metaKeyReferrer         = "_wc_order_attribution_referrer"
	metaKeyDeviceType       = "_wc_order_attribution_device_type"
	metaKeySessionCount     = "_wc_order_attribution_session_count"
	metaKeySessionEntry     = "_wc_order_attribution_session_entry"
	metaKeySessionStartTime = "_wc_order_attribution_session_start_time"
	metaKeyUserAgent        = "_wc_order_attribution_user_agent"
)

// applySessionMeta copies session-level attribution meta onto the order.
func applySessionMeta(o *order.Order, meta []commerce.RemoteMetaEntry) {
	for _, entry := range meta {
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(entry.Key)) {
		case metaKeyReferrer:
			o.ReferrerURL = value
		case metaKeyDeviceType:
			o.DeviceType = value
		case metaKeySessionCount:
			if n, err := strconv.Atoi(value); err == nil {
				o.SessionCount = n
			}
		case metaKeySessionEntry:
			o.SessionEntryPage = value
		case metaKeySessionStartTime:
			for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
				if t, err := time.Parse(layout, value); err == nil {
					o.SessionStartTime = &t
					break
				}
			}
		case metaKeyUserAgent:
			o.UserAgent = value
		}
	}
}
