package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
)

// DefaultViolationThreshold is the denied-attempt count above which a
// principal is flagged within a report window.
const DefaultViolationThreshold = 10

const auditAppendTimeout = 5 * time.Second

// AuditRecorder appends audit entries asynchronously through a single-writer
// queue. A monotonic sequence number is assigned at enqueue time so arrival
// order per principal survives the asynchronous persistence path.
type AuditRecorder struct {
	audits port.AuditRepository
	clock  port.Clock
	logger *zap.Logger

	mu  sync.Mutex
	seq int64

	entries chan domain.AuditEntry
	done    chan struct{}
	once    sync.Once
}

// NewAuditRecorder starts the append queue with the given buffer size.
func NewAuditRecorder(audits port.AuditRepository, clock port.Clock, logger *zap.Logger, queueSize int) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = port.SystemClock{}
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	r := &AuditRecorder{
		audits:  audits,
		clock:   clock,
		logger:  logger,
		entries: make(chan domain.AuditEntry, queueSize),
		done:    make(chan struct{}),
	}

	go r.drain()

	return r
}

func (r *AuditRecorder) drain() {
	defer close(r.done)

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), auditAppendTimeout)
		if err := r.audits.Append(ctx, entry); err != nil {
			r.logger.Error("audit append failed",
				zap.String("entry_id", entry.ID),
				zap.Int64("sequence", entry.Sequence),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Record enqueues an entry, filling in ID, sequence, and timestamp. The send
// blocks when the queue is full rather than dropping audit records.
func (r *AuditRecorder) Record(entry domain.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.clock.Now()
	}

	r.mu.Lock()
	r.seq++
	entry.Sequence = r.seq
	r.mu.Unlock()

	r.entries <- entry
}

// Close stops accepting entries and waits for the queue to drain.
func (r *AuditRecorder) Close() {
	r.once.Do(func() {
		close(r.entries)
	})
	<-r.done
}

// AuditService derives reports and risk analytics from the audit log.
type AuditService struct {
	audits             port.AuditRepository
	clock              port.Clock
	violationThreshold int
}

// NewAuditService constructs the read-side audit aggregator.
func NewAuditService(audits port.AuditRepository, clock port.Clock) *AuditService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &AuditService{
		audits:             audits,
		clock:              clock,
		violationThreshold: DefaultViolationThreshold,
	}
}

// WithViolationThreshold overrides the denied-attempt threshold.
func (s *AuditService) WithViolationThreshold(threshold int) *AuditService {
	if threshold > 0 {
		s.violationThreshold = threshold
	}
	return s
}

// GenerateSecurityAuditReport aggregates the log over [from, to]: decision
// counts, the administrative change log, detected violations, per-user and
// per-resource activity, and an overall risk assessment.
func (s *AuditService) GenerateSecurityAuditReport(ctx context.Context, from, to time.Time) (*domain.SecurityAuditReport, error) {
	entries, err := s.audits.ListRange(ctx, from, to)
	if err != nil {
		return nil, persistence("list audit entries", err)
	}

	report := &domain.SecurityAuditReport{From: from, To: to}

	userActivity := make(map[string]*domain.UserActivity)
	resourceActivity := make(map[string]*domain.ResourceActivity)
	deniedByPrincipal := make(map[string]int)

	for _, entry := range entries {
		if entry.IsChange() {
			report.Changes = append(report.Changes, entry)
			continue
		}

		report.TotalChecks++
		granted := entry.Result == domain.AuditResultGranted
		if granted {
			report.Granted++
		} else {
			report.Denied++
			deniedByPrincipal[entry.UserID]++
		}

		ua, ok := userActivity[entry.UserID]
		if !ok {
			ua = &domain.UserActivity{PrincipalID: entry.UserID}
			userActivity[entry.UserID] = ua
		}
		ua.Checks++
		if granted {
			ua.Granted++
		} else {
			ua.Denied++
		}
		if entry.Timestamp.After(ua.LastActivity) {
			ua.LastActivity = entry.Timestamp
		}

		if entry.ResourceID != nil {
			ra, ok := resourceActivity[*entry.ResourceID]
			if !ok {
				ra = &domain.ResourceActivity{ResourceID: *entry.ResourceID}
				if entry.ResourceType != nil {
					ra.ResourceType = *entry.ResourceType
				}
				resourceActivity[*entry.ResourceID] = ra
			}
			ra.Checks++
			if granted {
				ra.Granted++
			} else {
				ra.Denied++
			}
		}
	}

	for principalID, denied := range deniedByPrincipal {
		if denied > s.violationThreshold {
			report.Violations = append(report.Violations, domain.Violation{
				PrincipalID: principalID,
				Type:        domain.ViolationTypeExcessiveDenials,
				Severity:    "high",
				DeniedCount: denied,
				From:        from,
				To:          to,
			})
		}
	}
	sort.Slice(report.Violations, func(i, j int) bool {
		return report.Violations[i].PrincipalID < report.Violations[j].PrincipalID
	})

	report.UserActivity = make([]domain.UserActivity, 0, len(userActivity))
	for _, ua := range userActivity {
		report.UserActivity = append(report.UserActivity, *ua)
	}
	sort.Slice(report.UserActivity, func(i, j int) bool {
		return report.UserActivity[i].PrincipalID < report.UserActivity[j].PrincipalID
	})

	report.ResourceActivity = make([]domain.ResourceActivity, 0, len(resourceActivity))
	for _, ra := range resourceActivity {
		report.ResourceActivity = append(report.ResourceActivity, *ra)
	}
	sort.Slice(report.ResourceActivity, func(i, j int) bool {
		return report.ResourceActivity[i].ResourceID < report.ResourceActivity[j].ResourceID
	})

	report.Risk = AssessRisk(report.Granted, report.Denied)

	return report, nil
}

// DetectViolations flags principals whose denied-attempt count within the
// window exceeds the threshold.
func (s *AuditService) DetectViolations(ctx context.Context, from, to time.Time) ([]domain.Violation, error) {
	report, err := s.GenerateSecurityAuditReport(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return report.Violations, nil
}

// AssessRisk scores a decision window: riskScore = denialRate * 100, with
// level high above 0.30, medium above 0.15, low otherwise. Recommendations
// are templated per level, with an extra bucket above a 0.20 denial rate.
func AssessRisk(granted, denied int) domain.RiskAssessment {
	total := granted + denied

	var rate float64
	if total > 0 {
		rate = float64(denied) / float64(total)
	}

	assessment := domain.RiskAssessment{
		Score:      rate * 100,
		DenialRate: rate,
	}

	switch {
	case rate > 0.30:
		assessment.Level = domain.RiskLevelHigh
		assessment.Recommendations = append(assessment.Recommendations,
			"Review permission policies: the denial rate indicates probing or misconfigured access")
	case rate > 0.15:
		assessment.Level = domain.RiskLevelMedium
		assessment.Recommendations = append(assessment.Recommendations,
			"Monitor denied access patterns for unusual activity")
	default:
		assessment.Level = domain.RiskLevelLow
		assessment.Recommendations = append(assessment.Recommendations,
			"Access patterns are within normal parameters")
	}

	if rate > 0.20 {
		assessment.Recommendations = append(assessment.Recommendations,
			"Audit role assignments for least-privilege compliance")
	}

	return assessment
}

// decisionAuditEntry builds the audit record for one decision.
func decisionAuditEntry(decision domain.Decision) domain.AuditEntry {
	result := domain.AuditResultDenied
	if decision.Granted {
		result = domain.AuditResultGranted
	}

	resourceID := decision.Resource.ID
	resourceType := decision.Resource.Type

	return domain.AuditEntry{
		Timestamp:    decision.CheckedAt,
		UserID:       decision.PrincipalID,
		Action:       decision.Action,
		ResourceID:   &resourceID,
		ResourceType: &resourceType,
		Result:       result,
		Context: map[string]string{
			"source":    string(decision.Source),
			"cache_hit": fmt.Sprintf("%t", decision.CacheHit),
		},
	}
}
