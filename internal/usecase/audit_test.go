package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

func TestAssessRiskLevels(t *testing.T) {
	cases := []struct {
		name            string
		granted         int
		denied          int
		level           domain.RiskLevel
		recommendations int
	}{
		{name: "empty window", granted: 0, denied: 0, level: domain.RiskLevelLow, recommendations: 1},
		{name: "low", granted: 90, denied: 10, level: domain.RiskLevelLow, recommendations: 1},
		{name: "medium", granted: 84, denied: 16, level: domain.RiskLevelMedium, recommendations: 1},
		{name: "medium with audit hint", granted: 75, denied: 25, level: domain.RiskLevelMedium, recommendations: 2},
		{name: "high", granted: 69, denied: 31, level: domain.RiskLevelHigh, recommendations: 2},
		{name: "boundary thirty percent", granted: 70, denied: 30, level: domain.RiskLevelMedium, recommendations: 2},
		{name: "boundary fifteen percent", granted: 85, denied: 15, level: domain.RiskLevelLow, recommendations: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assessment := AssessRisk(tc.granted, tc.denied)

			if assessment.Level != tc.level {
				t.Fatalf("expected level %q, got %q", tc.level, assessment.Level)
			}
			if len(assessment.Recommendations) != tc.recommendations {
				t.Fatalf("expected %d recommendations, got %d", tc.recommendations, len(assessment.Recommendations))
			}

			total := tc.granted + tc.denied
			if total > 0 {
				wantRate := float64(tc.denied) / float64(total)
				if assessment.DenialRate != wantRate {
					t.Fatalf("expected denial rate %f, got %f", wantRate, assessment.DenialRate)
				}
				if assessment.Score != wantRate*100 {
					t.Fatalf("expected score %f, got %f", wantRate*100, assessment.Score)
				}
			}
		})
	}
}

func decisionEntry(at time.Time, user, action, resourceID string, granted bool) domain.AuditEntry {
	result := domain.AuditResultDenied
	if granted {
		result = domain.AuditResultGranted
	}
	resourceType := "document"
	return domain.AuditEntry{
		Timestamp:    at,
		UserID:       user,
		Action:       action,
		ResourceID:   &resourceID,
		ResourceType: &resourceType,
		Result:       result,
	}
}

func TestGenerateSecurityAuditReport(t *testing.T) {
	clock := testClock()
	from := clock.Now().Add(-time.Hour)
	to := clock.Now()

	audits := &memAuditRepository{}
	inWindow := clock.Now().Add(-30 * time.Minute)

	// Three denied attempts for bob, below the test threshold of 2 for alice.
	for i := 0; i < 3; i++ {
		audits.entries = append(audits.entries, decisionEntry(inWindow.Add(time.Duration(i)*time.Minute), "bob", "delete", "doc-1", false))
	}
	audits.entries = append(audits.entries,
		decisionEntry(inWindow, "alice", "read", "doc-1", true),
		decisionEntry(inWindow.Add(time.Minute), "alice", "read", "doc-2", true),
		// Outside the window, must be ignored.
		decisionEntry(clock.Now().Add(-2*time.Hour), "alice", "read", "doc-1", false),
		// Administrative change, counted separately from checks.
		domain.AuditEntry{
			Timestamp: inWindow,
			UserID:    "admin",
			Action:    domain.AuditActionRoleAssigned,
			Result:    domain.AuditResultGranted,
		},
	)

	service := NewAuditService(audits, clock).WithViolationThreshold(2)

	report, err := service.GenerateSecurityAuditReport(context.Background(), from, to)
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}

	if report.TotalChecks != 5 {
		t.Fatalf("expected 5 checks, got %d", report.TotalChecks)
	}
	if report.Granted != 2 || report.Denied != 3 {
		t.Fatalf("expected 2 granted and 3 denied, got %d/%d", report.Granted, report.Denied)
	}
	if len(report.Changes) != 1 {
		t.Fatalf("expected 1 administrative change, got %d", len(report.Changes))
	}

	if len(report.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(report.Violations))
	}
	violation := report.Violations[0]
	if violation.PrincipalID != "bob" || violation.Type != domain.ViolationTypeExcessiveDenials {
		t.Fatalf("unexpected violation %+v", violation)
	}
	if violation.Severity != "high" || violation.DeniedCount != 3 {
		t.Fatalf("unexpected violation detail %+v", violation)
	}

	if len(report.UserActivity) != 2 {
		t.Fatalf("expected 2 user activity rows, got %d", len(report.UserActivity))
	}
	if report.UserActivity[0].PrincipalID != "alice" || report.UserActivity[1].PrincipalID != "bob" {
		t.Fatalf("expected user activity sorted by principal")
	}
	if report.UserActivity[0].Granted != 2 || report.UserActivity[1].Denied != 3 {
		t.Fatalf("unexpected user activity counts %+v", report.UserActivity)
	}

	if len(report.ResourceActivity) != 2 {
		t.Fatalf("expected 2 resource activity rows, got %d", len(report.ResourceActivity))
	}
	if report.ResourceActivity[0].ResourceID != "doc-1" {
		t.Fatalf("expected resource activity sorted by resource id")
	}
	if report.ResourceActivity[0].Checks != 4 {
		t.Fatalf("expected 4 checks on doc-1, got %d", report.ResourceActivity[0].Checks)
	}

	// 3 of 5 denied puts the window into high risk.
	if report.Risk.Level != domain.RiskLevelHigh {
		t.Fatalf("expected high risk, got %q", report.Risk.Level)
	}
}

func TestDetectViolationsThreshold(t *testing.T) {
	clock := testClock()
	from := clock.Now().Add(-time.Hour)
	to := clock.Now()

	audits := &memAuditRepository{}
	at := clock.Now().Add(-30 * time.Minute)
	// Exactly at the threshold: not flagged. One past it: flagged.
	for i := 0; i < 2; i++ {
		audits.entries = append(audits.entries, decisionEntry(at.Add(time.Duration(i)*time.Second), "alice", "read", "doc-1", false))
	}
	for i := 0; i < 3; i++ {
		audits.entries = append(audits.entries, decisionEntry(at.Add(time.Duration(i)*time.Second), "bob", "read", "doc-1", false))
	}

	service := NewAuditService(audits, clock).WithViolationThreshold(2)

	violations, err := service.DetectViolations(context.Background(), from, to)
	if err != nil {
		t.Fatalf("detect violations: %v", err)
	}

	if len(violations) != 1 {
		t.Fatalf("expected only the principal past the threshold, got %d", len(violations))
	}
	if violations[0].PrincipalID != "bob" {
		t.Fatalf("expected bob, got %s", violations[0].PrincipalID)
	}
}

func TestAuditRecorderAssignsMonotonicSequence(t *testing.T) {
	clock := testClock()
	audits := &memAuditRepository{}
	recorder := NewAuditRecorder(audits, clock, zap.NewNop(), 16)

	recorder.Record(domain.AuditEntry{UserID: "alice", Action: "read", Result: domain.AuditResultGranted})
	recorder.Record(domain.AuditEntry{UserID: "alice", Action: "update", Result: domain.AuditResultDenied})
	recorder.Record(domain.AuditEntry{UserID: "bob", Action: "read", Result: domain.AuditResultGranted})

	recorder.Close()

	entries := audits.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 persisted entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Sequence != int64(i+1) {
			t.Fatalf("entry %d: expected sequence %d, got %d", i, i+1, entry.Sequence)
		}
		if entry.ID == "" {
			t.Fatalf("entry %d: expected id to be generated", i)
		}
		if !entry.Timestamp.Equal(clock.Now()) {
			t.Fatalf("entry %d: expected timestamp to default to the clock", i)
		}
	}
	if entries[0].Action != "read" || entries[1].Action != "update" {
		t.Fatalf("expected arrival order to be preserved")
	}
}

func TestAuditRecorderCloseIsIdempotent(t *testing.T) {
	clock := testClock()
	recorder := NewAuditRecorder(&memAuditRepository{}, clock, zap.NewNop(), 4)

	recorder.Close()
	recorder.Close()
}

func TestAuditRecorderSurvivesAppendFailure(t *testing.T) {
	clock := testClock()
	audits := &memAuditRepository{appendErr: errBackend}
	recorder := NewAuditRecorder(audits, clock, zap.NewNop(), 4)

	recorder.Record(domain.AuditEntry{UserID: "alice", Action: "read", Result: domain.AuditResultGranted})
	recorder.Close()

	audits.appendErr = nil
	if got := len(audits.Entries()); got != 0 {
		t.Fatalf("failed appends are logged and dropped, got %d entries", got)
	}
}
