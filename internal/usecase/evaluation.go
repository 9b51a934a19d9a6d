package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// DefaultDecisionTTL bounds how long a cached decision may be served.
const DefaultDecisionTTL = 5 * time.Minute

// DecisionMetrics receives decision and cache observations. Implemented by
// the telemetry package; nil-safe at every call site.
type DecisionMetrics interface {
	ObserveDecision(result, source string)
	ObserveCacheLookup(hit bool)
}

// EvaluationService answers authorization queries. Decide is fail-closed: any
// internal failure degrades to a logged error and a deny, indistinguishable
// from a policy-driven denial to the caller.
type EvaluationService struct {
	store      *PolicyStore
	resources  port.ResourceRepository
	acls       port.ACLRepository
	cache      port.DecisionCache
	conditions *ConditionRegistry
	recorder   *AuditRecorder
	clock      port.Clock
	logger     *zap.Logger
	metrics    DecisionMetrics
	cacheTTL   time.Duration
}

// NewEvaluationService wires the decision path.
func NewEvaluationService(
	store *PolicyStore,
	resources port.ResourceRepository,
	acls port.ACLRepository,
	cache port.DecisionCache,
	conditions *ConditionRegistry,
	recorder *AuditRecorder,
	clock port.Clock,
	logger *zap.Logger,
) *EvaluationService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EvaluationService{
		store:      store,
		resources:  resources,
		acls:       acls,
		cache:      cache,
		conditions: conditions,
		recorder:   recorder,
		clock:      clock,
		logger:     logger,
		cacheTTL:   DefaultDecisionTTL,
	}
}

// WithCacheTTL overrides the decision cache TTL.
func (s *EvaluationService) WithCacheTTL(ttl time.Duration) *EvaluationService {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// WithMetrics attaches decision metrics.
func (s *EvaluationService) WithMetrics(metrics DecisionMetrics) *EvaluationService {
	s.metrics = metrics
	return s
}

// Decide answers a single authorization query. It never returns an error:
// internal failures deny. Every call appends an audit entry; successful
// evaluations populate the decision cache.
func (s *EvaluationService) Decide(ctx context.Context, principalID, action string, resource domain.Resource, evalCtx map[string]string) bool {
	decision := s.decide(ctx, principalID, action, resource, evalCtx, nil)
	return decision.Granted
}

// DecideDetailed is Decide with the full decision record, for transports that
// surface the source and cache-hit flag.
func (s *EvaluationService) DecideDetailed(ctx context.Context, principalID, action string, resource domain.Resource, evalCtx map[string]string) domain.Decision {
	return s.decide(ctx, principalID, action, resource, evalCtx, nil)
}

func (s *EvaluationService) decide(ctx context.Context, principalID, action string, resource domain.Resource, evalCtx map[string]string, trace *[]string) domain.Decision {
	now := s.clock.Now()
	decision := domain.Decision{
		PrincipalID: principalID,
		Action:      action,
		Resource:    resource,
		CheckedAt:   now,
	}

	key := domain.CacheKey(principalID, action, resource.ID)
	guard, guarded := s.cache.(*DecisionCacheGuard)
	var epoch uint64
	if guarded {
		epoch = guard.Epoch()
	}

	if value, found, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("decision cache lookup failed", zap.String("key", key), zap.Error(err))
	} else if found {
		if s.metrics != nil {
			s.metrics.ObserveCacheLookup(true)
		}
		decision.Granted = value
		decision.Source = domain.SourceCache
		decision.CacheHit = true
		s.audit(decision)
		return decision
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(false)
	}

	req := EvaluationRequest{
		PrincipalID: principalID,
		Action:      action,
		Resource:    resource,
		Context:     evalCtx,
	}

	granted, source, err := s.evaluate(ctx, req, now, trace)
	if err != nil {
		// Fail closed. The caller sees an ordinary denial.
		s.logger.Error("evaluation failed, denying",
			zap.String("principal_id", principalID),
			zap.String("action", action),
			zap.String("resource_id", resource.ID),
			zap.Error(err),
		)
		decision.Granted = false
		decision.Source = domain.SourceError
		s.audit(decision)
		return decision
	}

	// A write-back that raced an invalidation is silently dropped: a fresh
	// call must re-evaluate rather than inherit this pre-mutation result.
	var putErr error
	if guarded {
		putErr = guard.PutIfCurrent(ctx, key, granted, s.cacheTTL, epoch)
	} else {
		putErr = s.cache.Put(ctx, key, granted, s.cacheTTL)
	}
	if putErr != nil {
		s.logger.Warn("decision cache store failed", zap.String("key", key), zap.Error(putErr))
	}

	decision.Granted = granted
	decision.Source = source
	if s.metrics != nil {
		result := "denied"
		if granted {
			result = "granted"
		}
		s.metrics.ObserveDecision(result, string(source))
	}
	s.audit(decision)
	return decision
}

// evaluate walks the precedence chain: direct grants, role permissions,
// policies, resource grants, ACL entries, default deny. The first step that
// yields a result wins.
func (s *EvaluationService) evaluate(ctx context.Context, req EvaluationRequest, now time.Time, trace *[]string) (bool, domain.DecisionSource, error) {
	snap := s.store.Snapshot()

	for _, grant := range snap.DirectGrants(req.PrincipalID) {
		if grant.Matches(req.Action, req.Resource.Type) {
			return grant.IsGranted, domain.SourceDirect, nil
		}
	}

	for _, assignment := range snap.ActiveAssignments(req.PrincipalID, now) {
		role, ok := snap.Role(assignment.RoleID)
		if !ok {
			continue
		}
		for _, perm := range role.Permissions {
			if perm.Matches(req.Action, req.Resource.Type) {
				return perm.IsGranted, domain.SourceRole, nil
			}
		}
	}

	for _, policy := range snap.Policies() {
		if !policy.IsActive || !policy.Scope.AppliesTo(req.PrincipalID, req.Action, req.Resource.Type) {
			continue
		}
		if trace != nil {
			*trace = append(*trace, policy.ID)
		}
		for _, rule := range policy.Rules {
			applies, err := s.conditions.EvaluateAll(ctx, rule.Conditions, req)
			if err != nil {
				return false, domain.SourceError, fmt.Errorf("policy %s rule %s: %w", policy.ID, rule.ID, err)
			}
			if applies {
				return rule.Effect == domain.EffectAllow, domain.SourcePolicy, nil
			}
		}
	}

	perms, err := s.resources.GetByResource(ctx, req.Resource.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, domain.SourceError, fmt.Errorf("load resource permissions: %w", err)
	}
	if perms != nil {
		for _, grant := range perms.Grants {
			if grant.PrincipalID == req.PrincipalID && grant.Action == req.Action {
				return grant.IsGranted, domain.SourceResource, nil
			}
		}
	}

	acls, err := s.acls.ListByResource(ctx, req.Resource.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, domain.SourceError, fmt.Errorf("load acls: %w", err)
	}
	for _, acl := range acls {
		for _, entry := range acl.Entries {
			if entry.PrincipalID == req.PrincipalID && entry.Action == req.Action {
				return entry.IsGranted, domain.SourceACL, nil
			}
		}
	}

	return false, domain.SourceDefault, nil
}

func (s *EvaluationService) audit(decision domain.Decision) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(decisionAuditEntry(decision))
}

// ComplexEvaluationInput describes a composite query: a set of actions
// against a set of resources plus supplemental conditions.
type ComplexEvaluationInput struct {
	PrincipalID string
	Actions     []string
	Resources   []domain.Resource
	Conditions  []domain.PermissionCondition
	Context     map[string]string
}

// EvaluateComplex runs the decision chain per (action, resource) pair and
// aggregates per action: an action is granted only when every resource
// grants it. Supplemental conditions are ANDed separately. The returned
// trace lists the policies consulted per pair; pairs served from cache
// consulted none. Like Decide, this path is fail-closed and never errors.
func (s *EvaluationService) EvaluateComplex(ctx context.Context, input ComplexEvaluationInput) *domain.ComplexEvaluation {
	out := &domain.ComplexEvaluation{
		Results:           make(map[string]bool, len(input.Actions)),
		ConsultedPolicies: make(map[string][]string),
	}

	for _, action := range input.Actions {
		granted := len(input.Resources) > 0
		for _, resource := range input.Resources {
			trace := make([]string, 0, 4)
			decision := s.decide(ctx, input.PrincipalID, action, resource, input.Context, &trace)
			out.ConsultedPolicies[domain.PairKey(action, resource.ID)] = trace
			granted = granted && decision.Granted
		}
		out.Results[action] = granted
	}

	met, err := s.conditions.EvaluateAll(ctx, input.Conditions, EvaluationRequest{
		PrincipalID: input.PrincipalID,
		Context:     input.Context,
	})
	if err != nil {
		s.logger.Error("supplemental condition evaluation failed, treating as unmet",
			zap.String("principal_id", input.PrincipalID),
			zap.Error(err),
		)
		met = false
	}
	out.ConditionsMet = met

	return out
}
