// Package directory provides attribute sources for condition evaluation.
package directory

import (
	"context"
	"sync"

	"github.com/arklim/enterprise-authz/internal/core/port"
)

// StaticProvider resolves attributes from in-memory maps. Unknown attributes
// resolve to the empty string rather than an error, so conditions against
// absent attributes simply fail to match.
type StaticProvider struct {
	mu        sync.RWMutex
	users     map[string]map[string]string
	resources map[string]map[string]string
}

// NewStaticProvider constructs an empty provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		users:     make(map[string]map[string]string),
		resources: make(map[string]map[string]string),
	}
}

// SetUserAttribute records one attribute for a principal.
func (p *StaticProvider) SetUserAttribute(principalID, attribute, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	attrs, ok := p.users[principalID]
	if !ok {
		attrs = make(map[string]string)
		p.users[principalID] = attrs
	}
	attrs[attribute] = value
}

// SetResourceAttribute records one attribute for a resource.
func (p *StaticProvider) SetResourceAttribute(resourceID, attribute, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	attrs, ok := p.resources[resourceID]
	if !ok {
		attrs = make(map[string]string)
		p.resources[resourceID] = attrs
	}
	attrs[attribute] = value
}

// UserAttribute resolves a principal attribute.
func (p *StaticProvider) UserAttribute(_ context.Context, principalID, attribute string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[principalID][attribute], nil
}

// ResourceAttribute resolves a resource attribute.
func (p *StaticProvider) ResourceAttribute(_ context.Context, resourceID, attribute string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resources[resourceID][attribute], nil
}

var _ port.AttributeProvider = (*StaticProvider)(nil)
