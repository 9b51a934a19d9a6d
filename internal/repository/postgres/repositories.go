package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Roles       *RoleRepository
	Assignments *AssignmentRepository
	Policies    *PolicyRepository
	Grants      *GrantRepository
	Resources   *ResourceRepository
	ACLs        *ACLRepository
	Audit       *AuditRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Roles:       NewRoleRepository(pool),
		Assignments: NewAssignmentRepository(pool),
		Policies:    NewPolicyRepository(pool),
		Grants:      NewGrantRepository(pool),
		Resources:   NewResourceRepository(pool),
		ACLs:        NewACLRepository(pool),
		Audit:       NewAuditRepository(pool),
	}
}
