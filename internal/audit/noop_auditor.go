package audit

import "github.com/keylease/keylease/internal/core"

// NoopAuditor discards everything. Used when auditing is disabled.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(_ core.AuditEvent) error {
	return nil
}

func (n *NoopAuditor) Close() error {
	return nil
}
