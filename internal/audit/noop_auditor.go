package audit

import "github.com/decentraminds/osmosis-streaming-driver/internal/core"

var _ core.Auditor = (*NoopAuditor)(nil)

// NoopAuditor drops every entry. Used when auditing is disabled.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(core.AuditEntry) error {
	return nil
}

func (n *NoopAuditor) Close() error {
	return nil
}
