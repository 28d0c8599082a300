// Package audit records token issuance and stream redemption.
package audit

import (
	"fmt"

	"github.com/decentraminds/osmosis-streaming-driver/internal/config"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

const (
	TypeFile   = "file"
	TypeMemory = "memory"
)

// New creates the auditor described by cfg. A disabled config yields a NoopAuditor.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case TypeFile:
		return NewFileAuditor(cfg.Path)
	case TypeMemory, "":
		return NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}
