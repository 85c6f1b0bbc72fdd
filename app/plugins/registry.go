// Package plugins maps configured backend names to implementations.
package plugins

import (
	"github.com/kilianp07/fieldplan/config"
	"github.com/kilianp07/fieldplan/core/factory"
	"github.com/kilianp07/fieldplan/core/planning/audit"
)

// AuditStores holds the decision log backends keyed by name.
var AuditStores = factory.NewRegistry[audit.Store]()

// RegisterAuditStore adds a decision log backend.
func RegisterAuditStore(name string, f factory.Factory[audit.Store]) error {
	return AuditStores.Register(name, f)
}

// NewAuditStore builds the backend selected by cfg.
func NewAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	return AuditStores.Create(factory.ModuleConfig{
		Type: cfg.Backend,
		Conf: map[string]any{
			"backend":      cfg.Backend,
			"path":         cfg.Path,
			"max_size_mb":  cfg.MaxSizeMB,
			"max_backups":  cfg.MaxBackups,
			"max_age_days": cfg.MaxAgeDays,
		},
	})
}
