package plugins

import (
	"github.com/kilianp07/fieldplan/config"
	"github.com/kilianp07/fieldplan/core/factory"
	"github.com/kilianp07/fieldplan/core/planning/audit"
)

func init() {
	_ = RegisterAuditStore("none", func(map[string]any) (audit.Store, error) {
		return audit.NopStore{}, nil
	})
	_ = RegisterAuditStore("jsonl", func(conf map[string]any) (audit.Store, error) {
		var ac config.AuditConfig
		if err := factory.Decode(conf, &ac); err != nil {
			return nil, err
		}
		s, err := audit.NewRotatingJSONLStore(ac.Path, ac.MaxSizeMB, ac.MaxBackups, ac.MaxAgeDays)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	_ = RegisterAuditStore("sqlite", func(conf map[string]any) (audit.Store, error) {
		var ac config.AuditConfig
		if err := factory.Decode(conf, &ac); err != nil {
			return nil, err
		}
		s, err := audit.NewSQLiteStore(ac.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
