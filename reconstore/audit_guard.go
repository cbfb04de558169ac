package reconstore

import (
	"time"

	"gorm.io/gorm"
)

// AuditGuardPlugin enforces invariant (b) on ReconciliationRecord rows:
// first_seen_at <= last_updated_at <= now. Rather than trust every call
// site to set these fields correctly, the plugin fills them in on the
// way to the database — adapted from this codebase's existing
// before-callback GORM plugin pattern, scoped to schema reflection the
// same way, but driving audit timestamps instead of a tenant-scope
// WHERE clause.
type AuditGuardPlugin struct{}

func NewAuditGuardPlugin() *AuditGuardPlugin { return &AuditGuardPlugin{} }

func (p *AuditGuardPlugin) Name() string { return "audit_guard" }

func (p *AuditGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("audit_guard:create", auditGuardOnCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("audit_guard:update", auditGuardOnUpdate); err != nil {
		return err
	}
	return nil
}

func auditGuardOnCreate(db *gorm.DB) {
	if !hasAuditColumns(db) {
		return
	}
	now := time.Now().UTC()
	if field := db.Statement.Schema.LookUpField("FirstSeenAt"); field != nil {
		if _, isZero := field.ValueOf(db.Statement.Context, db.Statement.ReflectValue); isZero {
			_ = field.Set(db.Statement.Context, db.Statement.ReflectValue, now)
		}
	}
	if field := db.Statement.Schema.LookUpField("LastUpdatedAt"); field != nil {
		if _, isZero := field.ValueOf(db.Statement.Context, db.Statement.ReflectValue); isZero {
			_ = field.Set(db.Statement.Context, db.Statement.ReflectValue, now)
		}
	}
}

func auditGuardOnUpdate(db *gorm.DB) {
	if !hasAuditColumns(db) {
		return
	}
	if db.Statement.Changed() {
		db.Statement.SetColumn("last_updated_at", time.Now().UTC())
	}
}

func hasAuditColumns(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return false
	}
	return db.Statement.Schema.LookUpField("FirstSeenAt") != nil &&
		db.Statement.Schema.LookUpField("LastUpdatedAt") != nil
}
