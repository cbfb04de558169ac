package reconmodel

import (
	"log"

	"gorm.io/gorm"
)

// MigrateTables first runs the one-time funding_*->payment_* column
// rename described in the design notes (§9): the legacy naming meant the
// outbound-payment leg, while received-payment columns are the true
// inbound funding. It then runs additive AutoMigrate for every table this
// service owns. The rename runs before AutoMigrate so that AutoMigrate
// does not first add empty payment_* columns beside the legacy ones; it
// runs once per process start and is a no-op once applied.
func MigrateTables(db *gorm.DB) error {
	if err := migrateFundingColumnsToPayment(db); err != nil {
		return err
	}
	return db.AutoMigrate(
		&ReconciliationRecord{},
		&CachedEmail{},
		&CachedInvoice{},
		&CachedPayrun{},
		&CachedPayment{},
		&ReceivedPayment{},
		&SyncState{},
		&SyncRun{},
		&SyncBatchKey{},
	)
}

// migrateFundingColumnsToPayment renames any pre-existing legacy
// funding_* columns on reconciliation_records to payment_*, and leaves a
// compatibility view named reconciliation_records_legacy_funding for one
// release so any out-of-process report still reading the old names keeps
// working. Safe to run on a fresh schema (no legacy columns) or a
// database that has already been migrated (both no-ops).
func migrateFundingColumnsToPayment(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&ReconciliationRecord{}) {
		return nil
	}

	legacyToCurrent := map[string]string{
		"funding_amount":            "payment_amount",
		"funding_account_id":        "payment_account_id",
		"funding_date":              "payment_date",
		"funding_currency":          "payment_currency",
		"funding_status":            "payment_status",
		"funding_recipient":         "payment_recipient",
		"funding_recipient_country": "payment_recipient_country",
	}

	renamed := false
	for legacy, current := range legacyToCurrent {
		if m.HasColumn(&ReconciliationRecord{}, legacy) && !m.HasColumn(&ReconciliationRecord{}, current) {
			if err := m.RenameColumn(&ReconciliationRecord{}, legacy, current); err != nil {
				return err
			}
			renamed = true
		}
	}

	if renamed {
		log.Printf("migrated legacy funding_* columns to payment_* on reconciliation_records")
		if err := db.Exec(`CREATE VIEW IF NOT EXISTS reconciliation_records_legacy_funding AS
			SELECT nvc_code,
			       payment_amount            AS funding_amount,
			       payment_account_id        AS funding_account_id,
			       payment_date              AS funding_date,
			       payment_currency          AS funding_currency,
			       payment_status            AS funding_status,
			       payment_recipient         AS funding_recipient,
			       payment_recipient_country AS funding_recipient_country
			FROM reconciliation_records`).Error; err != nil {
			return err
		}
	}

	return nil
}
