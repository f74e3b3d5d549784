// Package rls pins the row-level-security tenant for a transaction.
package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant sets the app.current_org_id GUC for the current transaction
// so the Postgres isolation policies apply. Must run inside a transaction;
// SET LOCAL outside one is a silent no-op. Non-Postgres dialects (sqlite
// test databases) have no policies to bind, so the call is skipped.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SET LOCAL app.current_org_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}
