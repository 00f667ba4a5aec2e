// Package schema performs the structural self-audit of the warehouse store:
// after migration, each table's column set is checked against an
// expected-schema manifest. This is a sanity check, not a migration engine.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// manifest enumerates the expected column set per table.
var manifest = map[string][]string{
	"locations": {
		"id", "name", "code", "type", "parent_id",
		"is_locked", "locked_by", "locked_by_user_id", "locked_at",
		"created_at", "updated_at",
	},
	"item_locations": {
		"id", "item_id", "location_id", "client_id", "updated_by", "updated_at", "created_at",
	},
	"inventory_units": {
		"id", "unit_code", "product_id", "human_readable_id", "document_id",
		"location_id", "quantity", "notes", "created_at", "created_by",
	},
	"movements": {
		"id", "unit_id", "unit_code", "from_location_id", "to_location_id",
		"moved_by", "moved_at", "notes",
	},
	"warehouse_config": {
		"key", "value", "updated_at",
	},
	"dispatch_logs": {
		"id", "document_id", "document_type", "verified_at",
		"verified_by_user_id", "verified_by_user_name", "items", "notes",
		"vehicle_plate", "driver_name", "is_partial", "created_at",
	},
	"dispatch_containers": {
		"id", "name", "created_by", "created_at",
		"is_locked", "locked_by", "locked_by_user_id", "locked_at",
	},
	"dispatch_assignments": {
		"id", "container_id", "document_id", "document_type", "client_id",
		"client_name", "status", "sort_order", "created_at", "updated_at",
	},
}

// Audit verifies that every manifest table exists with at least the expected
// columns. Extra columns are tolerated; missing ones are reported together.
func Audit(db *gorm.DB) error {
	migrator := db.Migrator()
	var problems []string

	tables := make([]string, 0, len(manifest))
	for table := range manifest {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if !migrator.HasTable(table) {
			problems = append(problems, fmt.Sprintf("missing table %s", table))
			continue
		}

		columns, err := migrator.ColumnTypes(table)
		if err != nil {
			return fmt.Errorf("schema audit: reading columns of %s: %w", table, err)
		}

		present := make(map[string]bool, len(columns))
		for _, col := range columns {
			present[strings.ToLower(col.Name())] = true
		}

		for _, expected := range manifest[table] {
			if !present[expected] {
				problems = append(problems, fmt.Sprintf("table %s missing column %s", table, expected))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("schema audit failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Tables returns the audited table names, for logging.
func Tables() []string {
	tables := make([]string, 0, len(manifest))
	for table := range manifest {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}
