package query

import (
	"fmt"
	"strings"
)

// Dialect renders the few expressions that differ between the
// supported database engines.
type Dialect interface {
	Name() string
	// Hour extracts the hour of day (0-23) from a datetime
	// expression.
	Hour(expr string) string
	// Healthcheck returns one row per object with columns
	// object_name, exists_in_db, object_type and database_name.
	Healthcheck(objects []View) string
}

// MySQL is the dialect of the production point-of-sale database.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Hour(expr string) string {
	return "HOUR(" + expr + ")"
}

func (MySQL) Healthcheck(objects []View) string {
	return fmt.Sprintf(`
		SELECT
			req.object_name,
			CASE WHEN t.TABLE_NAME IS NULL THEN 0 ELSE 1 END AS exists_in_db,
			t.TABLE_TYPE AS object_type,
			DATABASE() AS database_name
		FROM (%s) req
		LEFT JOIN information_schema.TABLES t
			ON t.TABLE_SCHEMA = DATABASE()
			AND t.TABLE_NAME = req.object_name
		ORDER BY req.object_name`, objectList(objects))
}

// SQLite serves local replicas and test fixtures.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Hour(expr string) string {
	return "CAST(strftime('%H', " + expr + ") AS INTEGER)"
}

func (SQLite) Healthcheck(objects []View) string {
	return fmt.Sprintf(`
		SELECT
			req.object_name,
			CASE WHEN m.name IS NULL THEN 0 ELSE 1 END AS exists_in_db,
			UPPER(m.type) AS object_type,
			'main' AS database_name
		FROM (%s) req
		LEFT JOIN sqlite_master m
			ON m.name = req.object_name
			AND m.type IN ('table', 'view')
		ORDER BY req.object_name`, objectList(objects))
}

// DialectFor returns the dialect registered under a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// objectList renders allow-listed names as a UNION ALL of
// literals. Callers validate names first.
func objectList(objects []View) string {
	parts := make([]string, len(objects))
	for i, o := range objects {
		if i == 0 {
			parts[i] = "SELECT '" + string(o) + "' AS object_name"
			continue
		}
		parts[i] = "SELECT '" + string(o) + "'"
	}
	return strings.Join(parts, " UNION ALL ")
}
