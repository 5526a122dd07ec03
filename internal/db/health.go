package db

import (
	"context"

	"github.com/wesm/barview/internal/query"
)

// HealthObject is the presence of one required view or table.
type HealthObject struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Type   string `json:"type,omitempty"`
}

// HealthReport lists required objects for the connected database.
type HealthReport struct {
	Database string         `json:"database"`
	Objects  []HealthObject `json:"objects"`
}

// Missing returns the names of objects absent from the database.
func (r HealthReport) Missing() []string {
	missing := []string{}
	for _, o := range r.Objects {
		if !o.Exists {
			missing = append(missing, o.Name)
		}
	}
	return missing
}

// OK reports whether every required object exists.
func (r HealthReport) OK() bool {
	return len(r.Missing()) == 0
}

// Healthcheck verifies that objects exist in the database q is
// connected to.
func Healthcheck(
	ctx context.Context, q Querier, b query.Builder, objects []query.View,
) (HealthReport, error) {
	st, err := b.Healthcheck(objects)
	if err != nil {
		return HealthReport{}, err
	}
	rows, err := q.Query(ctx, "healthcheck", st)
	if err != nil {
		return HealthReport{}, err
	}
	report := HealthReport{Objects: make([]HealthObject, 0, len(rows))}
	for _, r := range rows {
		if report.Database == "" {
			report.Database = Text(r["database_name"])
		}
		report.Objects = append(report.Objects, HealthObject{
			Name:   Text(r["object_name"]),
			Exists: Bool(r["exists_in_db"]),
			Type:   Text(r["object_type"]),
		})
	}
	return report, nil
}
