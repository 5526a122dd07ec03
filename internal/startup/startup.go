// Package startup decides whether the dashboard shows the open
// operation in realtime or a historical range.
package startup

import (
	"context"
	"errors"
	"fmt"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
)

// ErrNoRange means no default range exists and the caller must
// pick one explicitly.
var ErrNoRange = errors.New("no open or closed operation: choose an operation or date range")

type Mode string

const (
	Realtime   Mode = "realtime"
	Historical Mode = "historical"
)

// Context is the dashboard state derived from the database at
// request time.
type Context struct {
	Mode            Mode       `json:"mode"`
	View            query.View `json:"view_name"`
	OperationID     *int64     `json:"operation_id"`
	OperationStatus string     `json:"operation_status,omitempty"`
	HasRows         bool       `json:"has_rows"`
	Message         string     `json:"message"`
}

// Resolve looks for an open operation. If one exists the context
// is realtime over the current-operation view; otherwise it is
// historical over the all-operations view, pointing at the last
// closed operation when there is one.
func Resolve(
	ctx context.Context, q db.Querier, b query.Builder,
) (Context, error) {
	rows, err := q.Query(ctx, "startup_active_operation", b.ActiveOperation())
	if err != nil {
		return Context{}, fmt.Errorf("resolving active operation: %w", err)
	}
	if len(rows) > 0 {
		id, status := operationOf(rows[0])
		st, err := b.HasRows(query.ViewCurrent)
		if err != nil {
			return Context{}, err
		}
		sample, err := q.Query(ctx, "startup_has_rows", st)
		if err != nil {
			return Context{}, fmt.Errorf("checking realtime view: %w", err)
		}
		c := Context{
			Mode:            Realtime,
			View:            query.ViewCurrent,
			OperationID:     &id,
			OperationStatus: status,
			HasRows:         len(sample) > 0,
		}
		if c.HasRows {
			c.Message = fmt.Sprintf(
				"Operativa #%d abierta: mostrando ventas en tiempo real.", id,
			)
		} else {
			c.Message = fmt.Sprintf(
				"Operativa #%d abierta: aún no hay ventas registradas.", id,
			)
		}
		return c, nil
	}

	rows, err = q.Query(ctx, "startup_last_closed_operation", b.LastClosedOperation())
	if err != nil {
		return Context{}, fmt.Errorf("resolving last closed operation: %w", err)
	}
	c := Context{Mode: Historical, View: query.ViewAll}
	if len(rows) == 0 {
		c.Message = "No hay operativas abiertas ni cerradas. " +
			"Elige un rango de operativas o fechas."
		return c, nil
	}
	id, status := operationOf(rows[0])
	c.OperationID = &id
	c.OperationStatus = status
	c.Message = fmt.Sprintf(
		"No hay operativa abierta. Mostrando la última operativa cerrada #%d; "+
			"elige un rango para consultar otras.", id,
	)
	return c, nil
}

func operationOf(r db.Row) (int64, string) {
	id := db.Int(r["id_operacion"])
	return id, db.Text(r["estado_operacion"])
}

// DefaultScope is the scope used when the caller passes no
// explicit range: the context's operation on its view.
func DefaultScope(c Context) (metrics.Scope, error) {
	view := c.View
	if view == "" {
		view = query.ViewAll
	}
	if c.OperationID != nil {
		id := *c.OperationID
		return metrics.Scope{
			View:    view,
			Filters: query.OperationRange(id, id),
			Mode:    query.ModeOps,
		}, nil
	}
	if c.Mode == Realtime {
		return metrics.Scope{View: view, Mode: query.ModeNone}, nil
	}
	return metrics.Scope{}, ErrNoRange
}
