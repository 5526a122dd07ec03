package startup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
)

// Operation is one entry of the operation selector.
type Operation struct {
	ID           int64  `json:"id"`
	Fecha        string `json:"fecha"`
	Nombre       string `json:"nombre_operacion"`
	EstadoID     int64  `json:"estado_operacion"`
	EstadoNombre string `json:"estado_operacion_nombre"`
}

// Label renders the selector text, e.g. "#120 · 2024-06-01 · CERRADA".
func (o Operation) Label() string {
	label := "#" + strconv.FormatInt(o.ID, 10)
	if o.Fecha != "" {
		label += " · " + o.Fecha
	}
	if o.EstadoNombre != "" {
		label += " · " + o.EstadoNombre
	}
	return label
}

// ListOperations returns the most recent enabled operations,
// newest first.
func ListOperations(
	ctx context.Context, q db.Querier, b query.Builder,
) ([]Operation, error) {
	rows, err := q.Query(ctx, "list_operations", b.ListOperations())
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	ops := make([]Operation, 0, len(rows))
	for _, r := range rows {
		ops = append(ops, Operation{
			ID:           db.Int(r["id"]),
			Fecha:        toDate(r["fecha"]),
			Nombre:       db.Text(r["nombre_operacion"]),
			EstadoID:     db.Int(r["estado_operacion"]),
			EstadoNombre: db.Text(r["estado_operacion_nombre"]),
		})
	}
	return ops, nil
}

func toDate(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return db.Text(v)
}
