package query

import "fmt"

// Operation status codes in parameter_table (id_master = 6).
const (
	OperationOpen    = 22
	OperationClosed  = 23
	OperationReopen  = 24
	operationsMaster = 6
	maxOperations    = 200
)

func operationSelect(where string) string {
	return fmt.Sprintf(`
		SELECT
			op.id AS id_operacion,
			op.estado_operacion AS estado_operacion_id,
			eop.nombre AS estado_operacion
		FROM %s op
		LEFT JOIN %s eop
			ON eop.id = op.estado_operacion
			AND eop.id_master = %d
			AND eop.estado = 'HAB'
		WHERE op.estado = 'HAB'
			AND %s
		ORDER BY op.id DESC
		LIMIT 1`,
		TableOperations, TableParameters, operationsMaster, where,
	)
}

// ActiveOperation selects the newest open or reopened operation.
func (b Builder) ActiveOperation() Statement {
	return Statement{
		SQL: operationSelect(fmt.Sprintf(
			"op.estado_operacion IN (%d, %d)", OperationOpen, OperationReopen,
		)),
		Params: map[string]any{},
	}
}

// LastClosedOperation selects the newest closed operation.
func (b Builder) LastClosedOperation() Statement {
	return Statement{
		SQL: operationSelect(fmt.Sprintf(
			"op.estado_operacion = %d", OperationClosed,
		)),
		Params: map[string]any{},
	}
}

// HasRows probes whether view holds at least one row.
func (b Builder) HasRows(view View) (Statement, error) {
	if err := view.Validate(); err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:    fmt.Sprintf("SELECT 1 AS has_rows FROM %s LIMIT 1", view),
		Params: map[string]any{},
	}, nil
}

// ListOperations lists recent enabled operations for selectors.
func (b Builder) ListOperations() Statement {
	return Statement{
		SQL: fmt.Sprintf(`
		SELECT
			op.id,
			op.fecha,
			op.nombre_operacion,
			op.estado_operacion,
			eop.nombre AS estado_operacion_nombre
		FROM %s op
		LEFT JOIN %s eop
			ON eop.id = op.estado_operacion
			AND eop.id_master = %d
			AND eop.estado = 'HAB'
		WHERE op.estado = 'HAB'
		ORDER BY op.id DESC
		LIMIT %d`,
			TableOperations, TableParameters, operationsMaster, maxOperations,
		),
		Params: map[string]any{},
	}
}

// Healthcheck reports which of objects exist in the connected
// database.
func (b Builder) Healthcheck(objects []View) (Statement, error) {
	if len(objects) == 0 {
		return Statement{}, fmt.Errorf(
			"%w: health check requires at least one object", ErrConfiguration,
		)
	}
	for _, o := range objects {
		if err := o.Validate(); err != nil {
			return Statement{}, err
		}
	}
	return Statement{
		SQL:    b.Dialect.Healthcheck(objects),
		Params: map[string]any{},
	}, nil
}
