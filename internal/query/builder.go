package query

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Alias is the table alias every builder gives the primary view.
// Resolve range predicates with it.
const Alias = "v"

// MaxLimit caps every LIMIT a statement can carry.
const MaxLimit = 5000

// Default row limits per statement.
const (
	DefaultTopLimit     = 20
	DefaultIDLimit      = 50
	DefaultDetailLimit  = 500
	DefaultTableLimit   = 300
	DefaultPourLimit    = 60
	DefaultRecentOrders = 10
)

const (
	saleFinalized     = "v.tipo_salida = 'VENTA' AND v.estado_comanda = 'PROCESADO'"
	courtesyFinalized = "v.tipo_salida = 'CORTESIA' AND v.estado_comanda = 'PROCESADO'"
	printedStrict     = "v.estado_impresion = 'IMPRESO'"
	printedUsingLog   = "(v.estado_impresion = 'IMPRESO' OR ui.estado_impresion = 'IMPRESO')"
	notVoided         = "COALESCE(v.estado_comanda, '') <> 'ANULADO'"

	joinLastPrint = "LEFT JOIN " + string(ViewLastPrint) +
		" ui ON ui.id_comanda = v.id_comanda"
)

// Statement is SQL text with named (:name) parameters.
type Statement struct {
	SQL    string
	Params map[string]any
}

func newStatement(sql string, w Where) Statement {
	params := make(map[string]any, len(w.Params))
	maps.Copy(params, w.Params)
	return Statement{SQL: sql, Params: params}
}

// Builder renders the dashboard statements for one dialect.
type Builder struct {
	Dialect Dialect
	// PriorSubtotal values courtesies with sub_total_anterior
	// when the view carries it, falling back to sub_total.
	PriorSubtotal bool
}

// NewBuilder returns a Builder for d.
func NewBuilder(d Dialect) Builder {
	return Builder{Dialect: d}
}

// SalePredicate returns the finalized-sale condition. The log
// variant also accepts IMPRESO from the last print-log entry and
// requires the joinLastPrint join.
func SalePredicate(useLog bool) string {
	if useLog {
		return saleFinalized + " AND " + printedUsingLog
	}
	return saleFinalized + " AND " + printedStrict
}

func courtesyPredicate() string {
	return courtesyFinalized + " AND " + printedStrict
}

func lastPrintJoin(useLog bool) string {
	if useLog {
		return joinLastPrint
	}
	return ""
}

// clampLimit returns def for non-positive values and caps at
// MaxLimit.
func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	return min(n, MaxLimit)
}

// saleAggregates renders the four sales KPIs over pred, with an
// alias suffix so strict and log variants share one SELECT.
func saleAggregates(pred, suffix string) string {
	return fmt.Sprintf(`
			COALESCE(SUM(CASE WHEN %[1]s THEN v.sub_total END), 0) AS total_vendido%[2]s,
			COUNT(DISTINCT CASE WHEN %[1]s THEN v.id_comanda END) AS total_comandas%[2]s,
			COALESCE(SUM(CASE WHEN %[1]s THEN v.cantidad END), 0) AS items_vendidos%[2]s,
			ROUND(
				1.0 * COALESCE(SUM(CASE WHEN %[1]s THEN v.sub_total END), 0)
				/ NULLIF(COUNT(DISTINCT CASE WHEN %[1]s THEN v.id_comanda END), 0),
				2
			) AS ticket_promedio%[2]s`, pred, suffix)
}

// KPIs computes strict and log-accepting sales totals plus
// courtesy totals in a single pass.
func (b Builder) KPIs(view View, w Where) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	amount := "v.sub_total"
	if b.PriorSubtotal {
		amount = "COALESCE(v.sub_total_anterior, v.sub_total)"
	}
	courtesy := courtesyPredicate()
	sql := fmt.Sprintf(`
		SELECT%s,%s,
			COALESCE(SUM(CASE WHEN %s THEN %s END), 0) AS total_cortesia,
			COALESCE(SUM(CASE WHEN %s THEN v.cantidad END), 0) AS items_cortesia,
			COUNT(DISTINCT CASE WHEN %s THEN v.id_comanda END) AS comandas_cortesia
		FROM %s v
		%s
		%s`,
		saleAggregates(SalePredicate(false), ""),
		saleAggregates(SalePredicate(true), "_using_log"),
		courtesy, amount,
		courtesy,
		courtesy,
		view, joinLastPrint, w.And(),
	)
	return newStatement(sql, w), nil
}

// OperationalStatus counts pending, voided, print-pending and
// print-status-missing orders.
func (b Builder) OperationalStatus(view View, w Where) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT CASE WHEN %s THEN v.id_comanda END) AS comandas_pendientes,
			COUNT(DISTINCT CASE WHEN %s THEN v.id_comanda END) AS comandas_anuladas,
			COUNT(DISTINCT CASE WHEN %s THEN v.id_comanda END) AS comandas_impresion_pendiente,
			COUNT(DISTINCT CASE WHEN %s THEN v.id_comanda END) AS comandas_sin_estado_impresion
		FROM %s v
		%s`,
		StatusPending.predicate(),
		StatusVoided.predicate(),
		StatusPrintPending.predicate(),
		StatusPrintMissing.predicate(),
		view, w.And(),
	)
	return newStatement(sql, w), nil
}

// StatusKind selects an operational-status counter.
type StatusKind string

const (
	StatusPending      StatusKind = "pending"
	StatusVoided       StatusKind = "voided"
	StatusPrintPending StatusKind = "print_pending"
	StatusPrintMissing StatusKind = "print_missing"
	// StatusNotPrinted matches any order whose print status is
	// not IMPRESO, including NULL.
	StatusNotPrinted StatusKind = "not_printed"
)

// StatusKinds lists every kind accepted by OrderIDs.
var StatusKinds = []StatusKind{
	StatusPending, StatusVoided, StatusPrintPending,
	StatusPrintMissing, StatusNotPrinted,
}

func (k StatusKind) predicate() string {
	switch k {
	case StatusPending:
		return "v.estado_comanda = 'PENDIENTE'"
	case StatusVoided:
		return "v.estado_comanda = 'ANULADO'"
	case StatusPrintPending:
		return notVoided + " AND v.estado_impresion = 'PENDIENTE'"
	case StatusPrintMissing:
		return notVoided + " AND v.estado_impresion IS NULL"
	case StatusNotPrinted:
		return "(v.estado_impresion IS NULL OR v.estado_impresion <> 'IMPRESO')"
	}
	return ""
}

// ParseStatusKind validates a counter kind name.
func ParseStatusKind(s string) (StatusKind, error) {
	k := StatusKind(s)
	if k.predicate() == "" {
		return "", fmt.Errorf("%w: unknown status kind %q", ErrConfiguration, s)
	}
	return k, nil
}

// OrderIDs lists distinct order ids matching a status counter,
// newest first.
func (b Builder) OrderIDs(
	view View, w Where, kind StatusKind, limit int,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	pred := kind.predicate()
	if pred == "" {
		return Statement{}, fmt.Errorf(
			"%w: unknown status kind %q", ErrConfiguration, string(kind),
		)
	}
	sql := fmt.Sprintf(`
		SELECT DISTINCT v.id_comanda
		FROM %s v
		%s
		ORDER BY v.id_comanda DESC
		LIMIT %d`,
		view, w.And(pred), clampLimit(limit, DefaultIDLimit),
	)
	return newStatement(sql, w), nil
}

// ChartOptions configures the grouped sales statements.
type ChartOptions struct {
	UseLog bool
	Limit  int
}

// SalesByHour groups finalized sales by hour of emission.
func (b Builder) SalesByHour(
	view View, w Where, opts ChartOptions,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	hour := b.Dialect.Hour("v.fecha_emision")
	sql := fmt.Sprintf(`
		SELECT
			%s AS hora,
			COALESCE(SUM(v.sub_total), 0) AS total_vendido,
			COUNT(DISTINCT v.id_comanda) AS comandas,
			COALESCE(SUM(v.cantidad), 0) AS items
		FROM %s v
		%s
		%s
		GROUP BY %s
		ORDER BY hora`,
		hour, view, lastPrintJoin(opts.UseLog),
		w.And(SalePredicate(opts.UseLog)), hour,
	)
	return newStatement(sql, w), nil
}

// SalesByCategory groups finalized sales by product category.
func (b Builder) SalesByCategory(
	view View, w Where, opts ChartOptions,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			COALESCE(v.categoria, 'SIN CATEGORIA') AS categoria,
			COALESCE(SUM(v.sub_total), 0) AS total_vendido,
			COALESCE(SUM(v.cantidad), 0) AS unidades,
			COUNT(DISTINCT v.id_comanda) AS comandas
		FROM %s v
		%s
		%s
		GROUP BY COALESCE(v.categoria, 'SIN CATEGORIA')
		ORDER BY total_vendido DESC`,
		view, lastPrintJoin(opts.UseLog), w.And(SalePredicate(opts.UseLog)),
	)
	return newStatement(sql, w), nil
}

// SalesByUser ranks finalized sales by registering user.
func (b Builder) SalesByUser(
	view View, w Where, opts ChartOptions,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			COALESCE(v.usuario_reg, 'SIN USUARIO') AS usuario_reg,
			COALESCE(SUM(v.sub_total), 0) AS total_vendido,
			COUNT(DISTINCT v.id_comanda) AS comandas,
			COALESCE(SUM(v.cantidad), 0) AS items,
			ROUND(
				1.0 * COALESCE(SUM(v.sub_total), 0)
				/ NULLIF(COUNT(DISTINCT v.id_comanda), 0),
				2
			) AS ticket_promedio
		FROM %s v
		%s
		%s
		GROUP BY COALESCE(v.usuario_reg, 'SIN USUARIO')
		ORDER BY total_vendido DESC
		LIMIT %d`,
		view, lastPrintJoin(opts.UseLog), w.And(SalePredicate(opts.UseLog)),
		clampLimit(opts.Limit, DefaultTopLimit),
	)
	return newStatement(sql, w), nil
}

// TopProducts ranks products by finalized sales.
func (b Builder) TopProducts(
	view View, w Where, opts ChartOptions,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			v.nombre,
			COALESCE(v.categoria, 'SIN CATEGORIA') AS categoria,
			COALESCE(SUM(v.cantidad), 0) AS unidades,
			COALESCE(SUM(v.sub_total), 0) AS total_vendido
		FROM %s v
		%s
		%s
		GROUP BY v.nombre, COALESCE(v.categoria, 'SIN CATEGORIA')
		ORDER BY total_vendido DESC
		LIMIT %d`,
		view, lastPrintJoin(opts.UseLog), w.And(SalePredicate(opts.UseLog)),
		clampLimit(opts.Limit, DefaultTopLimit),
	)
	return newStatement(sql, w), nil
}

// MarginSummary totals sales, COGS and margin from the margin
// view. Percentages are 0 when there are no sales.
func (b Builder) MarginSummary(w Where) (Statement, error) {
	sql := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(v.total_venta), 0) AS total_ventas,
			COALESCE(SUM(v.cogs_comanda), 0) AS total_cogs,
			COALESCE(SUM(v.margen_comanda), 0) AS total_margen,
			COALESCE(ROUND(
				100.0 * SUM(v.margen_comanda) / NULLIF(SUM(v.total_venta), 0), 2
			), 0) AS margen_pct,
			COALESCE(ROUND(
				100.0 * SUM(v.cogs_comanda) / NULLIF(SUM(v.total_venta), 0), 2
			), 0) AS pour_cost_pct,
			COUNT(DISTINCT v.id_comanda) AS comandas
		FROM %s v
		%s`,
		ViewMargin, w.And(),
	)
	return newStatement(sql, w), nil
}

// MarginDetail lists one P&L row per order, newest first.
func (b Builder) MarginDetail(w Where, limit int) (Statement, error) {
	sql := fmt.Sprintf(`
		SELECT
			v.id_operacion,
			v.id_comanda,
			v.id_mesa,
			v.usuario_reg,
			v.estado_comanda,
			COALESCE(v.total_venta, 0) AS total_venta,
			COALESCE(v.cogs_comanda, 0) AS cogs_comanda,
			COALESCE(v.margen_comanda, 0) AS margen_comanda,
			COALESCE(ROUND(
				100.0 * v.margen_comanda / NULLIF(v.total_venta, 0), 2
			), 0) AS margen_pct
		FROM %s v
		%s
		ORDER BY v.id_comanda DESC
		LIMIT %d`,
		ViewMargin, w.And(), clampLimit(limit, DefaultTableLimit),
	)
	return newStatement(sql, w), nil
}

// COGSByOrder lists order cost without sales, costliest first.
// Courtesies show up here with cost and no revenue.
func (b Builder) COGSByOrder(w Where, limit int) (Statement, error) {
	sql := fmt.Sprintf(`
		SELECT
			v.id_operacion,
			v.id_comanda,
			COALESCE(v.cogs_comanda, 0) AS cogs_comanda
		FROM %s v
		%s
		ORDER BY cogs_comanda DESC, v.id_comanda DESC
		LIMIT %d`,
		ViewCOGS, w.And(), clampLimit(limit, DefaultTableLimit),
	)
	return newStatement(sql, w), nil
}

// ValuedConsumption aggregates consumed supplies and their WAC
// cost per product across the selected operations.
func (b Builder) ValuedConsumption(w Where, limit int) (Statement, error) {
	sql := fmt.Sprintf(`
		SELECT
			v.id_producto,
			v.nombre_producto,
			v.unidad_medida,
			COALESCE(SUM(v.cantidad_consumida_base), 0) AS cantidad_consumida_base,
			COALESCE(SUM(v.costo_consumo), 0) AS costo_consumo,
			COALESCE(ROUND(
				1.0 * SUM(v.costo_consumo) / NULLIF(SUM(v.cantidad_consumida_base), 0), 4
			), 0) AS wac
		FROM %s v
		%s
		GROUP BY v.id_producto, v.nombre_producto, v.unidad_medida
		ORDER BY costo_consumo DESC
		LIMIT %d`,
		ViewValuedConsumption, w.And(), clampLimit(limit, DefaultTableLimit),
	)
	return newStatement(sql, w), nil
}

// UnvaluedConsumption aggregates consumed supply quantities per
// product, without costs.
func (b Builder) UnvaluedConsumption(w Where, limit int) (Statement, error) {
	sql := fmt.Sprintf(`
		SELECT
			v.id_producto,
			v.nombre_producto,
			v.unidad_medida,
			COALESCE(SUM(v.cantidad_consumida_base), 0) AS cantidad_consumida_base
		FROM %s v
		%s
		GROUP BY v.id_producto, v.nombre_producto, v.unidad_medida
		ORDER BY cantidad_consumida_base DESC
		LIMIT %d`,
		ViewConsumption, w.And(), clampLimit(limit, DefaultTableLimit),
	)
	return newStatement(sql, w), nil
}

// PourCostByItem allocates each order's COGS to its items by
// share of the order's sales, then regroups by item across
// orders. Allocation happens per order before regrouping, so an
// item whose cost varies between orders is weighted correctly.
// Only items with positive sales are returned.
func (b Builder) PourCostByItem(
	view View, w Where, opts ChartOptions,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			a.nombre_item,
			COALESCE(SUM(a.cantidad), 0) AS cantidad_vendida,
			COALESCE(SUM(a.ventas_item), 0) AS ventas_item,
			COALESCE(SUM(a.cogs_asignado), 0) AS cogs_asignado,
			COALESCE(ROUND(
				1.0 * SUM(a.cogs_asignado) / NULLIF(SUM(a.cantidad), 0), 4
			), 0) AS cogs_unitario,
			COALESCE(ROUND(
				100.0 * SUM(a.cogs_asignado) / NULLIF(SUM(a.ventas_item), 0), 2
			), 0) AS pour_cost_pct
		FROM (
			SELECT
				i.nombre_item,
				i.cantidad,
				i.ventas_item,
				c.cogs_comanda * (1.0 * i.ventas_item / o.ventas_comanda) AS cogs_asignado
			FROM (
				SELECT
					v.id_operacion,
					v.id_comanda,
					v.nombre AS nombre_item,
					SUM(v.cantidad) AS cantidad,
					SUM(v.sub_total) AS ventas_item
				FROM %[1]s v
				%[2]s
				%[3]s
				GROUP BY v.id_operacion, v.id_comanda, v.nombre
			) i
			JOIN (
				SELECT
					v.id_operacion,
					v.id_comanda,
					SUM(v.sub_total) AS ventas_comanda
				FROM %[1]s v
				%[2]s
				%[3]s
				GROUP BY v.id_operacion, v.id_comanda
			) o
				ON o.id_operacion = i.id_operacion
				AND o.id_comanda = i.id_comanda
			JOIN %[4]s c
				ON c.id_operacion = i.id_operacion
				AND c.id_comanda = i.id_comanda
			WHERE o.ventas_comanda > 0
				AND i.ventas_item > 0
		) a
		GROUP BY a.nombre_item
		HAVING SUM(a.ventas_item) > 0
		ORDER BY pour_cost_pct DESC, a.nombre_item
		LIMIT %[5]d`,
		view, lastPrintJoin(opts.UseLog), w.And(SalePredicate(opts.UseLog)),
		ViewCOGS, clampLimit(opts.Limit, DefaultPourLimit),
	)
	return newStatement(sql, w), nil
}

// Detail lists raw order lines, newest first.
func (b Builder) Detail(view View, w Where, limit int) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			v.fecha_emision,
			v.id_operacion,
			v.id_comanda,
			v.id_mesa,
			v.usuario_reg,
			v.nombre,
			COALESCE(v.categoria, 'SIN CATEGORIA') AS categoria,
			v.cantidad,
			v.precio_venta,
			v.sub_total,
			v.tipo_salida,
			v.estado_comanda,
			v.estado_impresion,
			v.id_factura,
			v.nro_factura
		FROM %s v
		%s
		ORDER BY v.fecha_emision DESC, v.id_comanda DESC
		LIMIT %d`,
		view, w.And(), clampLimit(limit, DefaultDetailLimit),
	)
	return newStatement(sql, w), nil
}

// OrderItems lists the lines of one order.
func (b Builder) OrderItems(
	view View, w Where, orderID int64,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf(`
		SELECT
			v.nombre AS nombre_producto,
			v.cantidad,
			v.precio_venta,
			v.sub_total,
			COALESCE(v.categoria, 'SIN CATEGORIA') AS categoria
		FROM %s v
		%s
		ORDER BY v.nombre`,
		view, w.And("v.id_comanda = :id_comanda"),
	)
	st := newStatement(sql, w)
	st.Params["id_comanda"] = orderID
	return st, nil
}

// PrintSnapshot compares, for the given orders, the print status
// the view reports with the order table and the print log.
func (b Builder) PrintSnapshot(
	view View, w Where, ids []int64,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	if len(ids) == 0 {
		return Statement{}, fmt.Errorf(
			"%w: snapshot requires at least one order id", ErrConfiguration,
		)
	}
	if len(ids) > MaxLimit {
		ids = ids[:MaxLimit]
	}
	ph := make([]string, len(ids))
	extra := make(map[string]any, len(ids))
	for i, id := range ids {
		name := "id" + strconv.Itoa(i)
		ph[i] = ":" + name
		extra[name] = id
	}
	sql := fmt.Sprintf(`
		SELECT
			v.id_comanda,
			MAX(v.estado_comanda) AS estado_comanda,
			MAX(v.estado_impresion) AS estado_impresion_vista,
			MAX(bc.estado_impresion) AS estado_impresion_comanda,
			MAX(ui.estado_impresion) AS estado_impresion_log
		FROM %s v
		LEFT JOIN %s bc ON bc.id = v.id_comanda
		%s
		%s
		GROUP BY v.id_comanda
		ORDER BY v.id_comanda DESC`,
		view, TableOrders, joinLastPrint,
		w.And("v.id_comanda IN ("+strings.Join(ph, ", ")+")"),
	)
	st := newStatement(sql, w)
	maps.Copy(st.Params, extra)
	return st, nil
}

// EmissionTimes returns one row per order with its first
// emission timestamp, ascending. A positive limit keeps only the
// most recent orders.
func (b Builder) EmissionTimes(
	view View, w Where, limit int,
) (Statement, error) {
	if err := view.requireOrderLines(); err != nil {
		return Statement{}, err
	}
	perOrder := fmt.Sprintf(`
			SELECT
				v.id_comanda,
				MIN(v.fecha_emision) AS fecha_emision
			FROM %s v
			%s
			GROUP BY v.id_comanda`,
		view, w.And("v.fecha_emision IS NOT NULL"),
	)
	var sql string
	if limit > 0 {
		sql = fmt.Sprintf(`
		SELECT t.id_comanda, t.fecha_emision
		FROM (%s
			ORDER BY fecha_emision DESC, v.id_comanda DESC
			LIMIT %d
		) t
		ORDER BY t.fecha_emision ASC, t.id_comanda ASC`,
			perOrder, min(limit, MaxLimit),
		)
	} else {
		sql = perOrder + `
			ORDER BY fecha_emision ASC, v.id_comanda ASC`
	}
	return newStatement(sql, w), nil
}
