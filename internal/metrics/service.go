// Package metrics runs the dashboard statements and coerces their
// rows into typed, NULL-safe records.
package metrics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
)

// Scope selects the rows a metric reads: the order-line view and
// the range filter applied to it.
type Scope struct {
	View    query.View
	Filters query.Filters
	Mode    query.Mode
}

func (sc Scope) view() query.View {
	if sc.View == "" {
		return query.ViewAll
	}
	return sc.View
}

// Service computes dashboard metrics over a Querier.
type Service struct {
	q     db.Querier
	b     query.Builder
	clock clockwork.Clock
	loc   *time.Location
}

type Option func(*Service)

// WithClock sets the clock used for "minutes since" figures.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPriorSubtotal values courtesies at their pre-discount
// subtotal.
func WithPriorSubtotal(on bool) Option {
	return func(s *Service) { s.b.PriorSubtotal = on }
}

// WithLocation sets the zone naive database timestamps are in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// New returns a Service issuing b's statements through q.
func New(q db.Querier, b query.Builder, opts ...Option) *Service {
	s := &Service{
		q:     q,
		b:     b,
		clock: clockwork.NewRealClock(),
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// where resolves sc's range against target, the view the
// statement filters. Timestamp ranges need a dated view. ModeNone
// on a view that is not limited to the open operation is narrowed
// to the active operation.
func (s *Service) where(
	ctx context.Context, sc Scope, target query.View,
) (query.Where, error) {
	if err := target.Validate(); err != nil {
		return query.Where{}, err
	}
	switch {
	case sc.Mode == query.ModeDates && !target.Dated():
		return query.Where{}, fmt.Errorf(
			"%w: %s can only be filtered by operation",
			query.ErrConfiguration, string(target),
		)
	case sc.Mode == query.ModeNone && !target.Scoped():
		id, err := s.activeOperation(ctx)
		if err != nil {
			return query.Where{}, err
		}
		sc.Filters, sc.Mode = query.OperationRange(id, id), query.ModeOps
	}
	return query.Resolve(sc.Filters, sc.Mode, query.Alias)
}

// activeOperation returns the id of the newest open or reopened
// operation.
func (s *Service) activeOperation(ctx context.Context) (int64, error) {
	rows, err := s.q.Query(ctx, "active_operation", s.b.ActiveOperation())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf(
			"%w: no open operation: choose an operation or date range",
			query.ErrConfiguration,
		)
	}
	return db.Int(rows[0]["id_operacion"]), nil
}

// run executes a built statement. Build errors are returned as
// is so configuration sentinels stay matchable.
func (s *Service) run(
	ctx context.Context, label string, st query.Statement, err error,
) ([]db.Row, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return s.q.Query(ctx, label, st)
}

func mapRows[T any](rows []db.Row, fn func(db.Row) T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}

// KPIs returns sales, order, item and ticket totals under both
// print predicates, plus courtesy totals.
func (s *Service) KPIs(ctx context.Context, sc Scope) (KPIs, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return KPIs{}, err
	}
	st, err := s.b.KPIs(sc.view(), w)
	rows, err := s.run(ctx, "kpis", st, err)
	if err != nil || len(rows) == 0 {
		return KPIs{}, err
	}
	r := rows[0]
	return KPIs{
		TotalVendido:   db.Float(r["total_vendido"]),
		TotalComandas:  db.Int(r["total_comandas"]),
		ItemsVendidos:  db.Float(r["items_vendidos"]),
		TicketPromedio: db.Float(r["ticket_promedio"]),

		TotalVendidoUsingLog:   db.Float(r["total_vendido_using_log"]),
		TotalComandasUsingLog:  db.Int(r["total_comandas_using_log"]),
		ItemsVendidosUsingLog:  db.Float(r["items_vendidos_using_log"]),
		TicketPromedioUsingLog: db.Float(r["ticket_promedio_using_log"]),

		TotalCortesia:    db.Float(r["total_cortesia"]),
		ItemsCortesia:    db.Float(r["items_cortesia"]),
		ComandasCortesia: db.Int(r["comandas_cortesia"]),
	}, nil
}

// OperationalStatus returns the attention counters.
func (s *Service) OperationalStatus(
	ctx context.Context, sc Scope,
) (OperationalStatus, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return OperationalStatus{}, err
	}
	st, err := s.b.OperationalStatus(sc.view(), w)
	rows, err := s.run(ctx, "operational_status", st, err)
	if err != nil || len(rows) == 0 {
		return OperationalStatus{}, err
	}
	r := rows[0]
	return OperationalStatus{
		ComandasPendientes:         db.Int(r["comandas_pendientes"]),
		ComandasAnuladas:           db.Int(r["comandas_anuladas"]),
		ComandasImpresionPendiente: db.Int(r["comandas_impresion_pendiente"]),
		ComandasSinEstadoImpresion: db.Int(r["comandas_sin_estado_impresion"]),
	}, nil
}

// OrderIDs lists the newest order ids behind a status counter.
func (s *Service) OrderIDs(
	ctx context.Context, sc Scope, kind query.StatusKind, limit int,
) ([]int64, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.OrderIDs(sc.view(), w, kind, limit)
	rows, err := s.run(ctx, "order_ids_"+string(kind), st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) int64 {
		return db.Int(r["id_comanda"])
	}), nil
}

// PrintSnapshot compares print status sources for ids. Duplicate
// ids are queried once; no ids yields an empty snapshot.
func (s *Service) PrintSnapshot(
	ctx context.Context, sc Scope, ids []int64,
) ([]PrintStatus, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return []PrintStatus{}, nil
	}
	slices.Sort(ids)
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.PrintSnapshot(sc.view(), w, ids)
	rows, err := s.run(ctx, "print_snapshot", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) PrintStatus {
		return PrintStatus{
			IDComanda:              db.Int(r["id_comanda"]),
			EstadoComanda:          toTextPtr(r["estado_comanda"]),
			EstadoImpresionVista:   toTextPtr(r["estado_impresion_vista"]),
			EstadoImpresionComanda: toTextPtr(r["estado_impresion_comanda"]),
			EstadoImpresionLog:     toTextPtr(r["estado_impresion_log"]),
		}
	}), nil
}

// SalesByHour returns finalized sales per hour of day.
func (s *Service) SalesByHour(
	ctx context.Context, sc Scope, opts query.ChartOptions,
) ([]HourlySales, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.SalesByHour(sc.view(), w, opts)
	rows, err := s.run(ctx, "sales_by_hour", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) HourlySales {
		return HourlySales{
			Hora:         db.Int(r["hora"]),
			TotalVendido: db.Float(r["total_vendido"]),
			Comandas:     db.Int(r["comandas"]),
			Items:        db.Float(r["items"]),
		}
	}), nil
}

// SalesByCategory returns finalized sales per category.
func (s *Service) SalesByCategory(
	ctx context.Context, sc Scope, opts query.ChartOptions,
) ([]CategorySales, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.SalesByCategory(sc.view(), w, opts)
	rows, err := s.run(ctx, "sales_by_category", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) CategorySales {
		return CategorySales{
			Categoria:    db.Text(r["categoria"]),
			TotalVendido: db.Float(r["total_vendido"]),
			Unidades:     db.Float(r["unidades"]),
			Comandas:     db.Int(r["comandas"]),
		}
	}), nil
}

// SalesByUser ranks users by finalized sales.
func (s *Service) SalesByUser(
	ctx context.Context, sc Scope, opts query.ChartOptions,
) ([]UserSales, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.SalesByUser(sc.view(), w, opts)
	rows, err := s.run(ctx, "sales_by_user", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) UserSales {
		return UserSales{
			UsuarioReg:     db.Text(r["usuario_reg"]),
			TotalVendido:   db.Float(r["total_vendido"]),
			Comandas:       db.Int(r["comandas"]),
			Items:          db.Float(r["items"]),
			TicketPromedio: db.Float(r["ticket_promedio"]),
		}
	}), nil
}

// TopProducts ranks products by finalized sales.
func (s *Service) TopProducts(
	ctx context.Context, sc Scope, opts query.ChartOptions,
) ([]ProductSales, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.TopProducts(sc.view(), w, opts)
	rows, err := s.run(ctx, "top_products", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) ProductSales {
		return ProductSales{
			Nombre:       db.Text(r["nombre"]),
			Categoria:    db.Text(r["categoria"]),
			Unidades:     db.Float(r["unidades"]),
			TotalVendido: db.Float(r["total_vendido"]),
		}
	}), nil
}

// MarginSummary returns the P&L of the scope's range. The margin
// view is order level, so sc.View only matters for ModeNone.
func (s *Service) MarginSummary(
	ctx context.Context, sc Scope,
) (MarginSummary, error) {
	w, err := s.where(ctx, sc, query.ViewMargin)
	if err != nil {
		return MarginSummary{}, err
	}
	st, err := s.b.MarginSummary(w)
	rows, err := s.run(ctx, "margin_summary", st, err)
	if err != nil || len(rows) == 0 {
		return MarginSummary{}, err
	}
	r := rows[0]
	return MarginSummary{
		TotalVentas: db.Float(r["total_ventas"]),
		TotalCOGS:   db.Float(r["total_cogs"]),
		TotalMargen: db.Float(r["total_margen"]),
		MargenPct:   db.Float(r["margen_pct"]),
		PourCostPct: db.Float(r["pour_cost_pct"]),
		Comandas:    db.Int(r["comandas"]),
	}, nil
}

// MarginDetail lists per-order margins, newest first.
func (s *Service) MarginDetail(
	ctx context.Context, sc Scope, limit int,
) ([]OrderMargin, error) {
	w, err := s.where(ctx, sc, query.ViewMargin)
	if err != nil {
		return nil, err
	}
	st, err := s.b.MarginDetail(w, limit)
	rows, err := s.run(ctx, "margin_detail", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) OrderMargin {
		return OrderMargin{
			IDOperacion:   db.Int(r["id_operacion"]),
			IDComanda:     db.Int(r["id_comanda"]),
			IDMesa:        db.Int(r["id_mesa"]),
			UsuarioReg:    db.Text(r["usuario_reg"]),
			EstadoComanda: db.Text(r["estado_comanda"]),
			TotalVenta:    db.Float(r["total_venta"]),
			COGSComanda:   db.Float(r["cogs_comanda"]),
			MargenComanda: db.Float(r["margen_comanda"]),
			MargenPct:     db.Float(r["margen_pct"]),
		}
	}), nil
}

// COGSByOrder lists order costs, costliest first.
func (s *Service) COGSByOrder(
	ctx context.Context, sc Scope, limit int,
) ([]OrderCOGS, error) {
	w, err := s.where(ctx, sc, query.ViewCOGS)
	if err != nil {
		return nil, err
	}
	st, err := s.b.COGSByOrder(w, limit)
	rows, err := s.run(ctx, "cogs_by_order", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) OrderCOGS {
		return OrderCOGS{
			IDOperacion: db.Int(r["id_operacion"]),
			IDComanda:   db.Int(r["id_comanda"]),
			COGSComanda: db.Float(r["cogs_comanda"]),
		}
	}), nil
}

// ValuedConsumption aggregates supply usage and cost per product.
func (s *Service) ValuedConsumption(
	ctx context.Context, sc Scope, limit int,
) ([]ValuedConsumption, error) {
	w, err := s.where(ctx, sc, query.ViewValuedConsumption)
	if err != nil {
		return nil, err
	}
	st, err := s.b.ValuedConsumption(w, limit)
	rows, err := s.run(ctx, "valued_consumption", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) ValuedConsumption {
		return ValuedConsumption{
			IDProducto:            db.Int(r["id_producto"]),
			NombreProducto:        db.Text(r["nombre_producto"]),
			UnidadMedida:          db.Text(r["unidad_medida"]),
			CantidadConsumidaBase: db.Float(r["cantidad_consumida_base"]),
			CostoConsumo:          db.Float(r["costo_consumo"]),
			WAC:                   db.Float(r["wac"]),
		}
	}), nil
}

// UnvaluedConsumption aggregates supply quantities per product.
func (s *Service) UnvaluedConsumption(
	ctx context.Context, sc Scope, limit int,
) ([]Consumption, error) {
	w, err := s.where(ctx, sc, query.ViewConsumption)
	if err != nil {
		return nil, err
	}
	st, err := s.b.UnvaluedConsumption(w, limit)
	rows, err := s.run(ctx, "unvalued_consumption", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) Consumption {
		return Consumption{
			IDProducto:            db.Int(r["id_producto"]),
			NombreProducto:        db.Text(r["nombre_producto"]),
			UnidadMedida:          db.Text(r["unidad_medida"]),
			CantidadConsumidaBase: db.Float(r["cantidad_consumida_base"]),
		}
	}), nil
}

// PourCostByItem returns COGS allocated to each item by its share
// of order sales.
func (s *Service) PourCostByItem(
	ctx context.Context, sc Scope, opts query.ChartOptions,
) ([]ItemPourCost, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.PourCostByItem(sc.view(), w, opts)
	rows, err := s.run(ctx, "pour_cost_by_item", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) ItemPourCost {
		return ItemPourCost{
			NombreItem:      db.Text(r["nombre_item"]),
			CantidadVendida: db.Float(r["cantidad_vendida"]),
			VentasItem:      db.Float(r["ventas_item"]),
			COGSAsignado:    db.Float(r["cogs_asignado"]),
			COGSUnitario:    db.Float(r["cogs_unitario"]),
			PourCostPct:     db.Float(r["pour_cost_pct"]),
		}
	}), nil
}

// Detail lists raw order lines, newest first.
func (s *Service) Detail(
	ctx context.Context, sc Scope, limit int,
) ([]DetailLine, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.Detail(sc.view(), w, limit)
	rows, err := s.run(ctx, "detail", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) DetailLine {
		return DetailLine{
			FechaEmision:    db.Text(r["fecha_emision"]),
			IDOperacion:     db.Int(r["id_operacion"]),
			IDComanda:       db.Int(r["id_comanda"]),
			IDMesa:          db.Int(r["id_mesa"]),
			UsuarioReg:      db.Text(r["usuario_reg"]),
			Nombre:          db.Text(r["nombre"]),
			Categoria:       db.Text(r["categoria"]),
			Cantidad:        db.Float(r["cantidad"]),
			PrecioVenta:     db.Float(r["precio_venta"]),
			SubTotal:        db.Float(r["sub_total"]),
			TipoSalida:      db.Text(r["tipo_salida"]),
			EstadoComanda:   db.Text(r["estado_comanda"]),
			EstadoImpresion: toTextPtr(r["estado_impresion"]),
			IDFactura:       toIntPtr(r["id_factura"]),
			NroFactura:      toTextPtr(r["nro_factura"]),
		}
	}), nil
}

// OrderItems lists the lines of one order within the scope.
func (s *Service) OrderItems(
	ctx context.Context, sc Scope, orderID int64,
) ([]OrderItem, error) {
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return nil, err
	}
	st, err := s.b.OrderItems(sc.view(), w, orderID)
	rows, err := s.run(ctx, "order_items", st, err)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, func(r db.Row) OrderItem {
		return OrderItem{
			NombreProducto: db.Text(r["nombre_producto"]),
			Cantidad:       db.Float(r["cantidad"]),
			PrecioVenta:    db.Float(r["precio_venta"]),
			SubTotal:       db.Float(r["sub_total"]),
			Categoria:      db.Text(r["categoria"]),
		}
	}), nil
}
