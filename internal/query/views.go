package query

import (
	"errors"
	"fmt"
)

// ErrUnknownView is returned when a statement targets a view or
// table outside the allow-list.
var ErrUnknownView = errors.New("unknown view")

// View names a database view or table the dashboard reads. Only
// allow-listed names are ever formatted into SQL text.
type View string

const (
	// ViewCurrent holds order lines of the open operation.
	ViewCurrent View = "comandas_v6"
	// ViewAll holds order lines of every operation.
	ViewAll View = "comandas_v6_todas"
	// ViewBase is the unfiltered order-line view both derive from.
	ViewBase View = "comandas_v6_base"
	// ViewLastPrint holds the last print-log entry per order.
	ViewLastPrint View = "vw_comanda_ultima_impresion"
	// ViewMargin holds sale, COGS and margin per order.
	ViewMargin View = "vw_margen_comanda"
	// ViewCOGS holds COGS per order.
	ViewCOGS View = "vw_cogs_comanda"
	// ViewValuedConsumption holds consumed supplies with WAC cost
	// per operation and product.
	ViewValuedConsumption View = "vw_consumo_valorizado_operativa"
	// ViewConsumption holds consumed supply quantities per
	// operation and product.
	ViewConsumption View = "vw_consumo_insumos_operativa"

	TableOrders     View = "bar_comanda"
	TableOperations View = "ope_operacion"
	TableParameters View = "parameter_table"
)

// Column names shared by the order-line and order-level views.
const (
	ColOperation = "id_operacion"
	ColEmission  = "fecha_emision"
)

type viewInfo struct {
	orderLines bool // exposes flattened order-line columns
	dated      bool // exposes fecha_emision
	scoped     bool // already limited to the open operation
}

var views = map[View]viewInfo{
	ViewCurrent:           {orderLines: true, dated: true, scoped: true},
	ViewAll:               {orderLines: true, dated: true},
	ViewBase:              {orderLines: true, dated: true},
	ViewLastPrint:         {},
	ViewMargin:            {dated: true},
	ViewCOGS:              {dated: true},
	ViewValuedConsumption: {},
	ViewConsumption:       {},
	TableOrders:           {},
	TableOperations:       {},
	TableParameters:       {},
}

// RequiredObjects lists the objects the health check verifies.
var RequiredObjects = []View{
	ViewCurrent,
	ViewAll,
	ViewBase,
	ViewLastPrint,
	ViewMargin,
	ViewCOGS,
	ViewValuedConsumption,
	ViewConsumption,
	TableOperations,
	TableParameters,
}

// Validate reports whether v is allow-listed.
func (v View) Validate() error {
	if _, ok := views[v]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, string(v))
	}
	return nil
}

// Dated reports whether v can be filtered by emission timestamp.
func (v View) Dated() bool {
	return views[v].dated
}

// Scoped reports whether v holds only rows of the open
// operation, so ModeNone needs no range predicate on it.
func (v View) Scoped() bool {
	return views[v].scoped
}

// OrderLines reports whether v exposes order-line columns and can
// back the sales statements.
func (v View) OrderLines() bool {
	return views[v].orderLines
}

func (v View) requireOrderLines() error {
	if err := v.Validate(); err != nil {
		return err
	}
	if !v.OrderLines() {
		return fmt.Errorf(
			"%w: %q has no order-line columns", ErrUnknownView, string(v),
		)
	}
	return nil
}

// ParseView validates a view name received from a caller.
func ParseView(s string) (View, error) {
	v := View(s)
	return v, v.Validate()
}
