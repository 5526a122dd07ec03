package metrics

// KPIs are the headline sales figures. Strict totals count only
// lines the view reports as printed; the _using_log totals also
// accept orders whose last print-log entry is IMPRESO.
type KPIs struct {
	TotalVendido   float64 `json:"total_vendido"`
	TotalComandas  int64   `json:"total_comandas"`
	ItemsVendidos  float64 `json:"items_vendidos"`
	TicketPromedio float64 `json:"ticket_promedio"`

	TotalVendidoUsingLog   float64 `json:"total_vendido_using_log"`
	TotalComandasUsingLog  int64   `json:"total_comandas_using_log"`
	ItemsVendidosUsingLog  float64 `json:"items_vendidos_using_log"`
	TicketPromedioUsingLog float64 `json:"ticket_promedio_using_log"`

	TotalCortesia    float64 `json:"total_cortesia"`
	ItemsCortesia    float64 `json:"items_cortesia"`
	ComandasCortesia int64   `json:"comandas_cortesia"`
}

// OperationalStatus counts orders needing attention.
type OperationalStatus struct {
	ComandasPendientes         int64 `json:"comandas_pendientes"`
	ComandasAnuladas           int64 `json:"comandas_anuladas"`
	ComandasImpresionPendiente int64 `json:"comandas_impresion_pendiente"`
	ComandasSinEstadoImpresion int64 `json:"comandas_sin_estado_impresion"`
}

// PrintStatus compares the print status sources of one order.
// Nil fields are NULL in the source.
type PrintStatus struct {
	IDComanda              int64   `json:"id_comanda"`
	EstadoComanda          *string `json:"estado_comanda"`
	EstadoImpresionVista   *string `json:"estado_impresion_vista"`
	EstadoImpresionComanda *string `json:"estado_impresion_comanda"`
	EstadoImpresionLog     *string `json:"estado_impresion_log"`
}

type HourlySales struct {
	Hora         int64   `json:"hora"`
	TotalVendido float64 `json:"total_vendido"`
	Comandas     int64   `json:"comandas"`
	Items        float64 `json:"items"`
}

type CategorySales struct {
	Categoria    string  `json:"categoria"`
	TotalVendido float64 `json:"total_vendido"`
	Unidades     float64 `json:"unidades"`
	Comandas     int64   `json:"comandas"`
}

type UserSales struct {
	UsuarioReg     string  `json:"usuario_reg"`
	TotalVendido   float64 `json:"total_vendido"`
	Comandas       int64   `json:"comandas"`
	Items          float64 `json:"items"`
	TicketPromedio float64 `json:"ticket_promedio"`
}

type ProductSales struct {
	Nombre       string  `json:"nombre"`
	Categoria    string  `json:"categoria"`
	Unidades     float64 `json:"unidades"`
	TotalVendido float64 `json:"total_vendido"`
}

// MarginSummary is the P&L of a range. Percentages are 0 when
// there are no sales.
type MarginSummary struct {
	TotalVentas float64 `json:"total_ventas"`
	TotalCOGS   float64 `json:"total_cogs"`
	TotalMargen float64 `json:"total_margen"`
	MargenPct   float64 `json:"margen_pct"`
	PourCostPct float64 `json:"pour_cost_pct"`
	Comandas    int64   `json:"comandas"`
}

type OrderMargin struct {
	IDOperacion   int64   `json:"id_operacion"`
	IDComanda     int64   `json:"id_comanda"`
	IDMesa        int64   `json:"id_mesa"`
	UsuarioReg    string  `json:"usuario_reg"`
	EstadoComanda string  `json:"estado_comanda"`
	TotalVenta    float64 `json:"total_venta"`
	COGSComanda   float64 `json:"cogs_comanda"`
	MargenComanda float64 `json:"margen_comanda"`
	MargenPct     float64 `json:"margen_pct"`
}

type OrderCOGS struct {
	IDOperacion int64   `json:"id_operacion"`
	IDComanda   int64   `json:"id_comanda"`
	COGSComanda float64 `json:"cogs_comanda"`
}

// ValuedConsumption is supply usage with its weighted average
// cost over the selected operations.
type ValuedConsumption struct {
	IDProducto            int64   `json:"id_producto"`
	NombreProducto        string  `json:"nombre_producto"`
	UnidadMedida          string  `json:"unidad_medida"`
	CantidadConsumidaBase float64 `json:"cantidad_consumida_base"`
	CostoConsumo          float64 `json:"costo_consumo"`
	WAC                   float64 `json:"wac"`
}

type Consumption struct {
	IDProducto            int64   `json:"id_producto"`
	NombreProducto        string  `json:"nombre_producto"`
	UnidadMedida          string  `json:"unidad_medida"`
	CantidadConsumidaBase float64 `json:"cantidad_consumida_base"`
}

// ItemPourCost is the COGS allocated to an item as a share of its
// sales.
type ItemPourCost struct {
	NombreItem      string  `json:"nombre_item"`
	CantidadVendida float64 `json:"cantidad_vendida"`
	VentasItem      float64 `json:"ventas_item"`
	COGSAsignado    float64 `json:"cogs_asignado"`
	COGSUnitario    float64 `json:"cogs_unitario"`
	PourCostPct     float64 `json:"pour_cost_pct"`
}

type DetailLine struct {
	FechaEmision    string  `json:"fecha_emision"`
	IDOperacion     int64   `json:"id_operacion"`
	IDComanda       int64   `json:"id_comanda"`
	IDMesa          int64   `json:"id_mesa"`
	UsuarioReg      string  `json:"usuario_reg"`
	Nombre          string  `json:"nombre"`
	Categoria       string  `json:"categoria"`
	Cantidad        float64 `json:"cantidad"`
	PrecioVenta     float64 `json:"precio_venta"`
	SubTotal        float64 `json:"sub_total"`
	TipoSalida      string  `json:"tipo_salida"`
	EstadoComanda   string  `json:"estado_comanda"`
	EstadoImpresion *string `json:"estado_impresion"`
	IDFactura       *int64  `json:"id_factura"`
	NroFactura      *string `json:"nro_factura"`
}

type OrderItem struct {
	NombreProducto string  `json:"nombre_producto"`
	Cantidad       float64 `json:"cantidad"`
	PrecioVenta    float64 `json:"precio_venta"`
	SubTotal       float64 `json:"sub_total"`
	Categoria      string  `json:"categoria"`
}

// Activity describes order cadence. Medians are minutes between
// consecutive orders and nil when fewer than two distinct
// timestamps exist.
type Activity struct {
	UltimaComanda       *string  `json:"ultima_comanda"`
	MinutosDesdeUltima  *float64 `json:"minutos_desde_ultima"`
	MedianaRecientes    *float64 `json:"mediana_recientes_min"`
	IntervalosRecientes int      `json:"intervalos_recientes"`
	MedianaRango        *float64 `json:"mediana_rango_min"`
	IntervalosRango     int      `json:"intervalos_rango"`
	ComandasRango       int      `json:"comandas_rango"`
}
