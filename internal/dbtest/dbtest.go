// Package dbtest builds SQLite replicas of the point-of-sale
// schema for tests. Views the production database derives are
// plain tables here, so tests seed them directly.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wesm/barview/internal/db"
)

const schema = `
CREATE TABLE ope_operacion (
	id INTEGER PRIMARY KEY,
	fecha TEXT,
	nombre_operacion TEXT,
	estado TEXT NOT NULL DEFAULT 'HAB',
	estado_operacion INTEGER
);

CREATE TABLE parameter_table (
	id INTEGER PRIMARY KEY,
	id_master INTEGER,
	nombre TEXT,
	estado TEXT
);

INSERT INTO parameter_table (id, id_master, nombre, estado) VALUES
	(22, 6, 'ABIERTA', 'HAB'),
	(23, 6, 'CERRADA', 'HAB'),
	(24, 6, 'REABIERTA', 'HAB');

CREATE TABLE bar_comanda (
	id INTEGER PRIMARY KEY,
	estado_impresion TEXT
);

CREATE TABLE comandas_v6_todas (
	id_operacion INTEGER,
	id_comanda INTEGER,
	id_mesa INTEGER,
	usuario_reg TEXT,
	nombre TEXT,
	categoria TEXT,
	cantidad REAL,
	precio_venta REAL,
	sub_total REAL,
	sub_total_anterior REAL,
	tipo_salida TEXT,
	estado_comanda TEXT,
	estado_impresion TEXT,
	fecha_emision TEXT,
	id_factura INTEGER,
	nro_factura TEXT
);

CREATE VIEW comandas_v6_base AS SELECT * FROM comandas_v6_todas;

CREATE VIEW comandas_v6 AS
SELECT * FROM comandas_v6_todas
WHERE id_operacion = (
	SELECT MAX(id) FROM ope_operacion
	WHERE estado = 'HAB' AND estado_operacion IN (22, 24)
);

CREATE TABLE vw_comanda_ultima_impresion (
	id_comanda INTEGER PRIMARY KEY,
	estado_impresion TEXT
);

CREATE TABLE vw_margen_comanda (
	id_operacion INTEGER,
	id_comanda INTEGER,
	id_mesa INTEGER,
	usuario_reg TEXT,
	estado_comanda TEXT,
	fecha_emision TEXT,
	total_venta REAL,
	cogs_comanda REAL,
	margen_comanda REAL
);

CREATE TABLE vw_cogs_comanda (
	id_operacion INTEGER,
	id_comanda INTEGER,
	fecha_emision TEXT,
	cogs_comanda REAL
);

CREATE TABLE vw_consumo_valorizado_operativa (
	id_operacion INTEGER,
	id_producto INTEGER,
	nombre_producto TEXT,
	unidad_medida TEXT,
	cantidad_consumida_base REAL,
	wac_operativa REAL,
	costo_consumo REAL
);

CREATE TABLE vw_consumo_insumos_operativa (
	id_operacion INTEGER,
	id_producto INTEGER,
	nombre_producto TEXT,
	unidad_medida TEXT,
	cantidad_consumida_base REAL
);
`

// DefaultEmitted is the emission timestamp of lines that set none.
const DefaultEmitted = "2024-06-01 20:00:00"

// Path creates a seeded-schema database file under t.TempDir and
// returns its path.
func Path(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pos.db")
	d, err := db.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening fixture db: %v", err)
	}
	defer d.Close()
	if err := d.Exec(context.Background(), schema); err != nil {
		t.Fatalf("creating fixture schema: %v", err)
	}
	return path
}

// Open returns a pool over a fresh fixture database.
func Open(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.Open("sqlite3", Path(t))
	if err != nil {
		t.Fatalf("opening fixture db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// Line is one order line. Empty strings are stored as NULL.
type Line struct {
	Operation     int64
	Order         int64
	Table         int64
	User          string
	Product       string
	Category      string
	Qty           float64
	Price         float64
	Subtotal      float64
	PriorSubtotal *float64
	Kind          string
	OrderStatus   string
	PrintStatus   string
	Emitted       string
}

// Sale returns a finalized, printed sale line.
func Sale(op, order int64, product string, qty, subtotal float64) Line {
	price := 0.0
	if qty != 0 {
		price = subtotal / qty
	}
	return Line{
		Operation:   op,
		Order:       order,
		Table:       1,
		User:        "caja",
		Product:     product,
		Category:    "BEBIDAS",
		Qty:         qty,
		Price:       price,
		Subtotal:    subtotal,
		Kind:        "VENTA",
		OrderStatus: "PROCESADO",
		PrintStatus: "IMPRESO",
		Emitted:     DefaultEmitted,
	}
}

func null(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func exec(t testing.TB, d *db.DB, sql string, args ...any) {
	t.Helper()
	if err := d.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
}

// InsertLines adds order lines to the all-operations view.
func InsertLines(t testing.TB, d *db.DB, lines ...Line) {
	t.Helper()
	for _, l := range lines {
		var prior any
		if l.PriorSubtotal != nil {
			prior = *l.PriorSubtotal
		}
		exec(t, d, `
			INSERT INTO comandas_v6_todas (
				id_operacion, id_comanda, id_mesa, usuario_reg,
				nombre, categoria, cantidad, precio_venta,
				sub_total, sub_total_anterior, tipo_salida,
				estado_comanda, estado_impresion, fecha_emision
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.Operation, l.Order, l.Table, null(l.User),
			null(l.Product), null(l.Category), l.Qty, l.Price,
			l.Subtotal, prior, null(l.Kind),
			null(l.OrderStatus), null(l.PrintStatus), null(l.Emitted),
		)
	}
}

// InsertOperation adds an enabled operation with status code
// 22 (open), 23 (closed) or 24 (reopened).
func InsertOperation(t testing.TB, d *db.DB, id int64, status int, fecha string) {
	t.Helper()
	exec(t, d, `
		INSERT INTO ope_operacion (id, fecha, nombre_operacion, estado, estado_operacion)
		VALUES (?, ?, ?, 'HAB', ?)`,
		id, fecha, "Operativa "+fecha, status,
	)
}

// InsertPrintLog sets the last print-log status of an order.
func InsertPrintLog(t testing.TB, d *db.DB, order int64, status string) {
	t.Helper()
	exec(t, d, `
		INSERT OR REPLACE INTO vw_comanda_ultima_impresion (id_comanda, estado_impresion)
		VALUES (?, ?)`, order, null(status))
}

// InsertOrder adds an order header with its print status.
func InsertOrder(t testing.TB, d *db.DB, id int64, printStatus string) {
	t.Helper()
	exec(t, d, `
		INSERT OR REPLACE INTO bar_comanda (id, estado_impresion)
		VALUES (?, ?)`, id, null(printStatus))
}

// InsertCOGS sets the cost of goods sold of an order.
func InsertCOGS(t testing.TB, d *db.DB, op, order int64, cogs float64) {
	t.Helper()
	exec(t, d, `
		INSERT INTO vw_cogs_comanda (id_operacion, id_comanda, fecha_emision, cogs_comanda)
		VALUES (?, ?, ?, ?)`, op, order, DefaultEmitted, cogs)
}

// Margin is one row of the per-order margin view.
type Margin struct {
	Operation int64
	Order     int64
	Sales     float64
	COGS      float64
	Emitted   string
}

// InsertMargins adds per-order margin rows; margin is derived as
// sales minus COGS.
func InsertMargins(t testing.TB, d *db.DB, rows ...Margin) {
	t.Helper()
	for _, m := range rows {
		emitted := m.Emitted
		if emitted == "" {
			emitted = DefaultEmitted
		}
		exec(t, d, `
			INSERT INTO vw_margen_comanda (
				id_operacion, id_comanda, id_mesa, usuario_reg,
				estado_comanda, fecha_emision, total_venta,
				cogs_comanda, margen_comanda
			) VALUES (?, ?, 1, 'caja', 'PROCESADO', ?, ?, ?, ?)`,
			m.Operation, m.Order, emitted, m.Sales, m.COGS, m.Sales-m.COGS,
		)
	}
}

// Consumption is one supply consumed during an operation.
type Consumption struct {
	Operation int64
	Product   int64
	Name      string
	Unit      string
	Qty       float64
	Cost      float64
}

// InsertConsumption adds rows to both consumption views.
func InsertConsumption(t testing.TB, d *db.DB, rows ...Consumption) {
	t.Helper()
	for _, c := range rows {
		wac := 0.0
		if c.Qty != 0 {
			wac = c.Cost / c.Qty
		}
		exec(t, d, `
			INSERT INTO vw_consumo_valorizado_operativa (
				id_operacion, id_producto, nombre_producto, unidad_medida,
				cantidad_consumida_base, wac_operativa, costo_consumo
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Operation, c.Product, c.Name, c.Unit, c.Qty, wac, c.Cost,
		)
		exec(t, d, `
			INSERT INTO vw_consumo_insumos_operativa (
				id_operacion, id_producto, nombre_producto, unidad_medida,
				cantidad_consumida_base
			) VALUES (?, ?, ?, ?, ?)`,
			c.Operation, c.Product, c.Name, c.Unit, c.Qty,
		)
	}
}
