package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/format"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
	"github.com/wesm/barview/internal/startup"
)

type reportOptions struct {
	opIni, opFin string
	from, to     string
	useLog       bool
}

func (o *reportOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.opIni, "op-ini", "", "First operation of the range")
	fs.StringVar(&o.opFin, "op-fin", "", "Last operation of the range (default op-ini)")
	fs.StringVar(&o.from, "from", "", "First day of the range (YYYY-MM-DD)")
	fs.StringVar(&o.to, "to", "", "Last day of the range (default from)")
	fs.BoolVar(&o.useLog, "log", false, "Accept the print log as proof of printing")
}

// scope returns the explicit range of the options, or ok=false
// when none was given.
func (o reportOptions) scope() (sc metrics.Scope, ok bool, err error) {
	switch {
	case o.opIni != "" || o.opFin != "":
		ini, fin := o.opIni, o.opFin
		if ini == "" {
			ini = fin
		}
		if fin == "" {
			fin = ini
		}
		a, err := strconv.ParseInt(ini, 10, 64)
		if err != nil {
			return sc, false, fmt.Errorf("invalid -op-ini %q", ini)
		}
		b, err := strconv.ParseInt(fin, 10, 64)
		if err != nil {
			return sc, false, fmt.Errorf("invalid -op-fin %q", fin)
		}
		return metrics.Scope{
			View:    query.ViewAll,
			Filters: query.OperationRange(a, b),
			Mode:    query.ModeOps,
		}, true, nil
	case o.from != "" || o.to != "":
		from, to := o.from, o.to
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		f, err := query.DayRange(from, to)
		if err != nil {
			return sc, false, err
		}
		return metrics.Scope{
			View: query.ViewAll, Filters: f, Mode: query.ModeDates,
		}, true, nil
	}
	return sc, false, nil
}

// report is what the report command prints.
type report struct {
	Scope   metrics.Scope
	Context *startup.Context
	UseLog  bool
	KPIs    metrics.KPIs
	Status  metrics.OperationalStatus
	Margins metrics.MarginSummary
}

func runReport(args []string) {
	var opts reportOptions
	cfg := mustLoadConfig("report", args, func(fs *flag.FlagSet) {
		config.RegisterConnectionFlags(fs)
		opts.register(fs)
	})
	store := mustLoadProfiles(cfg)
	provider := db.NewProvider(store.Resolve)
	defer provider.Close()

	d, release, err := provider.Acquire(cfg.Profile)
	if err != nil {
		log.Fatalf("opening profile %q: %v", cfg.Profile, err)
	}
	defer release()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	r, err := buildReport(ctx, d, cfg, opts)
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	writeReport(os.Stdout, r)
}

func buildReport(
	ctx context.Context, d *db.DB, cfg config.Config, opts reportOptions,
) (report, error) {
	b := query.NewBuilder(d.Dialect())
	b.PriorSubtotal = cfg.PriorSubtotal
	svc := metrics.New(d, b, metrics.WithPriorSubtotal(cfg.PriorSubtotal))

	r := report{UseLog: opts.useLog}
	sc, explicit, err := opts.scope()
	if err != nil {
		return r, err
	}
	if !explicit {
		c, err := startup.Resolve(ctx, d, b)
		if err != nil {
			return r, err
		}
		r.Context = &c
		if sc, err = startup.DefaultScope(c); err != nil {
			return r, err
		}
	}
	r.Scope = sc

	if r.KPIs, err = svc.KPIs(ctx, sc); err != nil {
		return r, err
	}
	if r.Status, err = svc.OperationalStatus(ctx, sc); err != nil {
		return r, err
	}
	if r.Margins, err = svc.MarginSummary(ctx, sc); err != nil {
		return r, err
	}
	return r, nil
}

func describeRange(sc metrics.Scope) string {
	switch sc.Mode {
	case query.ModeOps:
		ini, fin := *sc.Filters.OpIni, *sc.Filters.OpFin
		if ini > fin {
			ini, fin = fin, ini
		}
		if ini == fin {
			return fmt.Sprintf("operativa #%d", ini)
		}
		return fmt.Sprintf("operativas #%d a #%d", ini, fin)
	case query.ModeDates:
		return fmt.Sprintf("%s a %s", sc.Filters.DtIni, sc.Filters.DtFin)
	}
	return "operativa abierta"
}

func writeReport(w io.Writer, r report) {
	if r.Context != nil && r.Context.Message != "" {
		fmt.Fprintln(w, r.Context.Message)
	}
	fmt.Fprintf(w, "Rango: %s\n\n", describeRange(r.Scope))

	total, orders := r.KPIs.TotalVendido, r.KPIs.TotalComandas
	items, ticket := r.KPIs.ItemsVendidos, r.KPIs.TicketPromedio
	if r.UseLog {
		total, orders = r.KPIs.TotalVendidoUsingLog, r.KPIs.TotalComandasUsingLog
		items, ticket = r.KPIs.ItemsVendidosUsingLog, r.KPIs.TicketPromedioUsingLog
	}
	fmt.Fprintf(w, "Total vendido     %s\n", format.Money(total))
	fmt.Fprintf(w, "Comandas          %s\n", format.Int(float64(orders)))
	fmt.Fprintf(w, "Items vendidos    %s\n", format.Int(items))
	fmt.Fprintf(w, "Ticket promedio   %s\n", format.Money(ticket))
	fmt.Fprintf(w, "Cortesías         %s (%s comandas)\n",
		format.Money(r.KPIs.TotalCortesia),
		format.Int(float64(r.KPIs.ComandasCortesia)))

	fmt.Fprintf(w, "\nVentas (margen)   %s\n", format.Money(r.Margins.TotalVentas))
	fmt.Fprintf(w, "COGS              %s\n", format.Money(r.Margins.TotalCOGS))
	fmt.Fprintf(w, "Margen            %s (%s)\n",
		format.Money(r.Margins.TotalMargen), format.Percent(r.Margins.MargenPct))
	fmt.Fprintf(w, "Pour cost         %s\n", format.Percent(r.Margins.PourCostPct))

	fmt.Fprintf(w, "\nPendientes %d · Anuladas %d · Impresión pendiente %d · Sin estado %d\n",
		r.Status.ComandasPendientes, r.Status.ComandasAnuladas,
		r.Status.ComandasImpresionPendiente, r.Status.ComandasSinEstadoImpresion)
}
