package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
)

// sectionFunc computes one dashboard section over a scope. The
// receiver comes first so method expressions such as
// (*metrics.Service).KPIs fit directly.
type sectionFunc func(
	svc *metrics.Service, ctx context.Context, sc metrics.Scope,
) (any, error)

// open leases the request's profile pool. Callers must call
// release when done.
func (s *Server) open(r *http.Request) (d *db.DB, release func(), err error) {
	return s.provider.Acquire(s.profileName(r))
}

func (s *Server) builder(d *db.DB) query.Builder {
	b := query.NewBuilder(d.Dialect())
	b.PriorSubtotal = s.cfg.PriorSubtotal
	return b
}

func (s *Server) service(d *db.DB) *metrics.Service {
	return metrics.New(d, s.builder(d),
		metrics.WithClock(s.clock),
		metrics.WithPriorSubtotal(s.cfg.PriorSubtotal),
		metrics.WithLocation(s.loc),
	)
}

// serveSection resolves the request scope, runs fn and writes
// the result. A failure other than a caller error is answered
// with the last good result of the same request when there is
// one.
func (s *Server) serveSection(
	w http.ResponseWriter, r *http.Request, name string, fn sectionFunc,
) {
	key := s.staleKey(name, r)
	resp, err := s.computeSection(r, fn)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if !isConfigError(err) {
			if cached, ok := s.stale.get(key); ok {
				log.Printf("%s error [%s], serving stale result: %v",
					name, requestID(r.Context()), err)
				s.served.WithLabelValues(name, "stale").Inc()
				cached.Stale = true
				cached.Error = err.Error()
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
		s.writeFailure(w, r, name, err)
		return
	}
	s.stale.put(key, resp)
	s.served.WithLabelValues(name, "ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) computeSection(
	r *http.Request, fn sectionFunc,
) (sectionResponse, error) {
	d, release, err := s.open(r)
	if err != nil {
		return sectionResponse{}, err
	}
	defer release()
	sc, err := s.scope(r, d)
	if err != nil {
		return sectionResponse{}, err
	}
	data, err := fn(s.service(d), r.Context(), sc)
	if err != nil {
		return sectionResponse{}, err
	}
	return sectionResponse{Data: data, Scope: describeScope(sc)}, nil
}

// section adapts a typed metric call to sectionFunc.
func section[T any](
	fn func(*metrics.Service, context.Context, metrics.Scope) (T, error),
) sectionFunc {
	return func(
		svc *metrics.Service, ctx context.Context, sc metrics.Scope,
	) (any, error) {
		return fn(svc, ctx, sc)
	}
}

// badRequest answers a parameter error before any query runs.
func (s *Server) badRequest(
	w http.ResponseWriter, r *http.Request, name string, err error,
) {
	s.writeFailure(w, r, name, err)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	s.serveSection(w, r, "kpis", section((*metrics.Service).KPIs))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.serveSection(w, r, "status",
		section((*metrics.Service).OperationalStatus))
}

func (s *Server) handleStatusIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := query.ParseStatusKind(q.Get("kind"))
	if err != nil {
		s.badRequest(w, r, "status_ids", err)
		return
	}
	limit, err := parseLimit(q, s.cfg.Limits.StatusIDs)
	if err != nil {
		s.badRequest(w, r, "status_ids", err)
		return
	}
	s.serveSection(w, r, "status_ids", section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) ([]int64, error) {
			return svc.OrderIDs(ctx, sc, kind, limit)
		},
	))
}

func (s *Server) handlePrintSnapshot(
	w http.ResponseWriter, r *http.Request,
) {
	ids, err := parseIDs(r.URL.Query())
	if err != nil {
		s.badRequest(w, r, "print_snapshot", err)
		return
	}
	s.serveSection(w, r, "print_snapshot", section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) ([]metrics.PrintStatus, error) {
			return svc.PrintSnapshot(ctx, sc, ids)
		},
	))
}

// serveChart reads log and limit, then serves a grouped sales
// metric. def is the default limit; zero means unlimited.
func serveChart[T any](
	s *Server, w http.ResponseWriter, r *http.Request,
	name string, def int,
	fn func(*metrics.Service, context.Context, metrics.Scope, query.ChartOptions) ([]T, error),
) {
	q := r.URL.Query()
	useLog, err := parseBoolParam(q, "log")
	if err != nil {
		s.badRequest(w, r, name, err)
		return
	}
	limit, err := parseLimit(q, def)
	if err != nil {
		s.badRequest(w, r, name, err)
		return
	}
	opts := query.ChartOptions{UseLog: useLog, Limit: limit}
	s.serveSection(w, r, name, section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) ([]T, error) {
			return fn(svc, ctx, sc, opts)
		},
	))
}

func (s *Server) handleSalesByHour(w http.ResponseWriter, r *http.Request) {
	serveChart(s, w, r, "sales_by_hour", 0, (*metrics.Service).SalesByHour)
}

func (s *Server) handleSalesByCategory(
	w http.ResponseWriter, r *http.Request,
) {
	serveChart(s, w, r, "sales_by_category", 0,
		(*metrics.Service).SalesByCategory)
}

func (s *Server) handleSalesByUser(w http.ResponseWriter, r *http.Request) {
	serveChart(s, w, r, "sales_by_user", s.cfg.Limits.TopUsers,
		(*metrics.Service).SalesByUser)
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	serveChart(s, w, r, "top_products", s.cfg.Limits.TopProducts,
		(*metrics.Service).TopProducts)
}

func (s *Server) handlePourCost(w http.ResponseWriter, r *http.Request) {
	serveChart(s, w, r, "pour_cost_by_item", s.cfg.Limits.PourCost,
		(*metrics.Service).PourCostByItem)
}

func (s *Server) handleMarginSummary(
	w http.ResponseWriter, r *http.Request,
) {
	s.serveSection(w, r, "margin_summary",
		section((*metrics.Service).MarginSummary))
}

// serveList reads limit, then serves a table metric.
func serveList[T any](
	s *Server, w http.ResponseWriter, r *http.Request,
	name string, def int,
	fn func(*metrics.Service, context.Context, metrics.Scope, int) ([]T, error),
) {
	limit, err := parseLimit(r.URL.Query(), def)
	if err != nil {
		s.badRequest(w, r, name, err)
		return
	}
	s.serveSection(w, r, name, section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) ([]T, error) {
			return fn(svc, ctx, sc, limit)
		},
	))
}

func (s *Server) handleMarginDetail(w http.ResponseWriter, r *http.Request) {
	serveList(s, w, r, "margin_detail", s.cfg.Limits.Margins,
		(*metrics.Service).MarginDetail)
}

func (s *Server) handleCOGSByOrder(w http.ResponseWriter, r *http.Request) {
	serveList(s, w, r, "cogs_by_order", s.cfg.Limits.COGS,
		(*metrics.Service).COGSByOrder)
}

func (s *Server) handleValuedConsumption(
	w http.ResponseWriter, r *http.Request,
) {
	serveList(s, w, r, "valued_consumption", s.cfg.Limits.Consumption,
		(*metrics.Service).ValuedConsumption)
}

func (s *Server) handleUnvaluedConsumption(
	w http.ResponseWriter, r *http.Request,
) {
	serveList(s, w, r, "unvalued_consumption", s.cfg.Limits.Consumption,
		(*metrics.Service).UnvaluedConsumption)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	serveList(s, w, r, "detail", s.cfg.Limits.Detail,
		(*metrics.Service).Detail)
}

func (s *Server) handleOrderItems(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.badRequest(w, r, "order_items", fmt.Errorf(
			"%w: invalid order id %q", query.ErrConfiguration, r.PathValue("id"),
		))
		return
	}
	s.serveSection(w, r, "order_items", section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) ([]metrics.OrderItem, error) {
			return svc.OrderItems(ctx, sc, id)
		},
	))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	recent, err := parseIntParam(r.URL.Query(), "recent", s.cfg.Limits.RecentOrders)
	if err != nil {
		s.badRequest(w, r, "activity", err)
		return
	}
	recent = min(recent, query.MaxLimit)
	s.serveSection(w, r, "activity", section(
		func(svc *metrics.Service, ctx context.Context, sc metrics.Scope) (metrics.Activity, error) {
			return svc.Activity(ctx, sc, recent)
		},
	))
}
