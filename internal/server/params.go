package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
	"github.com/wesm/barview/internal/startup"
)

// scopeInfo echoes the range a section was computed over, so
// callers relying on the default scope can see what it was.
type scopeInfo struct {
	View  query.View `json:"view"`
	Mode  query.Mode `json:"mode"`
	OpIni *int64     `json:"op_ini,omitempty"`
	OpFin *int64     `json:"op_fin,omitempty"`
	DtIni string     `json:"dt_ini,omitempty"`
	DtFin string     `json:"dt_fin,omitempty"`
}

func describeScope(sc metrics.Scope) *scopeInfo {
	info := &scopeInfo{View: sc.View, Mode: sc.Mode}
	if info.View == "" {
		info.View = query.ViewAll
	}
	switch sc.Mode {
	case query.ModeOps:
		info.OpIni, info.OpFin = sc.Filters.OpIni, sc.Filters.OpFin
	case query.ModeDates:
		info.DtIni, info.DtFin = sc.Filters.DtIni, sc.Filters.DtFin
	}
	return info
}

// profileName returns the connection profile a request targets.
func (s *Server) profileName(r *http.Request) string {
	if p := r.URL.Query().Get("profile"); p != "" {
		return p
	}
	return s.cfg.Profile
}

// scope builds the metric scope of a request. Without mode or
// range params it falls back to the startup context's default
// scope: the open operation, or the last closed one.
func (s *Server) scope(r *http.Request, d *db.DB) (metrics.Scope, error) {
	q := r.URL.Query()

	var view query.View
	if v := q.Get("view"); v != "" {
		parsed, err := query.ParseView(v)
		if err != nil {
			return metrics.Scope{}, err
		}
		view = parsed
	}

	f, explicit, err := parseFilters(q)
	if err != nil {
		return metrics.Scope{}, err
	}

	modeParam := q.Get("mode")
	if modeParam == "" && !explicit {
		c, err := startup.Resolve(r.Context(), d, s.builder(d))
		if err != nil {
			return metrics.Scope{}, err
		}
		sc, err := startup.DefaultScope(c)
		if err != nil {
			return metrics.Scope{}, err
		}
		if view != "" {
			sc.View = view
		}
		return sc, nil
	}

	var mode query.Mode
	switch {
	case modeParam != "":
		if mode, err = query.ParseMode(modeParam); err != nil {
			return metrics.Scope{}, err
		}
	case f.OpIni != nil || f.OpFin != nil:
		mode = query.ModeOps
	default:
		mode = query.ModeDates
	}
	if view == "" {
		view = query.ViewAll
		if mode == query.ModeNone {
			view = query.ViewCurrent
		}
	}
	return metrics.Scope{View: view, Filters: f, Mode: mode}, nil
}

// parseFilters reads op_ini/op_fin, from/to (whole days) and
// dt_ini/dt_fin (timestamps, overriding from/to). explicit is
// true when any of them was given.
func parseFilters(q url.Values) (query.Filters, bool, error) {
	var f query.Filters
	explicit := false

	for _, p := range []struct {
		name string
		dst  **int64
	}{
		{"op_ini", &f.OpIni},
		{"op_fin", &f.OpFin},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, false, fmt.Errorf(
				"%w: %s must be an integer", query.ErrConfiguration, p.name,
			)
		}
		*p.dst = &n
		explicit = true
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		days, err := query.DayRange(from, to)
		if err != nil {
			return f, false, err
		}
		f.DtIni, f.DtFin = days.DtIni, days.DtFin
		explicit = true
	}
	if v := q.Get("dt_ini"); v != "" {
		f.DtIni = v
		explicit = true
	}
	if v := q.Get("dt_fin"); v != "" {
		f.DtFin = v
		explicit = true
	}
	return f, explicit, nil
}

// parseIntParam parses an optional positive integer parameter,
// returning def when absent.
func parseIntParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf(
			"%w: %s must be a positive integer", query.ErrConfiguration, name,
		)
	}
	return n, nil
}

// parseLimit reads "limit", capped at query.MaxLimit.
func parseLimit(q url.Values, def int) (int, error) {
	n, err := parseIntParam(q, "limit", def)
	if err != nil {
		return 0, err
	}
	return min(n, query.MaxLimit), nil
}

// parseBoolParam treats an absent parameter as false.
func parseBoolParam(q url.Values, name string) (bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf(
			"%w: %s must be a boolean", query.ErrConfiguration, name,
		)
	}
	return b, nil
}

// parseIDs reads order ids given as repeated or comma separated
// "ids" values.
func parseIDs(q url.Values) ([]int64, error) {
	var ids []int64
	for _, raw := range q["ids"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"%w: invalid order id %q", query.ErrConfiguration, part,
				)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
