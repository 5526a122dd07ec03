package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
)

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("slow handler", func(t *testing.T) {
		s := &Server{cfg: config.Config{WriteTimeout: 10 * time.Millisecond}}
		h := s.withTimeout(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			w.Write([]byte("too slow"))
		})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "request timed out", gjson.Get(w.Body.String(), "error").String())
	})

	t.Run("injected delay", func(t *testing.T) {
		s := &Server{
			cfg:          config.Config{WriteTimeout: 10 * time.Millisecond},
			handlerDelay: 50 * time.Millisecond,
		}
		h := s.withTimeout(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("fast handler", func(t *testing.T) {
		s := &Server{cfg: config.Config{WriteTimeout: time.Second}}
		h := s.withTimeout(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Custom", "value")
			writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
		})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "value", w.Header().Get("X-Custom"))
		assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	})
}

func TestTimeoutWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		handler         http.HandlerFunc
		wantStatus      int
		wantContentType string
	}{
		{
			name: "labels 503 as json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "application/json",
		},
		{
			name: "keeps existing header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "text/plain",
		},
		{
			name: "ignores other statuses",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tw := &timeoutWriter{ResponseWriter: rec}
			tt.handler(tw, httptest.NewRequest("GET", "/", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantContentType, rec.Header().Get("Content-Type"))
		})
	}
}

func TestStaleCacheEvicts(t *testing.T) {
	c := newStaleCache(2)
	c.put("a", sectionResponse{Data: 1})
	c.put("b", sectionResponse{Data: 2})
	c.put("a", sectionResponse{Data: 3})
	assert.Len(t, c.entries, 2, "overwrite does not evict")

	c.put("c", sectionResponse{Data: 4})
	assert.Len(t, c.entries, 2)
	got, ok := c.get("c")
	require.True(t, ok)
	assert.Equal(t, 4, got.Data)
}

func TestParseFilters(t *testing.T) {
	i64 := func(n int64) *int64 { return &n }

	tests := []struct {
		name         string
		raw          string
		want         query.Filters
		wantExplicit bool
		wantErr      bool
	}{
		{name: "none", raw: ""},
		{
			name:         "operations",
			raw:          "op_ini=5&op_fin=3",
			want:         query.Filters{OpIni: i64(5), OpFin: i64(3)},
			wantExplicit: true,
		},
		{
			name: "single day",
			raw:  "to=2024-06-01",
			want: query.Filters{
				DtIni: "2024-06-01 00:00:00", DtFin: "2024-06-01 23:59:59",
			},
			wantExplicit: true,
		},
		{
			name: "timestamps override days",
			raw:  "from=2024-06-01&to=2024-06-03&dt_fin=2024-06-02+06:00:00",
			want: query.Filters{
				DtIni: "2024-06-01 00:00:00", DtFin: "2024-06-02 06:00:00",
			},
			wantExplicit: true,
		},
		{name: "bad op", raw: "op_fin=x", wantErr: true},
		{name: "bad day", raw: "from=01/06/2024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)
			got, explicit, err := parseFilters(q)
			if tt.wantErr {
				assert.ErrorIs(t, err, query.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExplicit, explicit)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("filters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLimitAndIDs(t *testing.T) {
	q := url.Values{}
	n, err := parseLimit(q, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	q.Set("limit", strconv.Itoa(query.MaxLimit*2))
	n, err = parseLimit(q, 20)
	require.NoError(t, err)
	assert.Equal(t, query.MaxLimit, n)

	ids, err := parseIDs(url.Values{"ids": {"3, 1", "2,,"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	ids, err = parseIDs(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDescribeScope(t *testing.T) {
	ops := describeScope(metrics.Scope{
		Filters: query.Filters{
			OpIni: new(int64), OpFin: new(int64), DtIni: "ignored",
		},
		Mode: query.ModeOps,
	})
	assert.Equal(t, query.ViewAll, ops.View)
	assert.NotNil(t, ops.OpIni)
	assert.Empty(t, ops.DtIni)

	none := describeScope(metrics.Scope{View: query.ViewCurrent, Mode: query.ModeNone})
	assert.Equal(t, &scopeInfo{View: query.ViewCurrent, Mode: query.ModeNone}, none)
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, isConfigError(config.ErrUnknownProfile))
	assert.True(t, isConfigError(query.ErrInvalidMode))
	assert.False(t, isConfigError(http.ErrServerClosed))
}
