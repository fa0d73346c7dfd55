package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/soc-dashboard/internal/domain"
	"github.com/xela07ax/soc-dashboard/internal/engine"
)

// stubSource отдает ошибки из errs по очереди, затем data.
type stubSource struct {
	calls int32
	errs  []error
	data  []byte
}

func (s *stubSource) Fetch(ctx context.Context) ([]byte, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return s.data, nil
}

func (s *stubSource) Describe() string      { return "stub" }
func (s *stubSource) Origin() domain.Origin { return domain.OriginRemote }

func TestRemoteSource_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     map[string]string
		body       string
		wantErr    bool
		wantStatus int
		wantDelay  time.Duration
	}{
		{name: "ok", status: http.StatusOK, body: `[{"host":"10.0.0.1"}]`},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true, wantStatus: 500},
		{name: "not found", status: http.StatusNotFound, wantErr: true, wantStatus: 404},
		{name: "throttled", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, wantErr: true, wantStatus: 429, wantDelay: 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cacheControl string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cacheControl = r.Header.Get("Cache-Control")
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			data, err := NewRemoteSource(srv.URL, srv.Client()).Fetch(context.Background())

			assert.Equal(t, "no-store", cacheControl)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(data))
				return
			}
			require.Error(t, err)
			var sErr *StatusError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, tt.wantStatus, sErr.Code)

			var tErr *ThrottleError
			if tt.wantDelay > 0 {
				require.ErrorAs(t, err, &tErr)
				assert.Equal(t, tt.wantDelay, tErr.RetryAfter)
			} else {
				assert.False(t, errors.As(err, &tErr))
			}
		})
	}
}

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ia_decisions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	data, err := NewFileSource(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestBundleSource_SamplesDecode(t *testing.T) {
	for _, res := range Resources {
		t.Run(string(res), func(t *testing.T) {
			data, err := NewBundleSource(res).Fetch(context.Background())
			require.NoError(t, err)

			var n int
			switch res {
			case ResourceDecisions:
				d, err := domain.DecodeDecisions(data)
				require.NoError(t, err)
				n = len(d)
			case ResourceResponses:
				r, err := domain.DecodeResponses(data)
				require.NoError(t, err)
				n = len(r)
			case ResourceHistory:
				h, err := domain.DecodeHistory(data)
				require.NoError(t, err)
				n = len(h)
			}
			assert.Positive(t, n)
		})
	}
}

func TestBundleSource_IgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := NewBundleSource(ResourceDecisions).Fetch(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFallback_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantOrigin domain.Origin
		wantCause  bool
	}{
		{
			name: "remote ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"host":"10.9.9.9"}]`))
			},
			wantOrigin: domain.OriginRemote,
		},
		{
			name: "remote unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantOrigin: domain.OriginSample,
			wantCause:  true,
		},
		{
			name: "remote returns html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			wantOrigin: domain.OriginSample,
			wantCause:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f := New(ResourceDecisions, srv.URL, Options{HTTPClient: srv.Client(), Logger: zaptest.NewLogger(t)})
			p, err := f.Resolve(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.wantOrigin, p.Origin)
			assert.Equal(t, ResourceDecisions, p.Resource)
			assert.NotEmpty(t, p.Raw)
			if tt.wantCause {
				assert.Error(t, p.Cause)
				sample, err := Sample(ResourceDecisions)
				require.NoError(t, err)
				assert.Equal(t, sample, p.Raw)
			} else {
				assert.NoError(t, p.Cause)
				assert.Equal(t, srv.URL, p.Source)
			}
		})
	}
}

func TestFallback_InvalidJSONCause(t *testing.T) {
	primary := &stubSource{data: []byte(`{"truncated":`)}
	f := NewFallback(ResourceHistory, primary, NewBundleSource(ResourceHistory), engine.NewMetrics(nil), zaptest.NewLogger(t))

	p, err := f.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OriginSample, p.Origin)
	assert.ErrorIs(t, p.Cause, ErrInvalidPayload)
}

func TestFallback_NoPrimary(t *testing.T) {
	f := New(ResourceResponses, "", Options{Logger: zaptest.NewLogger(t)})

	p, err := f.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OriginSample, p.Origin)
	assert.Equal(t, "bundle:response_actions", p.Source)
}

func TestFallback_FileOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan_history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"host":"a","scan_id":"S1"}]`), 0o644))

	p, err := New(ResourceHistory, path, Options{Logger: zaptest.NewLogger(t)}).Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OriginFile, p.Origin)
}

func TestFallback_ExpiredContextServesSample(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	primary := &stubSource{errs: []error{context.DeadlineExceeded}}
	f := NewFallback(ResourceDecisions, primary, NewBundleSource(ResourceDecisions), engine.NewMetrics(nil), zaptest.NewLogger(t))

	p, err := f.Resolve(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.OriginSample, p.Origin)
	assert.ErrorIs(t, p.Cause, context.DeadlineExceeded)
	assert.NotEmpty(t, p.Raw)
}

func TestReliableSource_Retries(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int32
		wantErr   bool
	}{
		{name: "recovers after transient errors", errs: []error{&StatusError{Code: 502}, errors.New("connection reset")}, wantCalls: 3},
		{name: "client error not retried", errs: []error{&StatusError{Code: 404}}, wantCalls: 1, wantErr: true},
		{name: "invalid payload not retried", errs: []error{ErrInvalidPayload}, wantCalls: 1, wantErr: true},
		{name: "gives up after attempts", errs: []error{&StatusError{Code: 500}, &StatusError{Code: 500}, &StatusError{Code: 500}}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSource{errs: tt.errs, data: []byte(`[]`)}
			rs := NewReliableSource(stub, ReliabilityConfig{Attempts: 3, RateLimit: 1000, RateBurst: 10}, engine.NewMetrics(nil), zaptest.NewLogger(t))

			data, err := rs.Fetch(context.Background())

			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&stub.calls))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "[]", string(data))
		})
	}
}

func TestReliableSource_CircuitOpens(t *testing.T) {
	fail := &StatusError{Code: 503}
	stub := &stubSource{errs: []error{fail, fail, fail, fail}}
	rs := NewReliableSource(stub, ReliabilityConfig{
		Attempts:   1,
		RateLimit:  1000,
		RateBurst:  10,
		CBFailures: 2,
		CBTimeout:  time.Minute,
	}, engine.NewMetrics(nil), zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := rs.Fetch(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, rs.State())

	_, err := rs.Fetch(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls))
}

func TestRetryAfter(t *testing.T) {
	d, ok := retryAfter("5")
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	_, ok = retryAfter("")
	assert.False(t, ok)

	_, ok = retryAfter("soon")
	assert.False(t, ok)

	d, ok = retryAfter(time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
	assert.True(t, ok)
	assert.Zero(t, d)
}
