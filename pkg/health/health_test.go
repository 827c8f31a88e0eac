package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = make(map[string]string)
			return d.Obj(func(d *jx.Decoder, name string) error {
				s, err := d.Str()
				body.Checks[name] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, passing)
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code, "checks start healthy")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeStatus(t, w).Status)

	ctx := context.Background()
	for range failureThreshold - 1 {
		h.live[1].run(ctx)
	}
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below threshold")

	h.live[1].run(ctx)
	w = serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddReadinessCheck("ok", time.Second, passing)
	h.AddReadinessCheck("cache", time.Second, failing("cold"))
	h.SetReady(true)

	for range failureThreshold {
		h.readyz[1].run(context.Background())
	}
	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]string{"cache": "cold"}, decodeStatus(t, w).Checks)
	assert.False(t, h.IsReady())
}

func TestProbeRecovers(t *testing.T) {
	down := true
	p := newProbe("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	assert.Nil(t, p.err())

	ctx := context.Background()
	for range failureThreshold {
		p.run(ctx)
	}
	assert.False(t, p.isHealthy())
	assert.EqualError(t, p.err(), "down")

	down = false
	p.run(ctx)
	assert.True(t, p.isHealthy())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("fail", time.Second, failing("err"))
	h.AddReadinessCheck("ok", time.Second, passing)
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				serve(h.LiveEndpoint)
				serve(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return serve(h.LiveEndpoint).Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	err := GoroutineCountCheck(0)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))

	assert.NoError(t, PingCheck(pingerFunc(passing))(ctx))
	assert.Error(t, PingCheck(pingerFunc(failing("refused")))(ctx))
}

func TestPingCheck_KeepsReadiness(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, PingCheck(pingerFunc(passing)))
	h.SetReady(true)

	for range failureThreshold {
		h.readyz[0].run(context.Background())
	}
	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)

	err := PingCheck(pingerFunc(failing("refused")))(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
	assert.Contains(t, err.Error(), "refused")
}
