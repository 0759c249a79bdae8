package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mip/qsync/pkg/logger"
)

func newTestDispatcher(endpoint string, retries int) *Dispatcher {
	d := New(endpoint, time.Second, retries, time.Millisecond, NewState(), logger.Nop{})
	d.sleep = func(time.Duration) {}
	return d
}

func TestDispatchSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, 2)
	res := d.Dispatch(context.Background(), "s-1", map[string]any{"ok": true})

	if res.Status != StatusAcked {
		t.Errorf("Status = %v, want Acked", res.Status)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	last, at := d.State().Last()
	if last != "s-1" || at.IsZero() {
		t.Errorf("state not updated: last=%q at=%v", last, at)
	}
}

func TestDispatchDedupSkipsImmediatePredecessor(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, 2)
	ctx := context.Background()

	d.Dispatch(ctx, "s-1", nil)
	res := d.Dispatch(ctx, "s-1", nil)

	if !res.Skipped || res.Status != StatusIdle {
		t.Errorf("duplicate should be skipped: %+v", res)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	// 不同样本之后，旧样本 ID 可以再次派发
	d.Dispatch(ctx, "s-2", nil)
	res = d.Dispatch(ctx, "s-1", nil)
	if res.Skipped {
		t.Error("dedup should only apply to the immediate predecessor")
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("server hit %d times, want 3", hits)
	}
}

func TestDispatchRetriesOnServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, 2)
	res := d.Dispatch(context.Background(), "s-1", nil)

	if res.Status != StatusFailed {
		t.Errorf("Status = %v, want Failed", res.Status)
	}
	// 首次 + 2 次重试
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("server hit %d times, want 3", hits)
	}
	if res.HTTPCode != http.StatusServiceUnavailable {
		t.Errorf("HTTPCode = %d", res.HTTPCode)
	}

	// 失败不得污染去重状态
	if last, _ := d.State().Last(); last != "" {
		t.Errorf("failed dispatch should not mark state, got %q", last)
	}
}

func TestDispatchClientErrorDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, 2)
	res := d.Dispatch(context.Background(), "s-1", nil)

	if res.Status != StatusFailed {
		t.Errorf("Status = %v, want Failed", res.Status)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (4xx must not retry)", res.Attempts)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestDispatchRecoversAfterTransientError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, 2)
	res := d.Dispatch(context.Background(), "s-1", nil)

	if res.Status != StatusAcked {
		t.Errorf("Status = %v, want Acked", res.Status)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestDispatchNetworkErrorExhaustsRetries(t *testing.T) {
	// 连不上的端口
	d := newTestDispatcher("http://127.0.0.1:1", 1)
	res := d.Dispatch(context.Background(), "s-1", nil)

	if res.Status != StatusFailed {
		t.Errorf("Status = %v, want Failed", res.Status)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if res.Err == nil {
		t.Error("network failure should surface an error")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusSending, "sending"},
		{StatusAcked, "acked"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
