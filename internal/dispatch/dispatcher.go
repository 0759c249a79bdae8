package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mip/qsync/pkg/logger"
)

// 派发状态机状态
type Status int

const (
	StatusIdle Status = iota
	StatusSending
	StatusAcked
	StatusFailed
)

// String 状态名
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSending:
		return "sending"
	case StatusAcked:
		return "acked"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// 默认派发参数（与下游契约一致）
const (
	DefaultTimeout = 6 * time.Second
	DefaultRetries = 2
	DefaultBackoff = 400 * time.Millisecond
)

// State 进程级派发状态
// 仅记录最近一次成功派发的样本，去重只针对紧邻前驱样本
type State struct {
	mu             sync.RWMutex
	lastSampleID   string
	lastDispatchAt time.Time
}

// NewState 创建空派发状态（进程启动时初始化）
func NewState() *State {
	return &State{}
}

// Last 读取最近成功派发的样本 ID 与时间
func (s *State) Last() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSampleID, s.lastDispatchAt
}

// markDispatched 仅在下游确认成功后更新
func (s *State) markDispatched(sampleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSampleID = sampleID
	s.lastDispatchAt = time.Now()
}

// Result 单次派发的终态
type Result struct {
	Status   Status
	Attempts int
	HTTPCode int
	Skipped  bool
	Err      error
}

// Dispatcher 下游派发器
// 状态机：Idle → Sending → {Acked, Failed}；Failed 对该样本即为终态，不再补投
type Dispatcher struct {
	endpoint string
	client   *http.Client
	retries  int
	backoff  time.Duration
	state    *State
	logger   logger.Logger

	// sleep 可注入以便测试固定退避
	sleep func(time.Duration)
}

// New 创建派发器
// retries 为首次之外的额外重试次数；timeout/backoff <= 0 时取默认值
func New(endpoint string, timeout time.Duration, retries int, backoff time.Duration, state *State, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if state == nil {
		state = NewState()
	}
	return &Dispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retries:  retries,
		backoff:  backoff,
		state:    state,
		logger:   log,
		sleep:    time.Sleep,
	}
}

// State 返回派发状态（查询端只读访问）
func (d *Dispatcher) State() *State {
	return d.state
}

// Dispatch 派发组合 payload
// sampleID 与上次成功派发相同时直接跳过（幂等去重，不发起网络调用）。
// payload 为调用方构建好的快照，派发期间不持有账本锁。
func (d *Dispatcher) Dispatch(ctx context.Context, sampleID string, payload any) *Result {
	last, _ := d.state.Last()
	if sampleID != "" && sampleID == last {
		d.logger.Infof(ctx, "[Dispatcher] sample_id unchanged (%s), skipping POST", sampleID)
		return &Result{Status: StatusIdle, Skipped: true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &Result{Status: StatusFailed, Err: fmt.Errorf("marshal payload failed: %w", err)}
	}

	// Sending：首次 + 最多 retries 次重试
	var lastErr error
	lastCode := 0
	attempts := 0

	for attempt := 1; attempt <= d.retries+1; attempt++ {
		attempts = attempt

		code, err := d.post(ctx, body)
		lastCode = code
		lastErr = err

		// 2xx → Acked
		if err == nil && code >= 200 && code < 300 {
			d.state.markDispatched(sampleID)
			d.logger.Infof(ctx, "[Dispatcher] POST successful (status=%d, attempts=%d)", code, attempt)
			return &Result{Status: StatusAcked, Attempts: attempt, HTTPCode: code}
		}

		// 4xx → 立即失败，不重试
		if err == nil && code >= 400 && code < 500 {
			d.logger.Errorf(ctx, "[Dispatcher] POST rejected (status=%d), not retrying", code)
			return &Result{Status: StatusFailed, Attempts: attempt, HTTPCode: code}
		}

		// 5xx 或网络错误 → 固定间隔后重试
		if attempt <= d.retries {
			d.logger.Warnf(ctx, "[Dispatcher] POST attempt %d failed (status=%d, err=%v), retrying in %v",
				attempt, code, err, d.backoff)
			d.sleep(d.backoff)
		}
	}

	d.logger.Errorf(ctx, "[Dispatcher] POST failed after %d attempts (status=%d, err=%v)",
		attempts, lastCode, lastErr)
	return &Result{Status: StatusFailed, Attempts: attempts, HTTPCode: lastCode, Err: lastErr}
}

// post 执行单次 POST
func (d *Dispatcher) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post to downstream failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
