package modver

import (
	"context"
	"errors"
	"sync"
	"time"
)

func strPtr(s string) *string { return &s }

// fakeEvaluator 按 Flag 名返回预设结果，未配置的 Flag 返回 None/DEFAULT。
type fakeEvaluator struct {
	mu      sync.Mutex
	results map[string]EvaluationResponse
	extra   []EvaluationResponse // 每个批次额外返回的结果
	failOn  string               // 批次包含该 Flag 时失败
	calls   [][]EvaluationRequest
	single  func(req EvaluationRequest) (EvaluationResponse, error)
}

func (f *fakeEvaluator) BatchEvaluate(_ context.Context, _ string, reqs []EvaluationRequest) ([]EvaluationResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]EvaluationRequest(nil), reqs...))
	f.mu.Unlock()

	out := make([]EvaluationResponse, 0, len(reqs)+len(f.extra))
	for _, r := range reqs {
		if f.failOn != "" && r.Feature == f.failOn {
			return nil, errors.New("evaluation service unavailable")
		}
		resp, ok := f.results[r.Feature]
		if !ok {
			resp = EvaluationResponse{
				Value:  FeatureValue{StringValue: strPtr(ValueNone)},
				Reason: ReasonDefault,
			}
		}
		if resp.Feature == "" {
			resp.Feature = "projects/proj/features/" + r.Feature
		}
		out = append(out, resp)
	}
	return append(out, f.extra...), nil
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, req EvaluationRequest) (EvaluationResponse, error) {
	if f.single != nil {
		return f.single(req)
	}
	resp, ok := f.results[req.Feature]
	if !ok {
		return EvaluationResponse{}, errors.New("feature not found")
	}
	return resp, nil
}

func (f *fakeEvaluator) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.calls))
	for i, c := range f.calls {
		sizes[i] = len(c)
	}
	return sizes
}

// fakeSource 可控的配置文档来源。
type fakeSource struct {
	mu       sync.Mutex
	version  string
	body     []byte
	err      error
	delay    time.Duration // 每次拉取的耗时
	calls    int
	inFlight int
	maxIn    int
}

func (s *fakeSource) set(version, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version, s.body, s.err = version, []byte(body), nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) Fetch(_ context.Context) (*ConfigFetch, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxIn {
		s.maxIn = s.inFlight
	}
	version, body, err, delay := s.version, s.body, s.err, s.delay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &ConfigFetch{Version: version, Body: body}, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// chanFeed 由测试逐条推送事件的变更流。
type chanFeed struct {
	events chan FeedEvent
	errs   chan error
}

func newChanFeed() *chanFeed {
	return &chanFeed{events: make(chan FeedEvent), errs: make(chan error, 1)}
}

func (f *chanFeed) Next(ctx context.Context) (FeedEvent, error) {
	select {
	case <-ctx.Done():
		return FeedEvent{}, ctx.Err()
	case ev := <-f.events:
		return ev, nil
	case err := <-f.errs:
		return FeedEvent{}, err
	}
}
