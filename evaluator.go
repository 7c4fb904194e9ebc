package modver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Evaluator 外部 Flag 评估服务。
type Evaluator interface {
	// BatchEvaluate 一次往返评估多个 Flag，结果顺序与请求无关。
	BatchEvaluate(ctx context.Context, project string, reqs []EvaluationRequest) ([]EvaluationResponse, error)
	// Evaluate 评估单个 Flag。
	Evaluate(ctx context.Context, project string, req EvaluationRequest) (EvaluationResponse, error)
}

// HTTPEvaluator 通过 JSON/HTTP 调用评估服务：
//
//	POST <base>/projects/<project>/evaluations            批量
//	POST <base>/projects/<project>/evaluations/<feature>  单个
type HTTPEvaluator struct {
	client *http.Client
	base   string
}

// NewHTTPEvaluator 创建 HTTPEvaluator。client 为 nil 时使用带超时的默认客户端。
func NewHTTPEvaluator(baseURL string, client *http.Client) *HTTPEvaluator {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &HTTPEvaluator{
		client: client,
		base:   strings.TrimRight(baseURL, "/"),
	}
}

type batchEvaluateRequest struct {
	Requests []EvaluationRequest `json:"requests"`
}

type batchEvaluateResponse struct {
	Results []EvaluationResponse `json:"results"`
}

// BatchEvaluate 实现 Evaluator。
func (e *HTTPEvaluator) BatchEvaluate(ctx context.Context, project string, reqs []EvaluationRequest) ([]EvaluationResponse, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/evaluations", e.base, url.PathEscape(project))

	var out batchEvaluateResponse
	if err := e.post(ctx, endpoint, batchEvaluateRequest{Requests: reqs}, &out); err != nil {
		return nil, fmt.Errorf("batch evaluate %d features: %w", len(reqs), err)
	}
	return out.Results, nil
}

// Evaluate 实现 Evaluator。
func (e *HTTPEvaluator) Evaluate(ctx context.Context, project string, req EvaluationRequest) (EvaluationResponse, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/evaluations/%s",
		e.base, url.PathEscape(project), url.PathEscape(req.Feature))

	body := struct {
		EntityID          string `json:"entityId"`
		EvaluationContext string `json:"evaluationContext,omitempty"`
	}{req.EntityID, req.EvaluationContext}

	var out EvaluationResponse
	if err := e.post(ctx, endpoint, body, &out); err != nil {
		return EvaluationResponse{}, fmt.Errorf("evaluate %s: %w", req.Feature, err)
	}
	if out.Feature == "" {
		out.Feature = req.Feature
	}
	return out, nil
}

func (e *HTTPEvaluator) post(ctx context.Context, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// evaluationContext 把用户属性编码为评估上下文 JSON 字符串，无属性时为 "{}"。
func evaluationContext(u User) string {
	if len(u.Attributes) == 0 {
		return "{}"
	}
	data, err := json.Marshal(u.Attributes)
	if err != nil {
		return "{}"
	}
	return string(data)
}
