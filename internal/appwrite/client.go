// Package appwrite はホスト型バックエンド（Appwrite互換API）のRESTクライアントを提供する。
// 認証プロバイダー、ドキュメントデータベース、サーバーレス関数の各サービスを扱う。
//
// Clientはグローバルシングルトンではなく、明示的に構築して各コンポーネントの
// コンストラクタに注入する（隠れたグローバル可変状態を避け、テストダブルを可能にする）。
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/MORTAKI0/VitaCoach/internal/metrics"
	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// メトリクスのserviceラベル値
const (
	serviceAccount   = "account"
	serviceDatabases = "databases"
	serviceFunctions = "functions"
)

// Client はAppwrite互換バックエンドのRESTクライアント。
// プロセス全体で共有される「現在のセッショントークン」を所有する。
// トークンはlogin/logout/restoreの各操作でのみ書き換えられ、
// ミューテックスにより書き込み途中の値が読まれることはない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.Recorder
	endpoint   string // 例: https://cloud.example.com/v1（末尾スラッシュなし）
	project    string

	mu    sync.RWMutex
	token string
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsRecorderはnilでもよい（記録をスキップする）。
func NewClient(httpClient *http.Client, logger *slog.Logger, rec metrics.Recorder, endpoint, project string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    rec,
		endpoint:   endpoint,
		project:    project,
	}
}

// SetToken は現在のセッショントークンを設定する。
// 以降の全リクエストにX-Appwrite-JWTヘッダーとして付与される。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken は現在のセッショントークンを破棄する。
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// Token は現在のセッショントークンを返す。未設定の場合は空文字列。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// appwriteError はバックエンドのエラーレスポンス。
type appwriteError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// do はバックエンドへのHTTPリクエストを1回実行し、レスポンスをoutにデコードする。
// bodyとoutはnil可。失敗はAPIErrorの分類（auth / not_found / conflict / network）に
// マッピングされる。コア自身はリトライしない（リトライは呼び出し側の判断）。
func (c *Client) do(ctx context.Context, service, method, path string, query url.Values, body any, out any) error {
	reqURL := c.endpoint + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.NewNetworkError(fmt.Sprintf("リクエストの構築に失敗しました: %v", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return model.NewNetworkError(fmt.Sprintf("リクエストの構築に失敗しました: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.project)
	if token := c.Token(); token != "" {
		req.Header.Set("X-Appwrite-JWT", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(service, "transport")
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("service", service),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	c.recordLatency(time.Since(start))
	c.recordRequest(service, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(service, "read_body")
		return model.NewNetworkError(fmt.Sprintf("レスポンスの読み取りに失敗しました: %v", err))
	}

	if resp.StatusCode >= 400 {
		return c.mapError(service, resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			c.recordFailure(service, "decode")
			return model.NewNetworkError(fmt.Sprintf("レスポンスのパースに失敗しました: %v", err))
		}
	}

	return nil
}

// mapError はバックエンドのエラーレスポンスをAPIErrorの分類に変換する。
func (c *Client) mapError(service string, statusCode int, body []byte) error {
	var remote appwriteError
	_ = json.Unmarshal(body, &remote)

	c.logger.Warn("リモートAPIがエラーステータスを返しました",
		slog.String("service", service),
		slog.Int("http_status", statusCode),
		slog.String("type", remote.Type),
	)

	switch {
	case statusCode == http.StatusUnauthorized:
		c.recordFailure(service, "unauthorized")
		return model.NewAuthenticationError()
	case statusCode == http.StatusNotFound:
		c.recordFailure(service, "not_found")
		return model.NewDocumentNotFoundError(remote.Type)
	case statusCode == http.StatusConflict:
		c.recordFailure(service, "conflict")
		return model.NewRemoteConflictError(remote.Type)
	default:
		c.recordFailure(service, "http_error")
		return model.NewNetworkError(fmt.Sprintf("ステータス %d (%s)", statusCode, remote.Type))
	}
}

func (c *Client) recordRequest(service string, statusCode int) {
	if c.metrics != nil {
		c.metrics.RecordRemoteRequest(service, statusCode)
	}
}

func (c *Client) recordFailure(service, reason string) {
	if c.metrics != nil {
		c.metrics.RecordRemoteFailure(service, reason)
	}
}

func (c *Client) recordLatency(d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordRemoteLatency(d)
	}
}
