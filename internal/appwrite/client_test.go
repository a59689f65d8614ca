package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(server *httptest.Server, buf *bytes.Buffer) *Client {
	return NewClient(server.Client(), newTestLogger(buf), nil, server.URL, "test-project")
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), nil, "https://example.com/v1", "proj")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
}

func TestClient_SetsProjectHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Appwrite-Project"); got != "test-project" {
			t.Errorf("X-Appwrite-Project = %s, want test-project", got)
		}
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	if _, err := c.GetAccount(context.Background()); err != nil {
		t.Fatalf("GetAccount がエラーを返した: %v", err)
	}
}

func TestClient_SetsJWTHeaderWhenTokenPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Appwrite-JWT"); got != "token-abc" {
			t.Errorf("X-Appwrite-JWT = %s, want token-abc", got)
		}
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)
	c.SetToken("token-abc")

	if _, err := c.GetAccount(context.Background()); err != nil {
		t.Fatalf("GetAccount がエラーを返した: %v", err)
	}
}

func TestClient_OmitsJWTHeaderWhenTokenCleared(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, present := r.Header["X-Appwrite-Jwt"]; present {
			t.Error("トークン未設定時にX-Appwrite-JWTヘッダーを付与してはならない")
		}
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)
	c.SetToken("stale")
	c.ClearToken()

	if _, err := c.GetAccount(context.Background()); err != nil {
		t.Fatalf("GetAccount がエラーを返した: %v", err)
	}
}

func TestClient_CreateEmailSession_DecodesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if r.URL.Path != "/account/sessions/email" {
			t.Errorf("パス = %s, want /account/sessions/email", r.URL.Path)
		}

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "user@example.com" {
			t.Errorf("email = %s, want user@example.com", body["email"])
		}

		json.NewEncoder(w).Encode(map[string]string{
			"$id":    "sess-1",
			"userId": "user-1",
		})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	session, err := c.CreateEmailSession(context.Background(), "user@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateEmailSession がエラーを返した: %v", err)
	}
	if session.ID != "sess-1" {
		t.Errorf("セッションID = %s, want sess-1", session.ID)
	}
	if session.UserID != "user-1" {
		t.Errorf("ユーザーID = %s, want user-1", session.UserID)
	}
}

func TestClient_Unauthorized_MapsToAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Invalid credentials",
			"code":    401,
			"type":    "user_invalid_credentials",
		})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	_, err := c.CreateEmailSession(context.Background(), "user@example.com", "wrong")
	if err == nil {
		t.Fatal("401応答でエラーが返されるべき")
	}
	if !model.IsCode(err, model.ErrCodeAuthenticationFailed) {
		t.Errorf("AUTHENTICATION_FAILED であるべき: got %v", err)
	}
}

func TestClient_NotFound_MapsToDocumentNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Document not found",
			"code":    404,
			"type":    "document_not_found",
		})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	var out map[string]any
	err := c.GetDocument(context.Background(), "db", "col", "missing", &out)
	if err == nil {
		t.Fatal("404応答でエラーが返されるべき")
	}
	if !model.IsCode(err, model.ErrCodeDocumentNotFound) {
		t.Errorf("DOCUMENT_NOT_FOUND であるべき: got %v", err)
	}
}

func TestClient_ServerError_MapsToNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	_, err := c.GetAccount(context.Background())
	if err == nil {
		t.Fatal("500応答でエラーが返されるべき")
	}
	if !model.IsCode(err, model.ErrCodeNetworkError) {
		t.Errorf("NETWORK_ERROR であるべき: got %v", err)
	}
}

func TestClient_TransportFailure_MapsToNetworkError(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), nil, "http://127.0.0.1:1", "proj")

	_, err := c.GetAccount(context.Background())
	if err == nil {
		t.Fatal("接続失敗でエラーが返されるべき")
	}
	if !model.IsCode(err, model.ErrCodeNetworkError) {
		t.Errorf("NETWORK_ERROR であるべき: got %v", err)
	}

	// エラーログが出力されていること
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("接続失敗時にERRORレベルのログが記録されるべき: %s", buf.String())
	}
}

func TestClient_CreateJWT_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jwt":""}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	_, err := c.CreateJWT(context.Background())
	if err == nil {
		t.Fatal("空のJWTレスポンスでエラーが返されるべき")
	}
}

func TestClient_ListDocuments_SendsQueries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()["queries[]"]
		if len(queries) != 2 {
			t.Errorf("クエリパラメータ数 = %d, want 2", len(queries))
		}
		if !strings.Contains(queries[0], `"method":"equal"`) {
			t.Errorf("等価クエリであるべき: %s", queries[0])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"documents": []map[string]any{
				{"$id": "rel-1", "userId": "user-1", "coachId": "coach-1", "status": "active"},
			},
		})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	var rels []model.Relationship
	total, err := c.ListDocuments(context.Background(), "db", "col", []string{
		QueryEqual("userId", "user-1"),
		QueryNotEqual("status", "ended"),
	}, &rels)
	if err != nil {
		t.Fatalf("ListDocuments がエラーを返した: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(rels) != 1 || rels[0].ID != "rel-1" {
		t.Errorf("デコード結果が不正: %+v", rels)
	}
}

func TestClient_CreateDocument_SendsDocumentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["documentId"] != "doc-1" {
			t.Errorf("documentId = %v, want doc-1", body["documentId"])
		}
		data, ok := body["data"].(map[string]any)
		if !ok || data["userId"] != "user-1" {
			t.Errorf("dataが不正: %v", body["data"])
		}
		json.NewEncoder(w).Encode(map[string]any{"$id": "doc-1"})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	err := c.CreateDocument(context.Background(), "db", "col", "doc-1", map[string]any{"userId": "user-1"}, nil)
	if err != nil {
		t.Fatalf("CreateDocument がエラーを返した: %v", err)
	}
}

func TestClient_CreateExecution_SendsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/fn-rating/executions" {
			t.Errorf("パス = %s, want /functions/fn-rating/executions", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["body"] != `{"coachId":"coach-1"}` {
			t.Errorf("ペイロード = %s", body["body"])
		}
		json.NewEncoder(w).Encode(map[string]string{"$id": "exec-1", "status": "completed"})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(server, &buf)

	exec, err := c.CreateExecution(context.Background(), "fn-rating", `{"coachId":"coach-1"}`)
	if err != nil {
		t.Fatalf("CreateExecution がエラーを返した: %v", err)
	}
	if exec.Status != "completed" {
		t.Errorf("status = %s, want completed", exec.Status)
	}
}

func TestQueryEqual_Format(t *testing.T) {
	got := QueryEqual("userId", "user-1")
	want := `{"method":"equal","attribute":"userId","values":["user-1"]}`
	if got != want {
		t.Errorf("QueryEqual = %s, want %s", got, want)
	}
}

func TestQueryOrderDesc_Format(t *testing.T) {
	got := QueryOrderDesc("createdAt")
	want := `{"method":"orderDesc","attribute":"createdAt"}`
	if got != want {
		t.Errorf("QueryOrderDesc = %s, want %s", got, want)
	}
}
