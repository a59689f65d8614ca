// Package appwritetest はテストとローカル開発用のインメモリバックエンドを提供する。
// Appwrite互換のREST APIの最小サブセット（アカウント、セッション、JWT、
// ドキュメントCRUD、関数実行）をchiルーターで実装する。
package appwritetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Options はServerの動作設定。
// 評価集計の再計算にはデータベースとコレクションの位置が必要になる。
type Options struct {
	DatabaseID          string
	UsersCollectionID   string
	RatingsCollectionID string
	RatingFunctionID    string
}

type account struct {
	ID        string
	Email     string
	Password  string
	Name      string
	CreatedAt time.Time
}

// Server はAppwrite互換のインメモリバックエンド。
type Server struct {
	opts   Options
	router chi.Router
	secret []byte

	mu        sync.Mutex
	accounts  map[string]*account          // accountID -> account
	emails    map[string]string            // email -> accountID
	sessions  map[string]string            // session secret -> accountID
	documents map[string]map[string]docMap // databaseID -> collectionID -> documents
}

type docMap map[string]map[string]any

// NewServer は新しいServerを生成する。
func NewServer(opts Options) *Server {
	s := &Server{
		opts:      opts,
		secret:    []byte("appwritetest-secret"),
		accounts:  make(map[string]*account),
		emails:    make(map[string]string),
		sessions:  make(map[string]string),
		documents: make(map[string]map[string]docMap),
	}

	r := chi.NewRouter()
	r.Post("/account", s.handleCreateAccount)
	r.Post("/account/sessions/email", s.handleCreateEmailSession)
	r.Delete("/account/sessions/current", s.handleDeleteCurrentSession)
	r.Get("/account", s.handleGetAccount)
	r.Post("/account/jwts", s.handleCreateJWT)

	r.Route("/databases/{databaseID}/collections/{collectionID}/documents", func(r chi.Router) {
		r.Post("/", s.handleCreateDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/{documentID}", s.handleGetDocument)
		r.Patch("/{documentID}", s.handleUpdateDocument)
		r.Delete("/{documentID}", s.handleDeleteDocument)
	})

	r.Post("/functions/{functionID}/executions", s.handleCreateExecution)

	s.router = r
	return s
}

// ServeHTTP はhttp.Handlerを実装する。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// writeError はAppwrite形式のエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, code int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"message": message,
		"code":    code,
		"type":    errType,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// authenticate はX-Appwrite-JWTヘッダーからアカウントIDを解決する。
// セッションシークレットと署名済みJWTの両方を受け付ける。
func (s *Server) authenticate(r *http.Request) (string, bool) {
	token := r.Header.Get("X-Appwrite-JWT")
	if token == "" {
		return "", false
	}

	s.mu.Lock()
	accountID, ok := s.sessions[token]
	s.mu.Unlock()
	if ok {
		return accountID, true
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[body.Email]; exists {
		writeError(w, http.StatusConflict, "user_already_exists", "a user with the same email already exists")
		return
	}

	acc := &account{
		ID:        body.UserID,
		Email:     body.Email,
		Password:  body.Password,
		Name:      body.Name,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[acc.ID] = acc
	s.emails[acc.Email] = acc.ID

	writeJSON(w, http.StatusCreated, map[string]any{
		"$id":        acc.ID,
		"email":      acc.Email,
		"name":       acc.Name,
		"$createdAt": acc.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleCreateEmailSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.emails[body.Email]
	if !ok || s.accounts[accountID].Password != body.Password {
		writeError(w, http.StatusUnauthorized, "user_invalid_credentials", "invalid credentials")
		return
	}

	secret := uuid.NewString()
	s.sessions[secret] = accountID

	writeJSON(w, http.StatusCreated, map[string]any{
		"$id":        uuid.NewString(),
		"userId":     accountID,
		"provider":   "email",
		"secret":     secret,
		"expire":     time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339Nano),
		"$createdAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for secret, id := range s.sessions {
		if id == accountID {
			delete(s.sessions, secret)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	s.mu.Lock()
	acc, exists := s.accounts[accountID]
	s.mu.Unlock()
	if !exists {
		writeError(w, http.StatusUnauthorized, "user_not_found", "account no longer exists")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"$id":        acc.ID,
		"email":      acc.Email,
		"name":       acc.Name,
		"$createdAt": acc.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleCreateJWT(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "general_server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"jwt": signed})
}

func (s *Server) collection(databaseID, collectionID string) docMap {
	db, ok := s.documents[databaseID]
	if !ok {
		db = make(map[string]docMap)
		s.documents[databaseID] = db
	}
	col, ok := db[collectionID]
	if !ok {
		col = make(docMap)
		db[collectionID] = col
	}
	return col
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	var body struct {
		DocumentID string         `json:"documentId"`
		Data       map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(chi.URLParam(r, "databaseID"), chi.URLParam(r, "collectionID"))
	if _, exists := col[body.DocumentID]; exists {
		writeError(w, http.StatusConflict, "document_already_exists", "document with the requested ID already exists")
		return
	}

	doc := make(map[string]any, len(body.Data)+2)
	for k, v := range body.Data {
		doc[k] = v
	}
	doc["$id"] = body.DocumentID
	// カスタム属性は書き込まれたものだけを保持する。createdAtの補完はしない。
	doc["$createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	col[body.DocumentID] = doc

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(chi.URLParam(r, "databaseID"), chi.URLParam(r, "collectionID"))
	doc, exists := col[chi.URLParam(r, "documentID")]
	if !exists {
		writeError(w, http.StatusNotFound, "document_not_found", "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(chi.URLParam(r, "databaseID"), chi.URLParam(r, "collectionID"))
	doc, exists := col[chi.URLParam(r, "documentID")]
	if !exists {
		writeError(w, http.StatusNotFound, "document_not_found", "document not found")
		return
	}
	for k, v := range body.Data {
		doc[k] = v
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(chi.URLParam(r, "databaseID"), chi.URLParam(r, "collectionID"))
	documentID := chi.URLParam(r, "documentID")
	if _, exists := col[documentID]; !exists {
		writeError(w, http.StatusNotFound, "document_not_found", "document not found")
		return
	}
	delete(col, documentID)
	w.WriteHeader(http.StatusNoContent)
}

// listQuery はクエリパラメータのJSON表現。
type listQuery struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute"`
	Values    []any  `json:"values"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	var queries []listQuery
	for _, raw := range r.URL.Query()["queries[]"] {
		var q listQuery
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			writeError(w, http.StatusBadRequest, "general_query_invalid", "invalid query: "+raw)
			return
		}
		queries = append(queries, q)
	}

	s.mu.Lock()
	col := s.collection(chi.URLParam(r, "databaseID"), chi.URLParam(r, "collectionID"))
	docs := make([]map[string]any, 0, len(col))
	for _, doc := range col {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	for _, q := range queries {
		switch q.Method {
		case "equal":
			docs = filterDocs(docs, func(doc map[string]any) bool {
				return len(q.Values) > 0 && valueEqual(doc[q.Attribute], q.Values[0])
			})
		case "notEqual":
			docs = filterDocs(docs, func(doc map[string]any) bool {
				return len(q.Values) > 0 && !valueEqual(doc[q.Attribute], q.Values[0])
			})
		case "orderDesc":
			attr := q.Attribute
			sort.SliceStable(docs, func(i, j int) bool {
				return fmt.Sprint(docs[i][attr]) > fmt.Sprint(docs[j][attr])
			})
		default:
			writeError(w, http.StatusBadRequest, "general_query_invalid", "unsupported query method: "+q.Method)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(docs),
		"documents": docs,
	})
}

func filterDocs(docs []map[string]any, keep func(map[string]any) bool) []map[string]any {
	out := docs[:0:0]
	for _, doc := range docs {
		if keep(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// valueEqual はJSONデコード後の型差（float64/int等）を吸収して比較する。
func valueEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing session")
		return
	}

	functionID := chi.URLParam(r, "functionID")
	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_bad_request", "invalid body")
		return
	}

	status := "completed"
	if functionID == s.opts.RatingFunctionID {
		if err := s.recomputeAvgRating(body.Body); err != nil {
			status = "failed"
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"$id":          uuid.NewString(),
		"status":       status,
		"responseBody": "",
	})
}

// recomputeAvgRating は評価集計関数の挙動を再現する。
// ペイロードのcoachIdに対する全評価の平均を計算し、
// コーチのプロファイルのavgRatingを更新する。
func (s *Server) recomputeAvgRating(payload string) error {
	var req struct {
		CoachID string `json:"coachId"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.CoachID == "" {
		return fmt.Errorf("invalid payload: %s", payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ratings := s.collection(s.opts.DatabaseID, s.opts.RatingsCollectionID)
	var sum, count float64
	for _, doc := range ratings {
		if valueEqual(doc["coachId"], req.CoachID) {
			if stars, ok := doc["stars"].(float64); ok {
				sum += stars
				count++
			}
		}
	}

	users := s.collection(s.opts.DatabaseID, s.opts.UsersCollectionID)
	for _, doc := range users {
		if valueEqual(doc["userId"], req.CoachID) {
			if count > 0 {
				doc["avgRating"] = sum / count
			} else {
				doc["avgRating"] = 0.0
			}
			return nil
		}
	}
	return fmt.Errorf("coach profile not found: %s", req.CoachID)
}

// SeedAccount はテスト用にアカウントを直接登録する。
func (s *Server) SeedAccount(id, email, password, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = &account{ID: id, Email: email, Password: password, Name: name, CreatedAt: time.Now().UTC()}
	s.emails[email] = id
}

// SeedDocument はテスト用にドキュメントを直接登録する。
func (s *Server) SeedDocument(databaseID, collectionID, documentID string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(map[string]any, len(data)+2)
	for k, v := range data {
		doc[k] = v
	}
	doc["$id"] = documentID
	doc["$createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	s.collection(databaseID, collectionID)[documentID] = doc
}

// Document はテスト検証用にドキュメントを返す。
func (s *Server) Document(databaseID, collectionID, documentID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(databaseID, collectionID)[documentID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return copied, true
}

// SessionCount は有効なセッション数を返す。
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
