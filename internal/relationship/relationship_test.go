package relationship

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// mockBackend はBackendインターフェースのテスト用実装。
type mockBackend struct {
	createDocumentFunc func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	getDocumentFunc    func(ctx context.Context, databaseID, collectionID, documentID string, out any) error
	updateDocumentFunc func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	deleteDocumentFunc func(ctx context.Context, databaseID, collectionID, documentID string) error
	listDocumentsFunc  func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
}

func (m *mockBackend) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
	return m.createDocumentFunc(ctx, databaseID, collectionID, documentID, data, out)
}

func (m *mockBackend) GetDocument(ctx context.Context, databaseID, collectionID, documentID string, out any) error {
	return m.getDocumentFunc(ctx, databaseID, collectionID, documentID, out)
}

func (m *mockBackend) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
	return m.updateDocumentFunc(ctx, databaseID, collectionID, documentID, data, out)
}

func (m *mockBackend) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	return m.deleteDocumentFunc(ctx, databaseID, collectionID, documentID)
}

func (m *mockBackend) ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
	return m.listDocumentsFunc(ctx, databaseID, collectionID, queries, out)
}

// mockRecorder は遷移とロールバックの記録を検証するRecorder実装。
type mockRecorder struct {
	transitions []string
	rollbacks   int
}

func (m *mockRecorder) RecordRemoteRequest(service string, statusCode int) {}
func (m *mockRecorder) RecordRemoteFailure(service, reason string)         {}
func (m *mockRecorder) RecordRemoteLatency(d time.Duration)                {}
func (m *mockRecorder) RecordTransition(to string)                         { m.transitions = append(m.transitions, to) }
func (m *mockRecorder) RecordRollback()                                    { m.rollbacks++ }

func fill(t *testing.T, out any, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("マーシャルに失敗した: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("アンマーシャルに失敗した: %v", err)
	}
}

func newTestService(backend Backend, rec *mockRecorder) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	if rec == nil {
		return NewService(backend, logger, nil, "db", "relationships")
	}
	return NewService(backend, logger, rec, "db", "relationships")
}

func TestRequestCoach_Success(t *testing.T) {
	var createdData map[string]any
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			// 事前検査: userIdの等価 + status != ended
			if len(queries) != 2 {
				t.Errorf("事前検査のクエリ数 = %d, want 2", len(queries))
			}
			if !strings.Contains(queries[1], `"notEqual"`) || !strings.Contains(queries[1], `"ended"`) {
				t.Errorf("status != ended のクエリであるべき: %s", queries[1])
			}
			return 0, nil
		},
		createDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			if documentID == "" {
				t.Error("クライアント側で生成したドキュメントIDを渡すべき")
			}
			createdData = data.(map[string]any)
			fill(t, out, model.Relationship{
				ID: documentID, UserID: "user-1", CoachID: "coach-1", Status: model.StatusRequested,
			})
			return nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	rel, err := svc.RequestCoach(context.Background(), "user-1", "coach-1")
	if err != nil {
		t.Fatalf("RequestCoach がエラーを返した: %v", err)
	}
	if rel.Status != model.StatusRequested {
		t.Errorf("状態 = %s, want requested", rel.Status)
	}
	if createdData["status"] != model.StatusRequested {
		t.Errorf("保存される状態 = %v, want requested", createdData["status"])
	}
	if len(rec.transitions) != 1 || rec.transitions[0] != "requested" {
		t.Errorf("requested への遷移が記録されるべき: %v", rec.transitions)
	}
}

func TestRequestCoach_DuplicateConflict(t *testing.T) {
	created := false
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			return 1, nil
		},
		createDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			created = true
			return nil
		},
	}
	svc := newTestService(backend, nil)

	_, err := svc.RequestCoach(context.Background(), "user-1", "coach-2")
	if err == nil {
		t.Fatal("既存の非endedレコードがある場合エラーが返されるべき")
	}
	if !model.IsCode(err, model.ErrCodeDuplicateRelationship) {
		t.Errorf("DUPLICATE_RELATIONSHIP であるべき: got %v", err)
	}
	if created {
		t.Error("競合時に書き込みが行われるべきではない")
	}
}

func TestRequestCoach_SucceedsAfterEnded(t *testing.T) {
	// 保存済みレコードの状態を持つモック。
	// 事前検査は status != ended のレコード数を返す。
	records := map[string]model.Relationship{
		"rel-1": {ID: "rel-1", UserID: "user-1", CoachID: "coach-1", Status: model.StatusActive},
	}
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			total := 0
			for _, rel := range records {
				if rel.UserID == "user-1" && rel.Status != model.StatusEnded {
					total++
				}
			}
			return total, nil
		},
		updateDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			rel := records[documentID]
			rel.Status = data.(map[string]any)["status"].(model.RelationshipStatus)
			records[documentID] = rel
			return nil
		},
		createDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			records[documentID] = model.Relationship{
				ID:      documentID,
				UserID:  data.(map[string]any)["userId"].(string),
				CoachID: data.(map[string]any)["coachId"].(string),
				Status:  model.StatusRequested,
			}
			fill(t, out, records[documentID])
			return nil
		},
	}
	svc := newTestService(backend, nil)

	// 契約中は新しいリクエストが拒否される
	if _, err := svc.RequestCoach(context.Background(), "user-1", "coach-2"); !model.IsCode(err, model.ErrCodeDuplicateRelationship) {
		t.Fatalf("契約中はDUPLICATE_RELATIONSHIPであるべき: got %v", err)
	}

	// 契約を終了すると別のコーチへリクエストを送れる
	view := NewView()
	view.Set(records["rel-1"])
	if err := svc.EndRelationship(context.Background(), view, "rel-1"); err != nil {
		t.Fatalf("EndRelationship がエラーを返した: %v", err)
	}

	rel, err := svc.RequestCoach(context.Background(), "user-1", "coach-2")
	if err != nil {
		t.Fatalf("終了後のRequestCoachは成功すべき: %v", err)
	}
	if rel.CoachID != "coach-2" || rel.Status != model.StatusRequested {
		t.Errorf("新しいリクエスト = %+v, want coach-2 / requested", rel)
	}
}

func TestRequestCoach_PrecheckFailurePropagates(t *testing.T) {
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			return 0, model.NewNetworkError("timeout")
		},
	}
	svc := newTestService(backend, nil)

	_, err := svc.RequestCoach(context.Background(), "user-1", "coach-1")
	if !model.IsCode(err, model.ErrCodeNetworkError) {
		t.Errorf("NETWORK_ERROR であるべき: got %v", err)
	}
}

func TestAcceptRequest_Success(t *testing.T) {
	backend := &mockBackend{
		updateDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			status := data.(map[string]any)["status"]
			if status != model.StatusActive {
				t.Errorf("リモートへ書く状態 = %v, want active", status)
			}
			return nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	view := NewView()
	view.Set(model.Relationship{ID: "rel-1", UserID: "user-1", CoachID: "coach-1", Status: model.StatusRequested})

	if err := svc.AcceptRequest(context.Background(), view, "rel-1"); err != nil {
		t.Fatalf("AcceptRequest がエラーを返した: %v", err)
	}

	rel, ok := view.Get("rel-1")
	if !ok || rel.Status != model.StatusActive {
		t.Errorf("Viewの状態 = %+v, want active", rel)
	}
	if len(rec.transitions) != 1 || rec.transitions[0] != "active" {
		t.Errorf("active への遷移が記録されるべき: %v", rec.transitions)
	}
	if rec.rollbacks != 0 {
		t.Errorf("成功時にロールバックが記録されるべきではない")
	}
}

func TestAcceptRequest_RemoteFailureRollsBack(t *testing.T) {
	backend := &mockBackend{
		updateDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			return model.NewNetworkError("timeout")
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	prior := model.Relationship{ID: "rel-1", UserID: "user-1", CoachID: "coach-1", Status: model.StatusRequested}
	view := NewView()
	view.Set(prior)

	err := svc.AcceptRequest(context.Background(), view, "rel-1")
	if err == nil {
		t.Fatal("リモート失敗時にエラーが返されるべき")
	}

	// 更新前の値が正確に復元されること
	rel, ok := view.Get("rel-1")
	if !ok {
		t.Fatal("ロールバック後もViewにRelationshipが存在すべき")
	}
	if rel != prior {
		t.Errorf("ロールバック後の値 = %+v, want %+v", rel, prior)
	}
	if rec.rollbacks != 1 {
		t.Errorf("ロールバック回数 = %d, want 1", rec.rollbacks)
	}
	if len(rec.transitions) != 0 {
		t.Errorf("失敗時に遷移が記録されるべきではない: %v", rec.transitions)
	}
}

func TestAcceptRequest_VanishedRelationship(t *testing.T) {
	backend := &mockBackend{
		updateDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			// 他のアクターが先に処理済み
			return model.NewDocumentNotFoundError(documentID)
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	prior := model.Relationship{ID: "rel-1", Status: model.StatusRequested}
	view := NewView()
	view.Set(prior)

	err := svc.AcceptRequest(context.Background(), view, "rel-1")
	if !model.IsCode(err, model.ErrCodeRelationshipNotFound) {
		t.Errorf("RELATIONSHIP_NOT_FOUND に読み替えるべき: got %v", err)
	}

	rel, ok := view.Get("rel-1")
	if !ok || rel != prior {
		t.Errorf("ロールバック後の値 = %+v, want %+v", rel, prior)
	}
}

func TestAcceptRequest_UnknownID(t *testing.T) {
	svc := newTestService(&mockBackend{}, nil)
	view := NewView()

	err := svc.AcceptRequest(context.Background(), view, "unknown")
	if !model.IsCode(err, model.ErrCodeRelationshipNotFound) {
		t.Errorf("RELATIONSHIP_NOT_FOUND であるべき: got %v", err)
	}
}

func TestDeclineRequest_DeletesDocument(t *testing.T) {
	deleted := false
	backend := &mockBackend{
		deleteDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string) error {
			deleted = true
			if documentID != "rel-1" {
				t.Errorf("削除対象 = %s, want rel-1", documentID)
			}
			return nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	view := NewView()
	view.Set(model.Relationship{ID: "rel-1", Status: model.StatusRequested})

	if err := svc.DeclineRequest(context.Background(), view, "rel-1"); err != nil {
		t.Fatalf("DeclineRequest がエラーを返した: %v", err)
	}
	if !deleted {
		t.Error("辞退はドキュメントを削除すべき")
	}
	if _, ok := view.Get("rel-1"); ok {
		t.Error("辞退後はViewから取り除かれるべき")
	}
	// 辞退はendedと同義
	if len(rec.transitions) != 1 || rec.transitions[0] != "ended" {
		t.Errorf("ended への遷移が記録されるべき: %v", rec.transitions)
	}
}

func TestDeclineRequest_RemoteFailureRestoresEntry(t *testing.T) {
	backend := &mockBackend{
		deleteDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string) error {
			return model.NewNetworkError("timeout")
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(backend, rec)

	prior := model.Relationship{ID: "rel-1", Status: model.StatusRequested}
	view := NewView()
	view.Set(prior)

	err := svc.DeclineRequest(context.Background(), view, "rel-1")
	if err == nil {
		t.Fatal("リモート失敗時にエラーが返されるべき")
	}

	rel, ok := view.Get("rel-1")
	if !ok || rel != prior {
		t.Errorf("削除の楽観的更新も復元されるべき: got %+v", rel)
	}
	if rec.rollbacks != 1 {
		t.Errorf("ロールバック回数 = %d, want 1", rec.rollbacks)
	}
}

func TestEndRelationship_Success(t *testing.T) {
	backend := &mockBackend{
		updateDocumentFunc: func(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
			status := data.(map[string]any)["status"]
			if status != model.StatusEnded {
				t.Errorf("リモートへ書く状態 = %v, want ended", status)
			}
			return nil
		},
	}
	svc := newTestService(backend, nil)

	view := NewView()
	view.Set(model.Relationship{ID: "rel-1", Status: model.StatusActive})

	if err := svc.EndRelationship(context.Background(), view, "rel-1"); err != nil {
		t.Fatalf("EndRelationship がエラーを返した: %v", err)
	}
	rel, _ := view.Get("rel-1")
	if rel.Status != model.StatusEnded {
		t.Errorf("Viewの状態 = %s, want ended", rel.Status)
	}
}

func TestCanRate_ActivePair(t *testing.T) {
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			if len(queries) != 3 {
				t.Errorf("クエリ数 = %d, want 3", len(queries))
			}
			return 1, nil
		},
	}
	svc := newTestService(backend, nil)

	ok, err := svc.CanRate(context.Background(), "user-1", "coach-1")
	if err != nil {
		t.Fatalf("CanRate がエラーを返した: %v", err)
	}
	if !ok {
		t.Error("activeなペアは評価可能であるべき")
	}
}

func TestCanRate_NoActivePair(t *testing.T) {
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			return 0, nil
		},
	}
	svc := newTestService(backend, nil)

	ok, err := svc.CanRate(context.Background(), "user-1", "coach-1")
	if err != nil {
		t.Fatalf("CanRate がエラーを返した: %v", err)
	}
	if ok {
		t.Error("activeなペアがなければ評価不可であるべき")
	}
}

func TestCurrentRelationship_None(t *testing.T) {
	backend := &mockBackend{
		listDocumentsFunc: func(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
			return 0, nil
		},
	}
	svc := newTestService(backend, nil)

	rel, err := svc.CurrentRelationship(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CurrentRelationship がエラーを返した: %v", err)
	}
	if rel != nil {
		t.Errorf("ペアリングなしの場合はnilであるべき: got %+v", rel)
	}
}

func TestView_ReplaceAndList(t *testing.T) {
	view := NewView()
	view.Replace([]model.Relationship{
		{ID: "rel-1", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "rel-2", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	})

	rels := view.List()
	if len(rels) != 2 {
		t.Fatalf("件数 = %d, want 2", len(rels))
	}
	// 新しい順
	if rels[0].ID != "rel-2" {
		t.Errorf("先頭 = %s, want rel-2", rels[0].ID)
	}
}
