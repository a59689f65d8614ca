// Package workout はコーチからクライアントへのトレーニングプランの割り当てを提供する。
package workout

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/model"
	"github.com/MORTAKI0/VitaCoach/internal/security"
)

// Backend はプラン層が必要とするバックエンド操作のインターフェース。
type Backend interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
}

// Service はトレーニングプラン操作のサービス。
type Service struct {
	backend   Backend
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger

	databaseID           string
	workoutsCollectionID string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, sanitizer security.ContentSanitizerService, logger *slog.Logger, databaseID, workoutsCollectionID string) *Service {
	return &Service{
		backend:              backend,
		sanitizer:            sanitizer,
		logger:               logger,
		databaseID:           databaseID,
		workoutsCollectionID: workoutsCollectionID,
	}
}

// CreatePlan はコーチがクライアントにプランを割り当てる。
// タイトルとエクササイズ内容は必須、メモは任意。
// 自由記述フィールドはサニタイズしてから保存する。
func (s *Service) CreatePlan(ctx context.Context, coachID, clientID, title, exercises, notes string) (*model.WorkoutPlan, error) {
	if title == "" {
		return nil, model.NewInvalidPlanError("タイトルが空です")
	}
	if exercises == "" {
		return nil, model.NewInvalidPlanError("エクササイズ内容が空です")
	}

	// createdAtはドキュメントの属性として明示的に書き込む。
	// クライアント側の一覧はこの属性の降順で取得される。
	data := map[string]any{
		"coachId":   coachID,
		"clientId":  clientID,
		"title":     s.sanitizer.Sanitize(title),
		"exercises": s.sanitizer.Sanitize(exercises),
		"notes":     s.sanitizer.Sanitize(notes),
		"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
	}

	var plan model.WorkoutPlan
	if err := s.backend.CreateDocument(ctx, s.databaseID, s.workoutsCollectionID, uuid.NewString(), data, &plan); err != nil {
		return nil, err
	}

	s.logger.Info("プランを作成しました",
		slog.String("plan_id", plan.ID),
		slog.String("coach_id", coachID),
		slog.String("client_id", clientID),
	)
	return &plan, nil
}

// ListForClient はクライアント自身のプラン一覧を新しい順で返す。
func (s *Service) ListForClient(ctx context.Context, clientID string) ([]model.WorkoutPlan, error) {
	var plans []model.WorkoutPlan
	if _, err := s.backend.ListDocuments(ctx, s.databaseID, s.workoutsCollectionID, []string{
		appwrite.QueryEqual("clientId", clientID),
		appwrite.QueryOrderDesc("createdAt"),
	}, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
