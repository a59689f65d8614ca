// Package rating はコーチへの評価の投稿と一覧取得を提供する。
// 評価は追記専用で、契約中（active）のペアのみ投稿できる。
package rating

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/model"
	"github.com/MORTAKI0/VitaCoach/internal/security"
)

// Backend はレーティング層が必要とするバックエンド操作のインターフェース。
type Backend interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
	CreateExecution(ctx context.Context, functionID, payload string) (*appwrite.Execution, error)
}

// Gate は投稿可否の判定インターフェース。Relationship Serviceが実装する。
type Gate interface {
	CanRate(ctx context.Context, userID, coachID string) (bool, error)
}

// Service は評価操作のサービス。
type Service struct {
	backend   Backend
	gate      Gate
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger

	databaseID          string
	ratingsCollectionID string
	ratingFunctionID    string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, gate Gate, sanitizer security.ContentSanitizerService, logger *slog.Logger, databaseID, ratingsCollectionID, ratingFunctionID string) *Service {
	return &Service{
		backend:             backend,
		gate:                gate,
		sanitizer:           sanitizer,
		logger:              logger,
		databaseID:          databaseID,
		ratingsCollectionID: ratingsCollectionID,
		ratingFunctionID:    ratingFunctionID,
	}
}

// Submit は評価を投稿する。
//
// 星は1から5、投稿前にCanRateで契約中であることを必ず検査する。
// コメントはサニタイズしてから保存する。書き込み後、コーチの
// 評価集計を再計算するサーバーレス関数を起動する。再計算の失敗は
// そのまま呼び出し側に伝えるが、保存済みの評価は取り消さない
// （集計は次回の再計算で追いつく）。
func (s *Service) Submit(ctx context.Context, userID, coachID string, stars int, comment string) (*model.Rating, error) {
	if stars < 1 || stars > 5 {
		return nil, model.NewInvalidStarsError(stars)
	}

	allowed, err := s.gate.CanRate(ctx, userID, coachID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, model.NewRatingNotAllowedError()
	}

	// createdAtはドキュメントの属性として明示的に書き込む。
	// 一覧の並び替えはこの属性へのクエリで行われる。
	data := map[string]any{
		"userId":    userID,
		"coachId":   coachID,
		"stars":     stars,
		"comment":   s.sanitizer.Sanitize(comment),
		"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
	}

	var rating model.Rating
	if err := s.backend.CreateDocument(ctx, s.databaseID, s.ratingsCollectionID, uuid.NewString(), data, &rating); err != nil {
		return nil, err
	}

	s.logger.Info("評価を投稿しました",
		slog.String("rating_id", rating.ID),
		slog.String("coach_id", coachID),
		slog.Int("stars", stars),
	)

	if err := s.recompute(ctx, coachID); err != nil {
		return &rating, err
	}
	return &rating, nil
}

// recompute はコーチの評価集計の再計算関数を起動する。
func (s *Service) recompute(ctx context.Context, coachID string) error {
	payload, err := json.Marshal(map[string]string{"coachId": coachID})
	if err != nil {
		return model.NewNetworkError("再計算ペイロードの構築に失敗しました: " + err.Error())
	}

	if _, err := s.backend.CreateExecution(ctx, s.ratingFunctionID, string(payload)); err != nil {
		s.logger.Warn("評価集計の再計算に失敗しました",
			slog.String("coach_id", coachID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// ListForCoach はコーチへの評価一覧を新しい順で返す。
func (s *Service) ListForCoach(ctx context.Context, coachID string) ([]model.Rating, error) {
	var ratings []model.Rating
	if _, err := s.backend.ListDocuments(ctx, s.databaseID, s.ratingsCollectionID, []string{
		appwrite.QueryEqual("coachId", coachID),
		appwrite.QueryOrderDesc("createdAt"),
	}, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}
