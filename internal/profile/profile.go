// Package profile はプロファイルドキュメントの取得・編集と完成度判定を提供する。
package profile

import (
	"context"
	"log/slog"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/model"
	"github.com/MORTAKI0/VitaCoach/internal/security"
)

// IsComplete はプロファイルがセットアップ完了条件を満たすかを返す。
// 未完成のプロファイルはセットアップ画面へ誘導される。
// 役割ごとの条件:
//   - 共通: 名前とアバターが非空
//   - コーチ: 資格が非空かつ時間単価が正
//   - 一般ユーザー: 目標が非空
//
// 未知の役割は常に未完成として扱う。
func IsComplete(p model.Profile) bool {
	if p.Name == "" || p.Avatar == "" {
		return false
	}

	switch p.Role {
	case model.RoleCoach:
		return p.Certifications != "" && p.HourlyPrice > 0
	case model.RoleUser:
		return p.Goals != ""
	default:
		return false
	}
}

// Backend はプロファイル層が必要とするバックエンド操作のインターフェース。
type Backend interface {
	GetDocument(ctx context.Context, databaseID, collectionID, documentID string, out any) error
	UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
}

// Update はプロファイルセットアップ画面からの編集内容。
// 役割自体はサインアップ時に固定されるため含まれない。
type Update struct {
	Name           string
	Avatar         string
	Bio            string
	Goals          string
	Certifications string
	HourlyPrice    float64
}

// Service はプロファイル操作のサービス。
type Service struct {
	backend   Backend
	sanitizer security.ContentSanitizerService
	avatars   security.AvatarGuardService
	logger    *slog.Logger

	databaseID        string
	usersCollectionID string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, sanitizer security.ContentSanitizerService, avatars security.AvatarGuardService, logger *slog.Logger, databaseID, usersCollectionID string) *Service {
	return &Service{
		backend:           backend,
		sanitizer:         sanitizer,
		avatars:           avatars,
		logger:            logger,
		databaseID:        databaseID,
		usersCollectionID: usersCollectionID,
	}
}

// Get はIdentityのプロファイルを取得する。
// ドキュメントIDはアカウントIDと一致するため直接取得できる。
func (s *Service) Get(ctx context.Context, identityID string) (*model.Profile, error) {
	var p model.Profile
	if err := s.backend.GetDocument(ctx, s.databaseID, s.usersCollectionID, identityID, &p); err != nil {
		if model.IsCode(err, model.ErrCodeDocumentNotFound) {
			return nil, model.NewProfileNotFoundError(identityID)
		}
		return nil, err
	}
	return &p, nil
}

// Save はプロファイルの編集内容を保存する。
// 自由記述フィールドはサニタイズされ、アバターURLは事前検証される。
func (s *Service) Save(ctx context.Context, identityID string, upd Update) (*model.Profile, error) {
	if upd.Name == "" {
		return nil, model.NewInvalidProfileError("名前を入力してください")
	}
	if upd.Avatar != "" {
		if err := s.avatars.ValidateURL(upd.Avatar); err != nil {
			return nil, model.NewInvalidProfileError("アバターURLが不正です: " + err.Error())
		}
	}

	data := map[string]any{
		"name":           s.sanitizer.Sanitize(upd.Name),
		"avatar":         upd.Avatar,
		"bio":            s.sanitizer.Sanitize(upd.Bio),
		"goals":          s.sanitizer.Sanitize(upd.Goals),
		"certifications": s.sanitizer.Sanitize(upd.Certifications),
		"hourlyPrice":    upd.HourlyPrice,
	}

	var p model.Profile
	if err := s.backend.UpdateDocument(ctx, s.databaseID, s.usersCollectionID, identityID, data, &p); err != nil {
		if model.IsCode(err, model.ErrCodeDocumentNotFound) {
			return nil, model.NewProfileNotFoundError(identityID)
		}
		return nil, err
	}

	s.logger.Info("プロファイルを保存しました",
		slog.String("user_id", identityID),
	)
	return &p, nil
}

// ListCoaches は全コーチのプロファイル一覧を返す。
func (s *Service) ListCoaches(ctx context.Context) ([]model.Profile, error) {
	var coaches []model.Profile
	if _, err := s.backend.ListDocuments(ctx, s.databaseID, s.usersCollectionID, []string{
		appwrite.QueryEqual("role", string(model.RoleCoach)),
	}, &coaches); err != nil {
		return nil, err
	}
	return coaches, nil
}

// GetCoach はuserIdでコーチのプロファイルを1件取得する。
// 該当なしの場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) GetCoach(ctx context.Context, coachID string) (*model.Profile, error) {
	var coaches []model.Profile
	total, err := s.backend.ListDocuments(ctx, s.databaseID, s.usersCollectionID, []string{
		appwrite.QueryEqual("userId", coachID),
		appwrite.QueryEqual("role", string(model.RoleCoach)),
	}, &coaches)
	if err != nil {
		return nil, err
	}
	if total == 0 || len(coaches) == 0 {
		return nil, model.NewProfileNotFoundError(coachID)
	}
	return &coaches[0], nil
}
