// Package relationship はユーザーとコーチのペアリングの状態遷移を管理する。
//
// 状態は requested → active → ended の一方向に進む。辞退はドキュメントの
// 削除で表現され、endedと同義に扱う。承諾・辞退・終了は楽観的更新で行われ、
// リモート書き込みの失敗時にはViewの更新前の値が正確に復元される。
package relationship

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/metrics"
	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// Backend はペアリング層が必要とするバックエンド操作のインターフェース。
type Backend interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	GetDocument(ctx context.Context, databaseID, collectionID, documentID string, out any) error
	UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
}

// Service はペアリング操作のサービス。
type Service struct {
	backend Backend
	logger  *slog.Logger
	metrics metrics.Recorder

	databaseID   string
	collectionID string
}

// NewService はServiceの新しいインスタンスを生成する。
// recはnilでもよい（記録をスキップする）。
func NewService(backend Backend, logger *slog.Logger, rec metrics.Recorder, databaseID, collectionID string) *Service {
	return &Service{
		backend:      backend,
		logger:       logger,
		metrics:      rec,
		databaseID:   databaseID,
		collectionID: collectionID,
	}
}

// RequestCoach はユーザーからコーチへの雇用リクエストを作成する。
//
// 不変条件: 同一ユーザーに対して status != ended のRelationshipは高々1件。
// 作成前に既存レコードを検査し、該当があればDUPLICATE_RELATIONSHIPを返す
// （書き込みは行われない）。検査と作成の間に他プロセスが割り込む余地は
// 残っているが、操作主体が本人のみであるため実害の窓は狭い。
func (s *Service) RequestCoach(ctx context.Context, userID, coachID string) (*model.Relationship, error) {
	total, err := s.backend.ListDocuments(ctx, s.databaseID, s.collectionID, []string{
		appwrite.QueryEqual("userId", userID),
		appwrite.QueryNotEqual("status", string(model.StatusEnded)),
	}, nil)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, model.NewDuplicateRelationshipError()
	}

	data := map[string]any{
		"userId":  userID,
		"coachId": coachID,
		"status":  model.StatusRequested,
	}

	var rel model.Relationship
	if err := s.backend.CreateDocument(ctx, s.databaseID, s.collectionID, uuid.NewString(), data, &rel); err != nil {
		return nil, err
	}

	s.recordTransition(model.StatusRequested)
	s.logger.Info("雇用リクエストを作成しました",
		slog.String("relationship_id", rel.ID),
		slog.String("user_id", userID),
		slog.String("coach_id", coachID),
	)
	return &rel, nil
}

// AcceptRequest はコーチがリクエストを承諾する。requested → active。
// Viewは先に更新され、リモート書き込みの失敗時に更新前の値へ復元される。
func (s *Service) AcceptRequest(ctx context.Context, view *View, relationshipID string) error {
	return s.optimistic(view, relationshipID,
		func(rel model.Relationship) (model.Relationship, bool) {
			rel.Status = model.StatusActive
			return rel, true
		},
		func() error {
			err := s.backend.UpdateDocument(ctx, s.databaseID, s.collectionID, relationshipID,
				map[string]any{"status": model.StatusActive}, nil)
			return s.translateNotFound(err, relationshipID)
		},
		model.StatusActive,
	)
}

// DeclineRequest はコーチがリクエストを辞退する。ドキュメントは削除される。
func (s *Service) DeclineRequest(ctx context.Context, view *View, relationshipID string) error {
	return s.optimistic(view, relationshipID,
		func(rel model.Relationship) (model.Relationship, bool) {
			return model.Relationship{}, false
		},
		func() error {
			err := s.backend.DeleteDocument(ctx, s.databaseID, s.collectionID, relationshipID)
			return s.translateNotFound(err, relationshipID)
		},
		model.StatusEnded,
	)
}

// EndRelationship は契約を終了する。active → ended。どちらの側からでも呼べる。
func (s *Service) EndRelationship(ctx context.Context, view *View, relationshipID string) error {
	return s.optimistic(view, relationshipID,
		func(rel model.Relationship) (model.Relationship, bool) {
			rel.Status = model.StatusEnded
			return rel, true
		},
		func() error {
			err := s.backend.UpdateDocument(ctx, s.databaseID, s.collectionID, relationshipID,
				map[string]any{"status": model.StatusEnded}, nil)
			return s.translateNotFound(err, relationshipID)
		},
		model.StatusEnded,
	)
}

// optimistic は楽観的更新を1回実行する可逆コマンドの共通処理。
// Viewの更新前の値を退避してからmutateを適用し、commitの失敗時には
// 退避した値をそのまま復元する（不在だった場合は不在に戻す）。
// 各画面が個別に復元処理を持つことはない。
func (s *Service) optimistic(view *View, relationshipID string, mutate func(model.Relationship) (model.Relationship, bool), commit func() error, to model.RelationshipStatus) error {
	prior, existed := view.Get(relationshipID)
	if !existed {
		return model.NewRelationshipNotFoundError(relationshipID)
	}

	next, keep := mutate(prior)
	if keep {
		view.Set(next)
	} else {
		view.Remove(relationshipID)
	}

	if err := commit(); err != nil {
		view.Set(prior)
		s.recordRollback()
		s.logger.Warn("楽観的更新をロールバックしました",
			slog.String("relationship_id", relationshipID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.recordTransition(to)
	return nil
}

// translateNotFound はリモートの不在エラーをペアリング層のエラーに読み替える。
// 多くの場合、別のアクターが先に同じレコードを処理したことを意味する。
func (s *Service) translateNotFound(err error, relationshipID string) error {
	if model.IsCode(err, model.ErrCodeDocumentNotFound) {
		return model.NewRelationshipNotFoundError(relationshipID)
	}
	return err
}

// CanRate はユーザーがコーチを評価できるかを返す。
// activeなRelationshipが存在するペアのみ評価可能。
func (s *Service) CanRate(ctx context.Context, userID, coachID string) (bool, error) {
	total, err := s.backend.ListDocuments(ctx, s.databaseID, s.collectionID, []string{
		appwrite.QueryEqual("userId", userID),
		appwrite.QueryEqual("coachId", coachID),
		appwrite.QueryEqual("status", string(model.StatusActive)),
	}, nil)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// ListRequests はコーチ宛の未処理リクエスト一覧を返す。
func (s *Service) ListRequests(ctx context.Context, coachID string) ([]model.Relationship, error) {
	var rels []model.Relationship
	if _, err := s.backend.ListDocuments(ctx, s.databaseID, s.collectionID, []string{
		appwrite.QueryEqual("coachId", coachID),
		appwrite.QueryEqual("status", string(model.StatusRequested)),
	}, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

// ListClients はコーチの契約中クライアント一覧を返す。
func (s *Service) ListClients(ctx context.Context, coachID string) ([]model.Relationship, error) {
	var rels []model.Relationship
	if _, err := s.backend.ListDocuments(ctx, s.databaseID, s.collectionID, []string{
		appwrite.QueryEqual("coachId", coachID),
		appwrite.QueryEqual("status", string(model.StatusActive)),
	}, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

// CurrentRelationship はユーザーの現在のペアリング（requestedまたはactive）を返す。
// 存在しない場合は (nil, nil)。
func (s *Service) CurrentRelationship(ctx context.Context, userID string) (*model.Relationship, error) {
	var rels []model.Relationship
	total, err := s.backend.ListDocuments(ctx, s.databaseID, s.collectionID, []string{
		appwrite.QueryEqual("userId", userID),
		appwrite.QueryNotEqual("status", string(model.StatusEnded)),
	}, &rels)
	if err != nil {
		return nil, err
	}
	if total == 0 || len(rels) == 0 {
		return nil, nil
	}
	return &rels[0], nil
}

func (s *Service) recordTransition(to model.RelationshipStatus) {
	if s.metrics != nil {
		s.metrics.RecordTransition(string(to))
	}
}

func (s *Service) recordRollback() {
	if s.metrics != nil {
		s.metrics.RecordRollback()
	}
}
