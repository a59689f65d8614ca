// Package roles はIdentityからアプリケーション上の役割を解決する。
package roles

import (
	"context"
	"log/slog"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// Lister はプロファイルドキュメントの一覧取得のインターフェース。
type Lister interface {
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error)
}

// Resolver は役割解決のサービス。
type Resolver struct {
	backend Lister
	logger  *slog.Logger

	databaseID        string
	usersCollectionID string
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(backend Lister, logger *slog.Logger, databaseID, usersCollectionID string) *Resolver {
	return &Resolver{
		backend:           backend,
		logger:            logger,
		databaseID:        databaseID,
		usersCollectionID: usersCollectionID,
	}
}

// ResolveRole はIdentityの役割を解決する。
// プロファイルが存在しない場合はRoleUserを返す。プロファイル未作成の
// 正常な期間（サインアップ直後など）があるため、不在はエラーではない。
// 役割はダッシュボードの振り分けに使うUX上の区分であり、誤ってRoleUserに
// 倒れても画面が変わるだけで権限は変わらない。
// 通信エラーはそのまま呼び出し側に伝える。
func (r *Resolver) ResolveRole(ctx context.Context, identityID string) (model.Role, error) {
	var profiles []model.Profile
	total, err := r.backend.ListDocuments(ctx, r.databaseID, r.usersCollectionID, []string{
		appwrite.QueryEqual("userId", identityID),
	}, &profiles)
	if err != nil {
		return "", err
	}

	if total == 0 || len(profiles) == 0 {
		return model.RoleUser, nil
	}

	if total > 1 {
		r.logger.Warn("userIdに対して複数のプロファイルが存在します（先頭を使用）",
			slog.String("user_id", identityID),
			slog.Int("count", total),
		)
	}

	role := profiles[0].Role
	if !role.IsValid() {
		r.logger.Warn("未知の役割が保存されています（userとして扱う）",
			slog.String("user_id", identityID),
			slog.String("role", string(role)),
		)
		return model.RoleUser, nil
	}
	return role, nil
}
