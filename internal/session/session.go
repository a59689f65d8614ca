// Package session はログイン・ログアウト・セッション復元を担うセッション層を提供する。
// リモートのセッション状態とローカルのトークン永続化を一貫した手順で橋渡しする。
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MORTAKI0/VitaCoach/internal/credstore"
	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// Backend はセッション層が必要とするバックエンド操作のインターフェース。
type Backend interface {
	CreateAccount(ctx context.Context, accountID, email, password, name string) (*model.Identity, error)
	CreateEmailSession(ctx context.Context, email, password string) (*model.Session, error)
	DeleteCurrentSession(ctx context.Context) error
	GetAccount(ctx context.Context) (*model.Identity, error)
	CreateJWT(ctx context.Context) (string, error)
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error
	SetToken(token string)
	ClearToken()
	Token() string
}

// Service はセッション操作のサービス。
type Service struct {
	backend Backend
	store   credstore.Store
	logger  *slog.Logger

	databaseID        string
	usersCollectionID string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, store credstore.Store, logger *slog.Logger, databaseID, usersCollectionID string) *Service {
	return &Service{
		backend:           backend,
		store:             store,
		logger:            logger,
		databaseID:        databaseID,
		usersCollectionID: usersCollectionID,
	}
}

// Login はメールアドレスとパスワードでログインし、認証済みのIdentityを返す。
//
// 古いセッションが残っているとセッション作成が拒否されるため、
// 先に現在のセッションの破棄を試みる。破棄の失敗（未ログイン等）は無視する。
// 発行されたトークンはローカルに永続化されてからクライアントに設定される。
// 永続化前のトークンに依存する処理は存在しない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	if err := s.backend.DeleteCurrentSession(ctx); err != nil {
		s.logger.Debug("既存セッションの破棄に失敗しました（未ログインの可能性）",
			slog.String("error", err.Error()),
		)
	}
	s.backend.ClearToken()

	session, err := s.backend.CreateEmailSession(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// セッションシークレットで一時的に認証し、永続化可能なJWTへ交換する
	s.backend.SetToken(session.Secret)
	token, err := s.backend.CreateJWT(ctx)
	if err != nil {
		s.backend.ClearToken()
		return nil, err
	}

	if err := s.store.Save(token); err != nil {
		s.backend.ClearToken()
		return nil, err
	}
	s.backend.SetToken(token)

	identity, err := s.backend.GetAccount(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ログインしました",
		slog.String("user_id", identity.ID),
	)
	return identity, nil
}

// SignUp はアカウントを作成し、ログインし、プロファイルドキュメントを作成する。
// プロファイルのドキュメントIDはアカウントIDと一致させ、userId属性にも同じ値を書く。
func (s *Service) SignUp(ctx context.Context, email, password, name string, role model.Role) (*model.Identity, error) {
	if !role.IsValid() {
		return nil, model.NewInvalidProfileError("役割はuserまたはcoachを指定してください")
	}

	accountID := uuid.NewString()
	if _, err := s.backend.CreateAccount(ctx, accountID, email, password, name); err != nil {
		return nil, err
	}

	identity, err := s.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	profile := map[string]any{
		"userId": identity.ID,
		"role":   role,
		"name":   name,
	}
	if err := s.backend.CreateDocument(ctx, s.databaseID, s.usersCollectionID, identity.ID, profile, nil); err != nil {
		return nil, err
	}

	s.logger.Info("サインアップしました",
		slog.String("user_id", identity.ID),
		slog.String("role", string(role)),
	)
	return identity, nil
}

// Logout は現在のセッションを破棄する。
// リモートの破棄が失敗してもローカルのトークンは必ず破棄される。
// セッションが既に存在しない場合はログアウト済みとみなして成功を返す。
// 戻り値のエラーは通信障害などリモート破棄の実際の失敗のみを伝える。
func (s *Service) Logout(ctx context.Context) error {
	defer func() {
		s.backend.ClearToken()
		if err := s.store.Clear(); err != nil {
			s.logger.Warn("ローカルトークンの破棄に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := s.backend.DeleteCurrentSession(ctx); err != nil {
		if model.IsCode(err, model.ErrCodeAuthenticationFailed) {
			s.logger.Debug("リモートセッションは既に存在しません",
				slog.String("error", err.Error()),
			)
			return nil
		}
		s.logger.Warn("リモートセッションの破棄に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// CurrentIdentity は認証済みのIdentityを返す。
// 未ログイン・トークン失効・通信失敗など、理由を問わず取得できない場合は
// (nil, nil) を返す。「ログイン済みか分からない」状態を作らないための読み替えで、
// 失敗の詳細はログにのみ残す。
func (s *Service) CurrentIdentity(ctx context.Context) (*model.Identity, error) {
	if s.backend.Token() == "" {
		return nil, nil
	}

	identity, err := s.backend.GetAccount(ctx)
	if err != nil {
		s.logger.Debug("Identityを取得できませんでした（未ログイン扱い）",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return identity, nil
}

// Restore は永続化済みのトークンからセッションを復元する。
// トークンが存在しない、または有効期限切れの場合は (nil, nil) を返す。
// 期限切れトークンはストアからも破棄する。
func (s *Service) Restore(ctx context.Context) (*model.Identity, error) {
	token, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	if expired(token) {
		s.logger.Info("保存済みトークンの有効期限が切れています")
		if err := s.store.Clear(); err != nil {
			s.logger.Warn("期限切れトークンの破棄に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	}

	s.backend.SetToken(token)

	identity, err := s.backend.GetAccount(ctx)
	if err != nil {
		s.logger.Debug("復元したトークンが拒否されました",
			slog.String("error", err.Error()),
		)
		s.backend.ClearToken()
		return nil, nil
	}

	s.logger.Info("セッションを復元しました",
		slog.String("user_id", identity.ID),
	)
	return identity, nil
}

// expired はトークンの有効期限が切れているかを返す。
// 署名検証はバックエンドの責務であり、ここでは期限のみを覗き見る。
// パースできないトークンは期限切れとして扱う。
func expired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(time.Now())
}
