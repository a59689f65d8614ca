package appwrite

import (
	"context"
	"net/http"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// CreateAccount は新しいアカウントを作成する。
// accountIDはクライアント側で生成したユニークIDを渡す。
func (c *Client) CreateAccount(ctx context.Context, accountID, email, password, name string) (*model.Identity, error) {
	body := map[string]string{
		"userId":   accountID,
		"email":    email,
		"password": password,
		"name":     name,
	}

	var identity model.Identity
	if err := c.do(ctx, serviceAccount, http.MethodPost, "/account", nil, body, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// CreateEmailSession はメールアドレスとパスワードでセッションを作成する。
// 資格情報が拒否された場合はAuthenticationErrorを返す。
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var session model.Session
	if err := c.do(ctx, serviceAccount, http.MethodPost, "/account/sessions/email", nil, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteCurrentSession は現在のリモートセッションを無効化する。
// セッションが存在しない場合はエラーを返す（握りつぶすかどうかは呼び出し側が決める）。
func (c *Client) DeleteCurrentSession(ctx context.Context) error {
	return c.do(ctx, serviceAccount, http.MethodDelete, "/account/sessions/current", nil, nil, nil)
}

// GetAccount は認証済みのIdentityを取得する。
// 未ログインやトークン失効の場合はエラーを返す
// （「absent」への読み替えはSession Client側の責務）。
func (c *Client) GetAccount(ctx context.Context) (*model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, serviceAccount, http.MethodGet, "/account", nil, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// jwtResponse はJWT発行エンドポイントのレスポンス。
type jwtResponse struct {
	JWT string `json:"jwt"`
}

// CreateJWT は現在のセッションに紐づくJWTを発行する。
// 発行されたトークンはCredential Storeへの永続化に使用される。
func (c *Client) CreateJWT(ctx context.Context) (string, error) {
	var resp jwtResponse
	if err := c.do(ctx, serviceAccount, http.MethodPost, "/account/jwts", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.JWT == "" {
		return "", model.NewNetworkError("JWTレスポンスが空です")
	}
	return resp.JWT, nil
}
