package appwrite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// documentsPath はドキュメントコレクションのベースパスを構築する。
func documentsPath(databaseID, collectionID string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents",
		url.PathEscape(databaseID), url.PathEscape(collectionID))
}

// CreateDocument はドキュメントを作成する。
// documentIDはクライアント側で生成したユニークIDを渡す。
// outがnilでない場合、作成されたドキュメントをデコードする。
func (c *Client) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
	body := map[string]any{
		"documentId": documentID,
		"data":       data,
	}
	return c.do(ctx, serviceDatabases, http.MethodPost, documentsPath(databaseID, collectionID), nil, body, out)
}

// GetDocument はドキュメントをIDで取得する。
// 存在しない場合はDOCUMENT_NOT_FOUNDを返す。
func (c *Client) GetDocument(ctx context.Context, databaseID, collectionID, documentID string, out any) error {
	path := documentsPath(databaseID, collectionID) + "/" + url.PathEscape(documentID)
	return c.do(ctx, serviceDatabases, http.MethodGet, path, nil, nil, out)
}

// UpdateDocument はドキュメントの属性を部分更新する。
func (c *Client) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data any, out any) error {
	body := map[string]any{
		"data": data,
	}
	path := documentsPath(databaseID, collectionID) + "/" + url.PathEscape(documentID)
	return c.do(ctx, serviceDatabases, http.MethodPatch, path, nil, body, out)
}

// DeleteDocument はドキュメントを削除する。
func (c *Client) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	path := documentsPath(databaseID, collectionID) + "/" + url.PathEscape(documentID)
	return c.do(ctx, serviceDatabases, http.MethodDelete, path, nil, nil, nil)
}

// documentList はドキュメント一覧エンドポイントのレスポンス。
type documentList struct {
	Total     int             `json:"total"`
	Documents json.RawMessage `json:"documents"`
}

// ListDocuments はクエリに一致するドキュメントの一覧を取得する。
// queriesにはQueryEqual等で構築したクエリ文字列を渡す。
// outには対象スライスへのポインタ（例: *[]model.Relationship）を渡す。
// 戻り値は一致件数。
func (c *Client) ListDocuments(ctx context.Context, databaseID, collectionID string, queries []string, out any) (int, error) {
	params := url.Values{}
	for _, q := range queries {
		params.Add("queries[]", q)
	}

	var list documentList
	if err := c.do(ctx, serviceDatabases, http.MethodGet, documentsPath(databaseID, collectionID), params, nil, &list); err != nil {
		return 0, err
	}

	if out != nil && len(list.Documents) > 0 {
		if err := json.Unmarshal(list.Documents, out); err != nil {
			return 0, model.NewNetworkError(fmt.Sprintf("ドキュメント一覧のパースに失敗しました: %v", err))
		}
	}

	return list.Total, nil
}
