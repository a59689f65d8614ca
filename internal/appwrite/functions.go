package appwrite

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Execution はサーバーレス関数の実行レコードを表す。
type Execution struct {
	ID           string `json:"$id"`
	Status       string `json:"status"`
	ResponseBody string `json:"responseBody"`
}

// CreateExecution は指定した関数をJSONペイロード付きで起動する。
// コーチの評価集計の再計算などに使用する。再計算ロジック自体は
// 関数側にあり、このクライアントの責務ではない。
func (c *Client) CreateExecution(ctx context.Context, functionID, payload string) (*Execution, error) {
	body := map[string]string{
		"body": payload,
	}

	path := fmt.Sprintf("/functions/%s/executions", url.PathEscape(functionID))

	var exec Execution
	if err := c.do(ctx, serviceFunctions, http.MethodPost, path, nil, body, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}
