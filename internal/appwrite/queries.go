package appwrite

import "encoding/json"

// query はAppwrite互換のクエリ表現。
type query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// encodeQuery はクエリをJSON文字列にエンコードする。
// 固定構造のマーシャルであり失敗しない。
func encodeQuery(q query) string {
	data, err := json.Marshal(q)
	if err != nil {
		panic("appwrite: query marshal failed: " + err.Error())
	}
	return string(data)
}

// QueryEqual は属性の等価クエリを構築する。
func QueryEqual(attribute string, value any) string {
	return encodeQuery(query{Method: "equal", Attribute: attribute, Values: []any{value}})
}

// QueryNotEqual は属性の不等価クエリを構築する。
func QueryNotEqual(attribute string, value any) string {
	return encodeQuery(query{Method: "notEqual", Attribute: attribute, Values: []any{value}})
}

// QueryOrderDesc は属性の降順ソートクエリを構築する。
func QueryOrderDesc(attribute string) string {
	return encodeQuery(query{Method: "orderDesc", Attribute: attribute})
}
