package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Appwrite接続情報
	Endpoint  string
	ProjectID string

	// ドキュメントデータベース
	DatabaseID                string
	UsersCollectionID         string
	RatingsCollectionID       string
	RelationshipsCollectionID string
	WorkoutsCollectionID      string

	// サーバーレス関数（評価集計の再計算）
	RatingFunctionID string

	// HTTPクライアント
	// トランスポート以外のタイムアウトポリシーは仕様上存在しないため、
	// これが唯一の上限となる。
	RequestTimeout time.Duration

	// 資格情報ストア
	// 空の場合はユーザー設定ディレクトリ配下のデフォルトパスを使用する。
	CredentialFile string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（開発用）。
// 必須環境変数が未設定の場合はConfigurationErrorを返す。
// 未定義のIDのまま初期化を続行してはならない。
func Load() (*Config, error) {
	// .envは存在しなくてもよい
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	required := []struct {
		key  string
		dest *string
	}{
		{"APPWRITE_ENDPOINT", &cfg.Endpoint},
		{"APPWRITE_PROJECT_ID", &cfg.ProjectID},
		{"APPWRITE_DATABASE_ID", &cfg.DatabaseID},
		{"APPWRITE_USERS_COLLECTION_ID", &cfg.UsersCollectionID},
		{"APPWRITE_RATINGS_COLLECTION_ID", &cfg.RatingsCollectionID},
		{"APPWRITE_RELATIONSHIPS_COLLECTION_ID", &cfg.RelationshipsCollectionID},
		{"APPWRITE_WORKOUTS_COLLECTION_ID", &cfg.WorkoutsCollectionID},
		{"APPWRITE_RATING_FUNCTION_ID", &cfg.RatingFunctionID},
	}

	for _, r := range required {
		*r.dest = os.Getenv(r.key)
		if *r.dest == "" {
			missing = append(missing, r.key)
		}
	}

	if len(missing) > 0 {
		return nil, model.NewConfigurationError(missing)
	}

	// Optional fields with defaults
	cfg.RequestTimeout = getEnvDuration("VITACOACH_REQUEST_TIMEOUT", 15*time.Second)
	cfg.CredentialFile = getEnvString("VITACOACH_CREDENTIAL_FILE", "")
	cfg.LogLevel = getEnvString("VITACOACH_LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
