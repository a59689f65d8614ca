// Package app はアプリケーションの初期化と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MORTAKI0/VitaCoach/internal/appwrite"
	"github.com/MORTAKI0/VitaCoach/internal/config"
	"github.com/MORTAKI0/VitaCoach/internal/credstore"
	"github.com/MORTAKI0/VitaCoach/internal/logger"
	"github.com/MORTAKI0/VitaCoach/internal/metrics"
	"github.com/MORTAKI0/VitaCoach/internal/profile"
	"github.com/MORTAKI0/VitaCoach/internal/rating"
	"github.com/MORTAKI0/VitaCoach/internal/relationship"
	"github.com/MORTAKI0/VitaCoach/internal/roles"
	"github.com/MORTAKI0/VitaCoach/internal/security"
	"github.com/MORTAKI0/VitaCoach/internal/session"
	"github.com/MORTAKI0/VitaCoach/internal/workout"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にもログを使えるようにしておく
	logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// App は全サービスを束ねた依存関係グラフ。
// Clientはここで1回だけ構築され、各サービスに注入される。
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *appwrite.Client
	Registry *prometheus.Registry

	Sessions      *session.Service
	Roles         *roles.Resolver
	Profiles      *profile.Service
	Relationships *relationship.Service
	Ratings       *rating.Service
	Workouts      *workout.Service
}

// New は依存関係グラフを構築する。
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := credstore.NewFileStore(cfg.CredentialFile)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	client := appwrite.NewClient(httpClient, log, collector, cfg.Endpoint, cfg.ProjectID)

	sanitizer := security.NewContentSanitizer()
	avatars := security.NewAvatarGuard(cfg.RequestTimeout)

	relationships := relationship.NewService(client, log, collector, cfg.DatabaseID, cfg.RelationshipsCollectionID)

	return &App{
		Config:   cfg,
		Logger:   log,
		Client:   client,
		Registry: registry,

		Sessions:      session.NewService(client, store, log, cfg.DatabaseID, cfg.UsersCollectionID),
		Roles:         roles.NewResolver(client, log, cfg.DatabaseID, cfg.UsersCollectionID),
		Profiles:      profile.NewService(client, sanitizer, avatars, log, cfg.DatabaseID, cfg.UsersCollectionID),
		Relationships: relationships,
		Ratings:       rating.NewService(client, relationships, sanitizer, log, cfg.DatabaseID, cfg.RatingsCollectionID, cfg.RatingFunctionID),
		Workouts:      workout.NewService(client, sanitizer, log, cfg.DatabaseID, cfg.WorkoutsCollectionID),
	}, nil
}

// MetricsHandler はPrometheusスクレイプ用のハンドラーを返す。
// 組み込み先が任意のパスにマウントする。
func (a *App) MetricsHandler() http.Handler {
	return metrics.Handler(a.Registry)
}

// Run はCLIのメインエントリーポイント。
// サブコマンドを解析し、初期化と依存関係の構築を行って実行する。
// argsにはos.Args[1:]を渡す。出力はwに書き込まれる。
func Run(w io.Writer, logW io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)
	if cmd == CommandHelp {
		printUsage(w)
		return nil
	}

	cfg, err := Init(logW)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	a, err := New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}

	ctx := context.Background()

	// ログイン系以外は保存済みトークンからの復元を前提にする
	if cmd != CommandLogin && cmd != CommandSignup {
		if _, err := a.Sessions.Restore(ctx); err != nil {
			return err
		}
	}

	return a.dispatch(ctx, w, cmd, rest)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `vitacoach <command> [args]

commands:
  signup <email> <password> <name> <role>   アカウント作成（role: user / coach）
  login <email> <password>                  ログイン
  logout                                    ログアウト
  whoami                                    現在のIdentityと役割を表示
  coaches                                   コーチ一覧
  hire <coachID>                            コーチへ雇用リクエスト
  requests                                  未処理リクエスト一覧（コーチ用）
  accept <relationshipID>                   リクエストを承諾
  decline <relationshipID>                  リクエストを辞退
  end <relationshipID>                      契約を終了
  rate <coachID> <stars> [comment]          コーチを評価
  plan <clientID> <title> <exercises> [notes]  プランを割り当て（コーチ用）
  plans                                     自分のプラン一覧`)
}
