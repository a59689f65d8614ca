package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MORTAKI0/VitaCoach/internal/model"
	"github.com/MORTAKI0/VitaCoach/internal/profile"
	"github.com/MORTAKI0/VitaCoach/internal/relationship"
)

// dispatch はサブコマンドを対応するサービス呼び出しに振り分ける。
func (a *App) dispatch(ctx context.Context, w io.Writer, cmd Command, args []string) error {
	switch cmd {
	case CommandLogin:
		return a.runLogin(ctx, w, args)
	case CommandLogout:
		return a.runLogout(ctx, w)
	case CommandWhoami:
		return a.runWhoami(ctx, w)
	case CommandSignup:
		return a.runSignup(ctx, w, args)
	case CommandCoaches:
		return a.runCoaches(ctx, w)
	case CommandHire:
		return a.runHire(ctx, w, args)
	case CommandRequests:
		return a.runRequests(ctx, w)
	case CommandAccept:
		return a.runTransition(ctx, w, args, a.Relationships.AcceptRequest, "承諾しました")
	case CommandDecline:
		return a.runTransition(ctx, w, args, a.Relationships.DeclineRequest, "辞退しました")
	case CommandEnd:
		return a.runTransition(ctx, w, args, a.Relationships.EndRelationship, "終了しました")
	case CommandRate:
		return a.runRate(ctx, w, args)
	case CommandPlan:
		return a.runPlan(ctx, w, args)
	case CommandPlans:
		return a.runPlans(ctx, w)
	default:
		printUsage(w)
		return nil
	}
}

// requireIdentity はログイン済みのIdentityを返す。未ログインはエラー。
func (a *App) requireIdentity(ctx context.Context) (*model.Identity, error) {
	identity, err := a.Sessions.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("ログインしていません。先に login を実行してください")
	}
	return identity, nil
}

func (a *App) runLogin(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: login <email> <password>")
	}

	identity, err := a.Sessions.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ログインしました: %s (%s)\n", identity.Name, identity.Email)
	return nil
}

func (a *App) runLogout(ctx context.Context, w io.Writer) error {
	if err := a.Sessions.Logout(ctx); err != nil {
		fmt.Fprintln(w, "リモートセッションの破棄に失敗しましたが、ローカルからはログアウトしました")
		return err
	}
	fmt.Fprintln(w, "ログアウトしました")
	return nil
}

func (a *App) runWhoami(ctx context.Context, w io.Writer) error {
	identity, err := a.Sessions.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		fmt.Fprintln(w, "未ログイン")
		return nil
	}

	role, err := a.Roles.ResolveRole(ctx, identity.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\nrole: %s\n", identity.Name, identity.Email, role)

	p, err := a.Profiles.Get(ctx, identity.ID)
	if err != nil {
		if model.IsCode(err, model.ErrCodeProfileNotFound) {
			fmt.Fprintln(w, "profile: 未作成")
			return nil
		}
		return err
	}
	if profile.IsComplete(*p) {
		fmt.Fprintln(w, "profile: 完成")
	} else {
		fmt.Fprintln(w, "profile: 未完成（プロフィール設定を完了してください）")
	}
	return nil
}

func (a *App) runSignup(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: signup <email> <password> <name> <role>")
	}

	identity, err := a.Sessions.SignUp(ctx, args[0], args[1], args[2], model.Role(args[3]))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "アカウントを作成しました: %s (%s)\n", identity.Name, identity.ID)
	return nil
}

func (a *App) runCoaches(ctx context.Context, w io.Writer) error {
	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	coaches, err := a.Profiles.ListCoaches(ctx)
	if err != nil {
		return err
	}
	if len(coaches) == 0 {
		fmt.Fprintln(w, "コーチが登録されていません")
		return nil
	}
	for _, c := range coaches {
		fmt.Fprintf(w, "%s\t%s\t%.0f円/時\t評価 %.1f\n", c.UserID, c.Name, c.HourlyPrice, c.AvgRating)
	}
	return nil
}

func (a *App) runHire(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: hire <coachID>")
	}

	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	// 実在するコーチであることを先に確認する
	coach, err := a.Profiles.GetCoach(ctx, args[0])
	if err != nil {
		return err
	}

	rel, err := a.Relationships.RequestCoach(ctx, identity.ID, coach.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "雇用リクエストを送信しました: %s (%s)\n", coach.Name, rel.ID)
	return nil
}

func (a *App) runRequests(ctx context.Context, w io.Writer) error {
	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	rels, err := a.Relationships.ListRequests(ctx, identity.ID)
	if err != nil {
		return err
	}
	if len(rels) == 0 {
		fmt.Fprintln(w, "未処理のリクエストはありません")
		return nil
	}
	for _, rel := range rels {
		fmt.Fprintf(w, "%s\tfrom %s\t%s\n", rel.ID, rel.UserID, rel.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// runTransition は承諾・辞退・終了の共通処理。
// 対象のRelationshipをViewに読み込んでから状態遷移を実行する。
func (a *App) runTransition(ctx context.Context, w io.Writer, args []string, op func(context.Context, *relationship.View, string) error, done string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: <command> <relationshipID>")
	}
	relationshipID := args[0]

	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	view := relationship.NewView()
	if err := a.loadView(ctx, view, identity.ID); err != nil {
		return err
	}

	if err := op(ctx, view, relationshipID); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", done, relationshipID)
	return nil
}

// loadView はダッシュボード相当のRelationship一覧をViewに読み込む。
// コーチ側の一覧と自身のペアリングの両方を含める。
func (a *App) loadView(ctx context.Context, view *relationship.View, identityID string) error {
	requests, err := a.Relationships.ListRequests(ctx, identityID)
	if err != nil {
		return err
	}
	clients, err := a.Relationships.ListClients(ctx, identityID)
	if err != nil {
		return err
	}
	current, err := a.Relationships.CurrentRelationship(ctx, identityID)
	if err != nil {
		return err
	}

	view.Replace(append(requests, clients...))
	if current != nil {
		view.Set(*current)
	}
	return nil
}

func (a *App) runRate(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rate <coachID> <stars> [comment]")
	}

	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	stars, err := strconv.Atoi(args[1])
	if err != nil {
		return model.NewInvalidStarsError(0)
	}
	comment := strings.Join(args[2:], " ")

	r, err := a.Ratings.Submit(ctx, identity.ID, args[0], stars, comment)
	if err != nil {
		if r != nil {
			// 評価自体は保存済みで、集計の再計算のみ失敗した
			fmt.Fprintf(w, "評価を保存しました（集計の更新は保留）: %s\n", r.ID)
		}
		return err
	}
	fmt.Fprintf(w, "評価を投稿しました: %s\n", r.ID)
	return nil
}

func (a *App) runPlan(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: plan <clientID> <title> <exercises> [notes]")
	}

	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	notes := strings.Join(args[3:], " ")
	plan, err := a.Workouts.CreatePlan(ctx, identity.ID, args[0], args[1], args[2], notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "プランを割り当てました: %s (%s)\n", plan.Title, plan.ID)
	return nil
}

func (a *App) runPlans(ctx context.Context, w io.Writer) error {
	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	plans, err := a.Workouts.ListForClient(ctx, identity.ID)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(w, "プランはまだありません")
		return nil
	}
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\tby %s\n", p.ID, p.Title, p.CoachID)
	}
	return nil
}
