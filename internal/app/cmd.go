package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandLogin はメールアドレスとパスワードでログインする。
	CommandLogin Command = "login"
	// CommandLogout は現在のセッションを破棄する。
	CommandLogout Command = "logout"
	// CommandWhoami は現在のIdentityと役割、プロフィールの完成状態を表示する。
	CommandWhoami Command = "whoami"
	// CommandSignup はアカウントとプロファイルを作成する。
	CommandSignup Command = "signup"
	// CommandCoaches はコーチ一覧を表示する。
	CommandCoaches Command = "coaches"
	// CommandHire はコーチへ雇用リクエストを送る。
	CommandHire Command = "hire"
	// CommandRequests はコーチ宛の未処理リクエスト一覧を表示する。
	CommandRequests Command = "requests"
	// CommandAccept はリクエストを承諾する。
	CommandAccept Command = "accept"
	// CommandDecline はリクエストを辞退する。
	CommandDecline Command = "decline"
	// CommandEnd は契約を終了する。
	CommandEnd Command = "end"
	// CommandRate はコーチを評価する。
	CommandRate Command = "rate"
	// CommandPlan はクライアントにトレーニングプランを割り当てる。
	CommandPlan Command = "plan"
	// CommandPlans は自分のプラン一覧を表示する。
	CommandPlans Command = "plans"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandHelp, nil
	}

	switch args[0] {
	case "login":
		return CommandLogin, args[1:]
	case "logout":
		return CommandLogout, args[1:]
	case "whoami":
		return CommandWhoami, args[1:]
	case "signup":
		return CommandSignup, args[1:]
	case "coaches":
		return CommandCoaches, args[1:]
	case "hire":
		return CommandHire, args[1:]
	case "requests":
		return CommandRequests, args[1:]
	case "accept":
		return CommandAccept, args[1:]
	case "decline":
		return CommandDecline, args[1:]
	case "end":
		return CommandEnd, args[1:]
	case "rate":
		return CommandRate, args[1:]
	case "plan":
		return CommandPlan, args[1:]
	case "plans":
		return CommandPlans, args[1:]
	default:
		return CommandHelp, nil
	}
}
