package app

// Command はtouristguideバイナリのサブコマンド。
type Command string

const (
	// CommandServe は予約APIを起動する。
	CommandServe Command = "serve"
	// CommandMigrate はSTORE_DRIVERのストアに重複判定用のスキーマを適用する。
	// PostgreSQLではdocumentsテーブルのマイグレーション、MongoDBではユニークインデックス。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを叩いて終了する。
	// シェルのないdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭をサブコマンドとして解釈する。
// 後続の引数は見ない。未指定や未知の名前はCommandServeになるので、
// コンテナを引数なしで起動すればAPIサーバーが立ち上がる。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
