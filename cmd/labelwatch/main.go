// Command labelwatch はDailyMedのラベル更新をウォッチリストと照合し、インパクトレポートを出力する。
package main

import (
	"os"

	"github.com/hitoshi/labelwatch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:], os.Stdout, os.Stderr))
}
