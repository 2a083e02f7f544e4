package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию сборки, заполняемую через -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// String возвращает версию одной строкой для стартового лога.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
