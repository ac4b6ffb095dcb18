// Package version хранит сведения о сборке сервиса.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/orderapp/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var resolveOnce sync.Once

// resolve подставляет данные VCS из debug.BuildInfo, если ldflags не заданы.
func resolve() {
	resolveOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown" && s.Value != "":
				commit = s.Value
			case s.Key == "vcs.time" && date == "unknown" && s.Value != "":
				date = s.Value
			}
		}
	})
}

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) {
	resolve()
	return version, commit, date
}

// GetVersion возвращает версию сборки.
func GetVersion() string {
	v, _, _ := Info()
	return v
}

// String форматирует сведения о сборке одной строкой.
func String() string {
	v, c, d := Info()
	return fmt.Sprintf("version=%s commit=%s date=%s", v, c, d)
}

// Fields возвращает сведения о сборке для стартовой записи лога.
func Fields() log.Fields {
	v, c, d := Info()
	return log.Fields{"version": v, "commit": c, "build_date": d}
}
