package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Set at build time with -ldflags "-X turing-log-tail/pkg/version.version=1.2.3".
var (
	version = "0.0.0"
	commit  = ""
)

func GetVersion() string {
	return version
}

// GetNumericVersion packs major.minor.patch into one integer, three digits
// per component. Pre-release suffixes are ignored.
func GetNumericVersion() int {
	core, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), "-")
	parts := strings.Split(core, ".")
	result := 0
	for i := 0; i < 3; i++ {
		num := 0
		if i < len(parts) {
			num, _ = strconv.Atoi(parts[i])
		}
		result = result*1000 + num
	}
	return result
}

// String is the line printed by the version command.
func String() string {
	s := fmt.Sprintf("logtail %s (#%d)", version, GetNumericVersion())
	if commit != "" {
		s += " commit " + commit
	}
	return s + " " + runtime.Version()
}
