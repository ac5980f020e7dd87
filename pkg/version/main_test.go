package version

import (
	"strings"
	"testing"
)

func TestGetNumericVersion(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "0.0.0", want: 0},
		{in: "1.2.3", want: 1002003},
		{in: "v2.10.0", want: 2010000},
		{in: "1.4", want: 1004000},
		{in: "3.0.1-rc.1", want: 3000001},
	}
	orig := version
	defer func() { version = orig }()
	for _, tt := range tests {
		version = tt.in
		if got := GetNumericVersion(); got != tt.want {
			t.Errorf("GetNumericVersion(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "logtail "+GetVersion()) {
		t.Errorf("String() = %q", s)
	}
}
