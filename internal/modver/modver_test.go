package modver

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.2.3", Version{1, 2, 3}, false},
		{"8.2.6-beta.1", Version{8, 2, 6}, false},
		{"9", Version{9, 0, 0}, false},
		{"4.1", Version{4, 1, 0}, false},
		{"0.0.0", Version{0, 0, 0}, false},
		{"v2.0.1", Version{2, 0, 1}, false},
		{"1.2.3.4", Version{1, 2, 3}, false},
		{"", Version{}, true},
		{"-rc1", Version{}, true},
		{"1..3", Version{}, true},
		{"one.two", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVersion) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidVersion", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		sign int
	}{
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0", "1.0.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.0-alpha", "1.2.0", 0},
		{"x.2.0", "0.2.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			if sign(got) != tt.sign {
				t.Errorf("Compare(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.sign)
			}
			if sign(Compare(tt.b, tt.a)) != -tt.sign {
				t.Errorf("Compare(%q, %q) is not antisymmetric", tt.b, tt.a)
			}
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestSameMajor(t *testing.T) {
	if !SameMajor("1.2.0", "1.5.0") {
		t.Error("SameMajor(1.2.0, 1.5.0) = false")
	}
	if SameMajor("1.2.0", "2.0.0") {
		t.Error("SameMajor(1.2.0, 2.0.0) = true")
	}
}

func TestExpectedEpoch(t *testing.T) {
	tests := []struct {
		major int
		want  byte
	}{
		{6, 3}, {7, 5}, {8, 5}, {9, 6}, {10, 6},
	}
	for _, tt := range tests {
		if got := ExpectedEpoch(tt.major); got != tt.want {
			t.Errorf("ExpectedEpoch(%d) = %d, want %d", tt.major, got, tt.want)
		}
	}
}

func TestSniffCompiledHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		major   int
		wantBad bool
	}{
		{"matching v8", []byte("C\x05\x02\x1f"), 8, false},
		{"matching v9", []byte("C\x06\x00"), 9, false},
		{"v9 file on v8 firmware", []byte("C\x06\x00"), 8, true},
		{"v8 file on v9 firmware", []byte("C\x05\x00"), 9, true},
		{"wrong magic", []byte("M\x05"), 8, true},
		{"truncated", []byte("C"), 8, true},
		{"empty", nil, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SniffCompiledHeader(tt.data, tt.major)
			if tt.wantBad != errors.Is(err, ErrBadBinaryFormat) {
				t.Errorf("SniffCompiledHeader() error = %v, wantBad %v", err, tt.wantBad)
			}
		})
	}
}

func TestExtractVersionTag(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		kind   FileKind
		want   string
		wantOK bool
	}{
		{"source assignment", "import time\n__version__ = \"4.4.1\"\n", Source, "4.4.1", true},
		{"source with auto-generated placeholder", "__version__ = \"0.0.0+auto.0\"\n", Source, "0.0.0", true},
		{"source literal must be on marker line", "__version__ = (\n\"1.2.3\")\n", Source, "", false},
		{"source without tag", "print('hi')\n", Source, "", false},
		{"compiled string table", "C\x05\x00\x1f\x0b4.4.1\x00\x16__version__\x00", Compiled, "4.4.1", true},
		{"compiled marker before literal", "C\x05__version__\x004.4.1", Compiled, "", false},
		{"compiled without tag", "C\x05\x00\x00", Compiled, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVersionTag([]byte(tt.data), tt.kind)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractVersionTag() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
