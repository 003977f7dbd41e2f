package bundle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mirror/8/index.json":
			w.Write([]byte(`{"firmware_major":8,"modules":[]}`)) //nolint:errcheck // test server
		case "/mirror/8/lib/adafruit_display_text/label.mpy":
			w.Write([]byte("C\x05label")) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL+"/mirror/", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	ctx := context.Background()

	idx, err := src.FetchIndex(ctx, 8)
	if err != nil || string(idx) != `{"firmware_major":8,"modules":[]}` {
		t.Errorf("FetchIndex() = %q, %v", idx, err)
	}
	data, err := src.FetchFile(ctx, 8, "adafruit_display_text/label.mpy")
	if err != nil || string(data) != "C\x05label" {
		t.Errorf("FetchFile() = %q, %v", data, err)
	}
	if _, err := src.FetchIndex(ctx, 9); err == nil {
		t.Error("FetchIndex(9) expected error for 404")
	}
	if _, err := src.FetchFile(ctx, 8, "../../etc/passwd"); err == nil {
		t.Error("FetchFile() expected error for escaping path")
	}
}

func TestNewHTTPSource_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "::nope", "example.com/bundles"} {
		if _, err := NewHTTPSource(raw, 0); err == nil {
			t.Errorf("NewHTTPSource(%q) expected error", raw)
		}
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "9", "lib", "adafruit_bitmap_font")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "9", "index.json"), []byte(`{"modules":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(libDir, "bdf.mpy"), []byte("C\x06bdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(root)
	ctx := context.Background()

	if idx, err := src.FetchIndex(ctx, 9); err != nil || string(idx) != `{"modules":[]}` {
		t.Errorf("FetchIndex() = %q, %v", idx, err)
	}
	if data, err := src.FetchFile(ctx, 9, "/adafruit_bitmap_font/bdf.mpy"); err != nil || string(data) != "C\x06bdf" {
		t.Errorf("FetchFile() = %q, %v", data, err)
	}
	if _, err := src.FetchFile(ctx, 9, "adafruit_bitmap_font/../../index.json"); err == nil {
		t.Error("FetchFile() expected error for path leaving lib")
	}
	if _, err := src.FetchIndex(ctx, 7); err == nil {
		t.Error("FetchIndex(7) expected error for missing index")
	}

	c, err := Load(ctx, src, 9)
	if err != nil {
		t.Fatalf("Load() from directory error = %v", err)
	}
	if c.FirmwareMajor() != 9 {
		t.Errorf("FirmwareMajor() = %d, want 9", c.FirmwareMajor())
	}
}

func TestCleanLibPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"neopixel.mpy", "neopixel.mpy", false},
		{"/neopixel.mpy", "neopixel.mpy", false},
		{"pkg/sub/mod.mpy", "pkg/sub/mod.mpy", false},
		{"", "", true},
		{"../secrets.py", "", true},
		{"pkg/../../x", "", true},
		{"pkg//mod.mpy", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanLibPath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("cleanLibPath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("cleanLibPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
