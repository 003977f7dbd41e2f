package bundle

import (
	"reflect"
	"testing"
)

func TestExtractImports(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "plain imports",
			source: "import board\nimport neopixel\n",
			want:   []string{"board", "neopixel"},
		},
		{
			name:   "comma list with aliases",
			source: "import time, adafruit_display_text.label as label, busio\n",
			want:   []string{"adafruit_display_text", "busio", "time"},
		},
		{
			name:   "from imports",
			source: "from adafruit_display_text import label\nfrom adafruit_bitmap_font.bdf import BDF\n",
			want:   []string{"adafruit_bitmap_font", "adafruit_display_text"},
		},
		{
			name:   "relative imports skipped",
			source: "from . import helpers\nfrom .util import x\nimport neopixel\n",
			want:   []string{"neopixel"},
		},
		{
			name:   "comments skipped",
			source: "# import secrets\nimport board  # import wifi\n",
			want:   []string{"board"},
		},
		{
			name:   "docstrings skipped",
			source: "\"\"\"Example.\n\nimport not_real\n\"\"\"\nimport adafruit_requests\n'''one line''' \nimport ssl\n",
			want:   []string{"adafruit_requests", "ssl"},
		},
		{
			name:   "indented and semicolon separated",
			source: "try:\n    import wifi; import socketpool\nexcept ImportError:\n    pass\n",
			want:   []string{"socketpool", "wifi"},
		},
		{
			name:   "parenthesised from import",
			source: "from adafruit_led_animation.color import (\n    RED,\n    BLUE,\n)\n",
			want:   []string{"adafruit_led_animation"},
		},
		{
			name:   "words that look like statements",
			source: "important = 1\nprint('import x')\nfromage = 2\n",
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractImports(tt.source)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractImports() = %v, want %v", got, tt.want)
			}
		})
	}
}
