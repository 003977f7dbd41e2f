// Package bundle loads the library bundle catalog for a firmware major
// version and answers dependency questions against it.
//
// # Index format
//
// Each firmware major has its own index document:
//
//	{
//	  "firmware_major": 8,
//	  "released": "2024-01-10T00:00:00Z",
//	  "modules": [
//	    {"name": "neopixel", "version": "6.3.9", "package": false,
//	     "files": ["neopixel.mpy"], "dependencies": ["adafruit_pixelbuf"]},
//	    {"name": "adafruit_display_text", "version": "3.0.5", "package": true,
//	     "files": ["adafruit_display_text/__init__.mpy", "adafruit_display_text/label.mpy"]}
//	  ]
//	}
//
// File paths are relative to the board's /lib directory. A Source serves
// the index and the file payloads; HTTPSource and DirSource read a mirror
// laid out as {root}/{major}/index.json and {root}/{major}/lib/{path}, and
// CachedSource keeps both in SQLite.
//
// The catalog holds one version per module. It does not solve version
// constraints.
package bundle
