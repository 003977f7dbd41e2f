// Package modver holds the version and file-format helpers used when diffing
// board libraries against the bundle.
//
// Version literals follow the grammar
//
//	literal = digits "." digits "." digits
//
// and are located next to the conventional __version__ marker. In source
// files the literal follows the marker on the same line
// (__version__ = "1.2.3"). In compiled .mpy files the string table places
// the literal before the marker name, so the order is reversed. This is a
// pattern heuristic, not a parser for either format.
package modver
