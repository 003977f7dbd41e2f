package bundle

import (
	"sort"
	"strings"
	"unicode"
)

// ExtractImports returns the sorted top-level module names a program
// imports. It is a line tokenizer over a restricted grammar:
//
//	import_stmt = "import" dotted [ "as" name ] { "," dotted [ "as" name ] }
//	from_stmt   = "from" dotted "import" ...
//
// Comments, triple-quoted strings and relative imports ("from . import x")
// are skipped. Statements split over several lines with parentheses or
// backslashes only contribute their first line, which is enough for the
// module name. The program is never executed.
func ExtractImports(source string) []string {
	found := make(map[string]bool)
	inString := ""

	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)

		if inString != "" {
			idx := strings.Index(line, inString)
			if idx < 0 {
				continue
			}
			line = strings.TrimSpace(line[idx+3:])
			inString = ""
		}

		for _, stmt := range strings.Split(stripComment(line), ";") {
			stmt = strings.TrimSpace(stmt)
			if q := openTripleQuote(stmt); q != "" {
				inString = q
				continue
			}
			for _, name := range importedNames(stmt) {
				found[name] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// stripComment drops a trailing # comment that is not inside a quote.
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

// openTripleQuote returns the delimiter of a triple-quoted string that
// starts in stmt and does not close on the same line.
func openTripleQuote(stmt string) string {
	for _, q := range []string{`"""`, `'''`} {
		idx := strings.Index(stmt, q)
		if idx < 0 {
			continue
		}
		if !strings.Contains(stmt[idx+3:], q) {
			return q
		}
	}
	return ""
}

// importedNames returns the top-level names referenced by one statement.
func importedNames(stmt string) []string {
	fields := strings.Fields(stmt)
	if len(fields) < 2 {
		return nil
	}

	switch fields[0] {
	case "from":
		mod := fields[1]
		if strings.HasPrefix(mod, ".") {
			return nil
		}
		if name := topLevel(mod); name != "" {
			return []string{name}
		}
	case "import":
		rest := strings.TrimPrefix(stmt, "import")
		rest = strings.Trim(strings.TrimSpace(rest), "()\\")
		var names []string
		for _, item := range strings.Split(rest, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			mod, _, _ := strings.Cut(item, " ")
			if name := topLevel(mod); name != "" {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

// topLevel returns the first component of a dotted name, or "" when it is
// not an identifier.
func topLevel(dotted string) string {
	name, _, _ := strings.Cut(dotted, ".")
	if name == "" {
		return ""
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return ""
	}
	return name
}
