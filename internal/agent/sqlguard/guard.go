// Package sqlguard decides whether a generated statement may reach the
// database. Destructive statements are never allowed; writes need the
// configured token, in parentheses, in the user's own words.
package sqlguard

import (
	"strings"
	"unicode"

	errx "github.com/stockwise-ai/server/internal/core/error"
)

// Kind is the strongest effect a query can have.
type Kind int

const (
	Read Kind = iota
	Write
	Destructive
)

func (k Kind) String() string {
	switch k {
	case Write:
		return "write"
	case Destructive:
		return "destructive"
	default:
		return "read"
	}
}

var (
	destructiveKeywords = map[string]bool{"DELETE": true, "DROP": true, "TRUNCATE": true}
	writeKeywords       = map[string]bool{
		"INSERT": true, "UPDATE": true, "UPSERT": true, "ALTER": true, "CREATE": true,
		"ATTACH": true, "DETACH": true, "VACUUM": true, "REINDEX": true,
	}
	// pragmas that take a table or index name and only report on it
	readPragmas = map[string]bool{
		"TABLE_INFO": true, "TABLE_XINFO": true, "TABLE_LIST": true,
		"INDEX_LIST": true, "INDEX_INFO": true, "INDEX_XINFO": true,
		"FOREIGN_KEY_LIST": true, "FOREIGN_KEY_CHECK": true, "INTEGRITY_CHECK": true, "QUICK_CHECK": true,
	}
)

// Classify scans every statement of query outside string literals, quoted
// identifiers and comments.
func Classify(query string) Kind {
	kind := Read
	for _, stmt := range statements(tokens(query)) {
		switch k := classifyStatement(stmt); {
		case k == Destructive:
			return Destructive
		case k > kind:
			kind = k
		}
	}
	return kind
}

// classifyStatement looks at the tokens of one statement. REPLACE is a write
// only as a statement (REPLACE INTO, INSERT OR REPLACE), never as the string
// function. A PRAGMA writes when it assigns a value or passes one to a pragma
// that is not a report.
func classifyStatement(toks []string) Kind {
	kind := Read
	for i, t := range toks {
		switch {
		case destructiveKeywords[t]:
			return Destructive
		case writeKeywords[t]:
			kind = Write
		case t == "REPLACE" && (i == 0 || next(toks, i) == "INTO"):
			kind = Write
		case t == "PRAGMA" && i == 0 && pragmaWrites(toks[1:]):
			kind = Write
		}
	}
	return kind
}

func pragmaWrites(toks []string) bool {
	for i, t := range toks {
		switch t {
		case "=":
			return true
		case "(":
			return i == 0 || !readPragmas[toks[i-1]]
		}
	}
	return false
}

func next(toks []string, i int) string {
	if i+1 < len(toks) {
		return toks[i+1]
	}
	return ""
}

// statements splits tokens at ";".
func statements(toks []string) [][]string {
	var (
		out [][]string
		cur []string
	)
	for _, t := range toks {
		if t == ";" {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// tokens returns the upper-cased bare words of query plus the "(", "=" and
// ";" punctuation the classifier needs. Literals and comments are skipped.
func tokens(query string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}

	rs := []rune(query)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\'' || r == '"' || r == '`' || r == '[':
			flush()
			closing := r
			if r == '[' {
				closing = ']'
			}
			for i++; i < len(rs); i++ {
				if rs[i] == closing {
					// doubled quote is an escaped quote
					if closing != ']' && i+1 < len(rs) && rs[i+1] == closing {
						i++
						continue
					}
					break
				}
			}
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			flush()
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			flush()
			for i += 2; i < len(rs); i++ {
				if rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/' {
					i++
					break
				}
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			cur.WriteRune(r)
		case r == '(' || r == '=' || r == ';':
			flush()
			words = append(words, string(r))
		default:
			flush()
		}
	}
	flush()
	return words
}

// Policy authorizes queries against the text of the user's request.
type Policy struct {
	Token string
}

// Marker is the exact, case-sensitive text the user must include to write.
func (p Policy) Marker() string {
	return "(" + p.Token + ")"
}

// Authorize returns errx.ErrDestructiveStatement or errx.ErrAuthenticationRequired
// when query must not be executed.
func (p Policy) Authorize(query, userText string) error {
	switch Classify(query) {
	case Destructive:
		return errx.ErrDestructiveStatement
	case Write:
		if p.Token == "" || !strings.Contains(userText, p.Marker()) {
			return errx.ErrAuthenticationRequired
		}
	}
	return nil
}

// RefusalMessage is the text shown to the user for an Authorize error.
func RefusalMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
