package validator

import "strings"

// tokenKind classifies scanner output.
type tokenKind int

const (
	tokenWord    tokenKind = iota // identifier, keyword, or qualified table.column
	tokenNumber                   // numeric literal
	tokenString                   // quoted string literal (quotes stripped)
	tokenPunct                    // single punctuation rune
	tokenComment                  // -- or /* */ comment body
)

// token is one lexical unit of a query.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// scan tokenizes a SQL string deterministically.
//
// Words are maximal runs of letters, digits, underscores and dots, so a
// qualified "table.column" reference arrives as a single token. Single
// quoted strings honor doubled-quote escapes and are classified as string
// tokens, which keeps literal contents out of keyword and column checks.
// Comments (-- to end of line, /* to */) become comment tokens.
func scan(sql string) []token {
	var tokens []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			for i < len(sql) {
				if sql[i] == '\'' {
					if i+1 < len(sql) && sql[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteByte(sql[i])
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: start})

		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			start := i
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			tokens = append(tokens, token{kind: tokenComment, text: sql[i : i+end], pos: start})
			i += end

		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			start := i
			end := strings.Index(sql[i:], "*/")
			if end < 0 {
				tokens = append(tokens, token{kind: tokenComment, text: sql[i:], pos: start})
				i = len(sql)
			} else {
				tokens = append(tokens, token{kind: tokenComment, text: sql[i : i+end+2], pos: start})
				i += end + 2
			}

		case isWordByte(c):
			start := i
			for i < len(sql) && isWordByte(sql[i]) {
				i++
			}
			text := sql[start:i]
			kind := tokenWord
			if isNumeric(text) {
				kind = tokenNumber
			}
			tokens = append(tokens, token{kind: kind, text: text, pos: start})

		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(c), pos: i})
			i++
		}
	}
	return tokens
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isNumeric reports whether the word is a numeric literal (digits with an
// optional decimal point).
func isNumeric(s string) bool {
	digits := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits = true
		case s[i] == '.':
		default:
			return false
		}
	}
	return digits
}
