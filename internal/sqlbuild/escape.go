package sqlbuild

import "bytes"

// EscapeInto appends v to dst with backslash and single-quote escaped, per
// the MySQL string-literal reference
// (https://dev.mysql.com/doc/refman/8.0/en/string-literals.html). No
// other byte is touched -- control bytes and non-ASCII are passed through
// verbatim, matching what this proxy's origin actually does (it escapes
// only the two characters that can break out of a single-quoted
// literal).
func EscapeInto(dst *bytes.Buffer, v []byte) {
	for _, c := range v {
		if c == '\\' || c == '\'' {
			dst.WriteByte('\\')
		}
		dst.WriteByte(c)
	}
}

// QuotedInto writes v as a single-quoted, escaped SQL string literal.
func QuotedInto(dst *bytes.Buffer, v []byte) {
	dst.WriteByte('\'')
	EscapeInto(dst, v)
	dst.WriteByte('\'')
}
