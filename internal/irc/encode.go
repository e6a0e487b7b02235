package irc

import (
	"fmt"
	"strings"
)

// Encode renders a prefix, command and parameters as a raw protocol
// line, including the trailing CRLF. It does not enforce command-specific semantics; callers
// are responsible for keeping parameter counts sane.
func Encode(prefix, command string, params ...string) (string, error) {
	var b strings.Builder

	if prefix != "" {
		b.WriteByte(':')
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	b.WriteString(command)

	if len(params) > MaxParts-1 {
		return "", fmt.Errorf("too many parameters")
	}

	for i, param := range params {
		needsColon := param == "" || strings.IndexByte(param, ' ') != -1 ||
			(len(param) > 0 && param[0] == ':')
		if needsColon && i+1 != len(params) {
			return "", fmt.Errorf("parameter %d needs a trailing colon but is not last", i)
		}

		b.WriteByte(' ')
		if needsColon {
			b.WriteByte(':')
		}
		b.WriteString(param)
	}

	b.WriteString("\r\n")

	line := b.String()
	if len(line) > MaxLineLength {
		return "", fmt.Errorf("encoded message exceeds %d bytes", MaxLineLength)
	}

	return line, nil
}
