package ircd

import "strings"

// maxNickLength is the longest nickname the server will accept.
const maxNickLength = 9

// maxChannelLength is the longest channel name the server will accept,
// including the leading '#'.
const maxChannelLength = 50

// isValidNick reports whether s is a syntactically valid nickname.
// Nicknames are compared case-sensitively elsewhere (see
// Server.findClientByNick), so this function does no case folding.
func isValidNick(s string) bool {
	if s == "" || len(s) > maxNickLength {
		return false
	}
	if s[0] == ':' || s[0] == '#' {
		return false
	}
	return strings.IndexByte(s, ' ') == -1
}

// isValidChannel reports whether s is a syntactically valid channel name.
func isValidChannel(s string) bool {
	if len(s) < 2 || len(s) > maxChannelLength {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case ' ', ',', '\a':
			return false
		}
	}
	return true
}

// isValidUser reports whether s is a syntactically valid username, as
// given to the USER command. The server truncates rather than rejects
// anything over the length limit (see Client.setUser), so the only
// thing worth rejecting here is an empty string.
func isValidUser(s string) bool {
	return s != ""
}
