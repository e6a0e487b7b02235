package ircd

import (
	"strconv"
	"strings"
)

// argCursor walks a comma-separated argument list one item at a time,
// the same way a MODE command's trailing argument is shared between
// every mode letter that needs one (e.g. "MODE #chan +ol nick,10").
type argCursor struct {
	items []string
	pos   int
}

func newArgCursor(s string) *argCursor {
	if s == "" {
		return &argCursor{}
	}
	return &argCursor{items: strings.Split(s, ",")}
}

func (a *argCursor) next() string {
	if a.pos >= len(a.items) {
		return ""
	}
	item := a.items[a.pos]
	a.pos++
	return item
}

func (s *Server) handleMode(c *Client, args []string) {
	target := args[0]

	if isValidChannel(target) {
		ch, ok := s.channels[target]
		if !ok {
			s.numeric(c, errNoSuchChannel, target, ":No such channel")
			return
		}

		if len(args) < 2 {
			s.numeric(c, rplChannelModeIs, target, ":"+ch.modeString(false))
			return
		}

		if args[1] == "b" {
			s.numeric(c, rplEndOfBanList, target, ":End of channel ban list")
			return
		}

		if !ch.isOperator(c) {
			s.numeric(c, errChanOpPrivsNeeded, target, ":You're not channel operator")
			return
		}

		modeArgs := ""
		if len(args) == 3 {
			modeArgs = args[2]
		}
		s.setChannelMode(c, ch, args[1], modeArgs)
		return
	}

	client := s.findClientByNick(target)
	if client == nil {
		s.numeric(c, errNoSuchNick, target, ":No such nick/channel")
		return
	}
	if client.Nick != c.Nick {
		s.numeric(c, errUModeUnknownFlag, ":Can't change mode for other users")
		return
	}

	if len(args) < 2 {
		s.numeric(c, rplUModeIs, ":")
		return
	}

	mode := args[1]
	for i := 0; i < len(mode); i++ {
		if mode[i] == '+' || mode[i] == '-' {
			continue
		}
		if !isAlpha(mode[i]) {
			s.numeric(c, errUnknownMode, string(mode[i]), ":is unknown mode char to me")
			return
		}
		if mode[i] != 'i' {
			s.numeric(c, errUModeUnknownFlag, ":Unknown MODE flag")
		}
	}
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// setChannelMode is the channel mode state machine. It mutates ch
// according to the +/- flag string, consuming arguments from argsStr as
// needed, and broadcasts only the flags that actually changed.
func (s *Server) setChannelMode(c *Client, ch *Channel, modeStr, argsStr string) {
	cursor := newArgCursor(argsStr)

	var modeOut strings.Builder
	var argsOut []string
	var lastSign byte

	sign := byte(0)
	i := 0
	for i < len(modeStr) {
		sign = modeStr[i]
		if sign != '+' && sign != '-' {
			s.numeric(c, errUnknownMode, string(sign), ":is unknown mode char to me")
			return
		}
		i++
		if i >= len(modeStr) || !isAlpha(modeStr[i]) {
			flag := byte(0)
			if i < len(modeStr) {
				flag = modeStr[i]
			}
			s.numeric(c, errUnknownMode, string(flag), ":is unknown mode char to me")
			return
		}

		for i < len(modeStr) && isAlpha(modeStr[i]) {
			flag := modeStr[i]
			changed := true

			switch flag {
			case 'i':
				if ch.inviteOnly == (sign == '+') {
					changed = false
				} else {
					ch.inviteOnly = sign == '+'
					ch.resetInvited()
				}

			case 't':
				if ch.topicRestricted == (sign == '+') {
					changed = false
				} else {
					ch.topicRestricted = sign == '+'
				}

			case 'k':
				if sign == '+' {
					key := cursor.next()
					if key != "" && key == ch.key {
						changed = false
					} else if !ch.setKey(key) {
						s.numeric(c, errKeySet, ch.Name, ":Key is not well-formed")
						changed = false
					} else {
						argsOut = append(argsOut, key)
					}
				} else {
					ch.removeKey()
				}

			case 'l':
				if sign == '+' {
					limitStr := cursor.next()
					limit, err := strconv.Atoi(limitStr)
					if err != nil || limit <= 0 {
						shown := limitStr
						if shown == "" {
							shown = "*"
						}
						s.numeric(c, errInvalidModeParam, ch.Name, "l", shown, ":Bad limit")
						changed = false
					} else if limit == ch.memberLimit {
						changed = false
					} else {
						ch.memberLimit = limit
						argsOut = append(argsOut, strconv.Itoa(limit))
					}
				} else {
					if ch.memberLimit == 0 {
						changed = false
					} else {
						ch.memberLimit = 0
					}
				}

			case 'o':
				nick := cursor.next()
				target := s.findClientByNick(nick)
				if target == nil {
					s.numeric(c, errNoSuchNick, nick, ":No such nick/channel")
					changed = false
					break
				}
				if (sign == '+') == ch.isOperator(target) {
					changed = false
					break
				}
				if sign == '+' {
					ch.addOperator(target)
				} else {
					ch.removeOperator(target)
				}
				argsOut = append(argsOut, nick)

			default:
				s.numeric(c, errUModeUnknownFlag, ":Unknown MODE flag")
				changed = false
			}

			if changed {
				if modeOut.Len() == 0 || lastSign != sign {
					modeOut.WriteByte(sign)
					lastSign = sign
				}
				modeOut.WriteByte(flag)
			}

			i++
		}
	}

	if modeOut.Len() == 0 {
		return
	}

	params := append([]string{ch.Name, modeOut.String()}, argsOut...)
	for _, member := range ch.members {
		s.sendFrom(member, c, "MODE", params...)
	}
}
