package ircd

import "fmt"

// Channel holds all state for one channel. A Channel is only ever
// accessed from the server's single goroutine, so it carries no locking
// of its own.
type Channel struct {
	Name string

	topic      string
	topicSetBy string
	topicSetAt int64

	key         string
	memberLimit int

	inviteOnly      bool
	topicRestricted bool

	members   map[int32]*Client
	operators map[int32]bool
	invited   map[string]bool

	createdAt int64
}

func newChannel(name string, now int64) *Channel {
	return &Channel{
		Name:      name,
		members:   make(map[int32]*Client),
		operators: make(map[int32]bool),
		invited:   make(map[string]bool),
		createdAt: now,
	}
}

func (c *Channel) isMember(cl *Client) bool {
	_, ok := c.members[cl.fd]
	return ok
}

func (c *Channel) addMember(cl *Client) {
	c.members[cl.fd] = cl
}

// removeMember drops cl from the channel along with any operator or
// invite-list entry it holds. It does not decide whether the channel
// should then be destroyed; the server sweeps empty channels separately.
func (c *Channel) removeMember(cl *Client) {
	delete(c.members, cl.fd)
	delete(c.operators, cl.fd)
	delete(c.invited, cl.Nick)
}

func (c *Channel) isOperator(cl *Client) bool {
	return c.operators[cl.fd]
}

func (c *Channel) addOperator(cl *Client) {
	c.operators[cl.fd] = true
}

func (c *Channel) removeOperator(cl *Client) {
	delete(c.operators, cl.fd)
}

func (c *Channel) isEmpty() bool {
	return len(c.members) == 0
}

func (c *Channel) memberCount() int {
	return len(c.members)
}

func (c *Channel) isFull() bool {
	return c.memberLimit > 0 && len(c.members) >= c.memberLimit
}

func (c *Channel) hasKey() bool {
	return c.key != ""
}

func (c *Channel) checkKey(given string) bool {
	return !c.hasKey() || c.key == given
}

// setKey rejects an empty key or one containing whitespace, matching the
// wire format where a key is sent as a single parameter token.
func (c *Channel) setKey(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return false
		}
	}
	c.key = k
	return true
}

func (c *Channel) removeKey() {
	c.key = ""
}

func (c *Channel) isInvited(nick string) bool {
	return c.invited[nick]
}

func (c *Channel) addInvited(nick string) {
	c.invited[nick] = true
}

func (c *Channel) resetInvited() {
	c.invited = make(map[string]bool)
}

func (c *Channel) setTopic(topic string, setter string, now int64) {
	c.topic = topic
	c.topicSetBy = setter
	c.topicSetAt = now
}

func (c *Channel) hasTopic() bool {
	return c.topic != ""
}

// modeString renders the channel's current mode flags the way a 324 reply
// or a join-time broadcast would: a leading '+' followed by any set
// flags, with 'k' and 'l' taking trailing arguments. The key itself is
// never revealed to non-operators; callers that need to suppress it pass
// revealKey=false.
func (c *Channel) modeString(revealKey bool) string {
	flags := "+"
	var args []string

	if c.inviteOnly {
		flags += "i"
	}
	if c.topicRestricted {
		flags += "t"
	}
	if c.hasKey() {
		flags += "k"
		if revealKey {
			args = append(args, c.key)
		} else {
			args = append(args, "*")
		}
	}
	if c.memberLimit > 0 {
		flags += "l"
		args = append(args, fmt.Sprintf("%d", c.memberLimit))
	}

	if flags == "+" {
		return flags
	}
	out := flags
	for _, a := range args {
		out += " " + a
	}
	return out
}
