package ircd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/relaycore/ircd/internal/irc"
)

// maxUserLength is how much of a USER command's username argument is
// kept; anything past this is silently truncated rather than rejected.
const maxUserLength = 12

// Client holds all per-connection state. Like Channel, a Client is only
// ever touched from the server's single goroutine.
type Client struct {
	fd   int32
	host string

	// connID uniquely identifies this connection across its lifetime for
	// log correlation. It exists because a client's nick may be empty
	// (pre-registration) or may change (NICK), so neither is a stable
	// join key across a session's log lines.
	connID string

	Nick     string
	user     string
	realname string

	// passValid tracks whether a correct PASS (when one is configured) has
	// been given. Registration cannot complete without it.
	passValid bool

	registered   bool
	disconnected bool

	channels map[string]*Channel

	// inBuf holds bytes read from the socket that have not yet formed a
	// complete CRLF-terminated line.
	inBuf []byte

	// outBuf holds encoded bytes waiting to be written. The poller writes
	// from the front of this buffer whenever the fd is writable, so a
	// client that is slow to drain does not block anyone else.
	outBuf []byte
}

func newClient(fd int32, host string, passRequired bool) *Client {
	return &Client{
		fd:        fd,
		host:      host,
		connID:    uuid.NewString(),
		passValid: !passRequired,
		channels:  make(map[string]*Channel),
	}
}

// fullname is the nick!user@host string used as a message source once a
// client is registered enough to have all three pieces.
func (c *Client) fullname() string {
	return fmt.Sprintf("%s!%s@%s", c.Nick, c.user, c.host)
}

func (c *Client) setUser(user, realname string) {
	if len(user) > maxUserLength {
		user = user[:maxUserLength]
	}
	c.user = user
	c.realname = realname
}

func (c *Client) isOnChannel(name string) bool {
	_, ok := c.channels[name]
	return ok
}

func (c *Client) joinChannel(ch *Channel) {
	c.channels[ch.Name] = ch
}

func (c *Client) partChannel(name string) {
	delete(c.channels, name)
}

// queue appends an already-encoded wire-format line (including its CRLF)
// to the client's pending output. The poller is responsible for actually
// writing it out; see Server.flush.
func (c *Client) queue(line string) {
	c.outBuf = append(c.outBuf, line...)
}

// send encodes and queues a message from the server, whose source is
// always the server's own name.
func (s *Server) send(c *Client, command string, params ...string) {
	line, err := irc.Encode(s.name, command, params...)
	if err != nil {
		s.log.WithError(err).WithField("command", command).Warn("dropping outgoing message")
		return
	}
	c.queue(line)
}

// sendFrom is like send but the message's source is another client
// (e.g. relaying a PRIVMSG or a JOIN broadcast).
func (s *Server) sendFrom(c *Client, from *Client, command string, params ...string) {
	line, err := irc.Encode(from.fullname(), command, params...)
	if err != nil {
		s.log.WithError(err).WithField("command", command).Warn("dropping outgoing message")
		return
	}
	c.queue(line)
}

// numeric sends a server numeric reply. The target parameter is the
// client's current nick, or "*" before one has been assigned, per the
// wire format every handler in command.go expects.
func (s *Server) numeric(c *Client, code string, params ...string) {
	target := c.Nick
	if target == "" {
		target = "*"
	}
	// Handlers mark the trailing text with a leading ':'. Encode adds that
	// marker itself, so the caller's copy is dropped to avoid sending "::".
	if n := len(params); n > 0 && strings.HasPrefix(params[n-1], ":") {
		params = append([]string(nil), params...)
		params[n-1] = params[n-1][1:]
	}
	all := append([]string{target}, params...)
	s.send(c, code, all...)
}

// extractLines pulls any complete CRLF-terminated lines out of inBuf,
// leaving a trailing partial line (if any) buffered for next time.
func extractLines(inBuf []byte) (lines []string, rest []byte) {
	data := string(inBuf)
	for {
		idx := strings.Index(data, "\r\n")
		if idx == -1 {
			break
		}
		lines = append(lines, data[:idx])
		data = data[idx+2:]
	}
	return lines, []byte(data)
}
