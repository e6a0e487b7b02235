package ircd

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/ircd/internal/irc"
)

// fakeTransport stands in for unixTransport in tests, so that disconnect
// and friends never issue a real syscall against a fabricated fd number.
type fakeTransport struct{}

func (fakeTransport) read(fd int32, buf []byte) (int, error)  { return 0, nil }
func (fakeTransport) write(fd int32, buf []byte) (int, error) { return len(buf), nil }
func (fakeTransport) close(fd int32)                          {}
func (fakeTransport) wouldBlock(err error) bool                { return false }

// newTestServer builds a Server with no real listening socket or
// poller, suitable for dispatching commands directly against in-memory
// clients and channels.
func newTestServer() *Server {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)
	s := NewServer(Config{Port: 6667, Name: "test.local", MOTD: []string{"hi"}}, log)
	s.io = fakeTransport{}
	return s
}

var nextFD int32 = 1

func newTestClientRegistered(s *Server, nick string) *Client {
	c := newClient(nextFD, "client.example", false)
	nextFD++
	s.clients[c.fd] = c
	c.Nick = nick
	c.setUser(nick, "Real Name")
	c.registered = true
	c.outBuf = nil // drop the welcome burst so tests start from a clean slate
	return c
}

// linesSent decodes every complete line queued in c's output buffer.
func linesSent(t *testing.T, c *Client) []irc.Message {
	t.Helper()
	raw := string(c.outBuf)
	var out []irc.Message
	for _, line := range strings.Split(raw, "\r\n") {
		if line == "" {
			continue
		}
		m, err := irc.Parse(line)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestRegistrationSequence(t *testing.T) {
	s := newTestServer()
	c := newClient(1, "host", false)
	s.clients[1] = c

	s.handlePass(c, []string{""})
	s.handleNick(c, []string{"alice"})
	s.handleUser(c, []string{"alice", "0", "*", "Alice Example"})

	require.True(t, c.registered)
	msgs := linesSent(t, c)
	require.NotEmpty(t, msgs)
	require.Equal(t, rplWelcome, msgs[0].Command)
}

func TestNickCaseSensitiveUniqueness(t *testing.T) {
	s := newTestServer()
	newTestClientRegistered(s, "Alice")
	bob := newClient(99, "host", false)
	s.clients[99] = bob

	// "alice" (lowercase) must be allowed even though "Alice" is taken,
	// since nick uniqueness is case-sensitive.
	require.False(t, s.nickInUse("alice"))
	require.True(t, s.nickInUse("Alice"))
}

func TestJoinCreatesChannelAndBroadcasts(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")

	s.handleJoin(alice, []string{"#chat"})
	ch, ok := s.channels["#chat"]
	require.True(t, ok)
	require.True(t, ch.isMember(alice))
	require.True(t, ch.isOperator(alice), "first joiner of a new channel should automatically become its operator")

	bob.outBuf = nil
	s.handleJoin(bob, []string{"#chat"})
	msgs := linesSent(t, alice)
	var sawBobJoin bool
	for _, m := range msgs {
		if m.Command == "JOIN" && strings.HasPrefix(m.Prefix, "bob") {
			sawBobJoin = true
		}
	}
	require.True(t, sawBobJoin, "alice should see bob's JOIN broadcast")
}

func TestJoinIsIdempotent(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")

	s.handleJoin(alice, []string{"#chat"})
	ch := s.channels["#chat"]
	count := ch.memberCount()

	alice.outBuf = nil
	s.handleJoin(alice, []string{"#chat"})
	require.Equal(t, count, ch.memberCount())
	require.Empty(t, alice.outBuf, "re-joining an already-joined channel should be silent")
}

func TestPartRemovesEmptyChannel(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.handleJoin(alice, []string{"#chat"})
	require.Contains(t, s.channels, "#chat")

	s.handlePart(alice, []string{"#chat"})
	require.NotContains(t, s.channels, "#chat")
	require.False(t, alice.isOnChannel("#chat"))
}

func TestKickRequiresOperator(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")
	s.handleJoin(alice, []string{"#chat"})
	s.handleJoin(bob, []string{"#chat"})

	// Demote alice so the operator check actually has teeth.
	ch := s.channels["#chat"]
	ch.removeOperator(alice)

	alice.outBuf = nil
	s.handleKick(alice, []string{"#chat", "bob"})
	msgs := linesSent(t, alice)
	require.Len(t, msgs, 1)
	require.Equal(t, errChanOpPrivsNeeded, msgs[0].Command)
	require.True(t, ch.isMember(bob), "bob should not have been kicked")
}

func TestModeInviteOnlyResetsInvites(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.handleJoin(alice, []string{"#chat"})
	ch := s.channels["#chat"]
	ch.addInvited("carol")
	require.True(t, ch.isInvited("carol"))

	alice.outBuf = nil
	s.setChannelMode(alice, ch, "+i", "")
	require.True(t, ch.inviteOnly)
	require.False(t, ch.isInvited("carol"), "toggling +i must clear the invite list")
}

func TestModeReplayOnlyIncludesChangedFlags(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.handleJoin(alice, []string{"#chat"})
	ch := s.channels["#chat"]

	alice.outBuf = nil
	// 't' is applied twice; the second application is a no-op and must not
	// appear in the replay.
	s.setChannelMode(alice, ch, "+tt", "")
	msgs := linesSent(t, alice)
	require.Len(t, msgs, 1)
	require.Equal(t, "MODE", msgs[0].Command)
	require.Equal(t, []string{"#chat", "+t"}, msgs[0].Params)
}

func TestModeChannelKeyRejectsWhitespace(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.handleJoin(alice, []string{"#chat"})
	ch := s.channels["#chat"]

	alice.outBuf = nil
	s.setChannelMode(alice, ch, "+k", "has space")
	require.False(t, ch.hasKey())
	msgs := linesSent(t, alice)
	require.Len(t, msgs, 1)
	require.Equal(t, errKeySet, msgs[0].Command)
}

func TestPrivmsgToChannelRequiresMembership(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.channels["#chat"] = newChannel("#chat", 0)

	alice.outBuf = nil
	s.handlePrivmsg(alice, []string{"#chat", "hi"})
	msgs := linesSent(t, alice)
	require.Len(t, msgs, 1)
	require.Equal(t, errCannotSendToChan, msgs[0].Command)
}

func TestTopicSetAndQuery(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")
	s.handleJoin(alice, []string{"#chat"})
	s.handleJoin(bob, []string{"#chat"})

	alice.outBuf, bob.outBuf = nil, nil
	s.handleTopic(alice, []string{"#chat", "welcome here"})

	ch := s.channels["#chat"]
	require.True(t, ch.hasTopic())
	require.Equal(t, "welcome here", ch.topic)

	msgs := linesSent(t, bob)
	require.Len(t, msgs, 1)
	require.Equal(t, "TOPIC", msgs[0].Command)
	require.Equal(t, []string{"#chat", "welcome here"}, msgs[0].Params)

	bob.outBuf = nil
	s.handleTopic(bob, []string{"#chat"})
	bobMsgs := linesSent(t, bob)
	require.Len(t, bobMsgs, 2)
	require.Equal(t, rplTopic, bobMsgs[0].Command)
}

func TestTopicRestrictedRequiresOperator(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")
	s.handleJoin(alice, []string{"#chat"})
	s.handleJoin(bob, []string{"#chat"})

	ch := s.channels["#chat"]
	alice.outBuf = nil
	s.setChannelMode(alice, ch, "+t", "")

	bob.outBuf = nil
	s.handleTopic(bob, []string{"#chat", "not allowed"})
	msgs := linesSent(t, bob)
	require.Len(t, msgs, 1)
	require.Equal(t, errChanOpPrivsNeeded, msgs[0].Command)
	require.False(t, ch.hasTopic())
}

func TestInviteGrantsEntryPastInviteOnly(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	carol := newTestClientRegistered(s, "carol")
	s.handleJoin(alice, []string{"#chat"})

	ch := s.channels["#chat"]
	alice.outBuf = nil
	s.setChannelMode(alice, ch, "+i", "")

	carol.outBuf = nil
	s.handleJoin(carol, []string{"#chat"})
	msgs := linesSent(t, carol)
	require.Len(t, msgs, 1)
	require.Equal(t, errInviteOnlyChan, msgs[0].Command)
	require.False(t, ch.isMember(carol))

	alice.outBuf, carol.outBuf = nil, nil
	s.handleInvite(alice, []string{"carol", "#chat"})
	aliceMsgs := linesSent(t, alice)
	require.Len(t, aliceMsgs, 1)
	require.Equal(t, rplInviting, aliceMsgs[0].Command)
	carolMsgs := linesSent(t, carol)
	require.Len(t, carolMsgs, 1)
	require.Equal(t, "INVITE", carolMsgs[0].Command)

	carol.outBuf = nil
	s.handleJoin(carol, []string{"#chat"})
	require.True(t, ch.isMember(carol))
}

func TestJoinRejectsWrongChannelKey(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")
	s.handleJoin(alice, []string{"#chat"})

	ch := s.channels["#chat"]
	alice.outBuf = nil
	s.setChannelMode(alice, ch, "+k", "secret")

	bob.outBuf = nil
	s.handleJoin(bob, []string{"#chat", "wrong"})
	msgs := linesSent(t, bob)
	require.Len(t, msgs, 1)
	require.Equal(t, errBadChannelKey, msgs[0].Command)
	require.False(t, ch.isMember(bob))

	bob.outBuf = nil
	s.handleJoin(bob, []string{"#chat", "secret"})
	require.True(t, ch.isMember(bob))
}

func TestNickCollisionRejected(t *testing.T) {
	s := newTestServer()
	newTestClientRegistered(s, "alice")
	bob := newTestClientRegistered(s, "bob")

	bob.outBuf = nil
	s.handleNick(bob, []string{"alice"})
	msgs := linesSent(t, bob)
	require.Len(t, msgs, 1)
	require.Equal(t, errNicknameInUse, msgs[0].Command)
	require.Equal(t, "bob", bob.Nick)
}

func TestDisconnectClearsEmptyChannelsAndClientMap(t *testing.T) {
	s := newTestServer()
	alice := newTestClientRegistered(s, "alice")
	s.handleJoin(alice, []string{"#chat"})

	s.disconnect(alice, "test teardown")
	require.NotContains(t, s.clients, alice.fd)
	require.NotContains(t, s.channels, "#chat")
}
