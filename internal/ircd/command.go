package ircd

import (
	"fmt"
	"strings"
	"time"

	"github.com/relaycore/ircd/internal/irc"
)

// handlerFunc implements one IRC command. args are the message's
// parameters with the command name itself already stripped.
type handlerFunc func(s *Server, c *Client, args []string)

type commandSpec struct {
	requiresReg bool
	min, max    int
	handler     handlerFunc
}

// commands is the dispatch table. Names are matched case-insensitively.
var commands = map[string]commandSpec{
	"PASS":    {false, 1, 1, (*Server).handlePass},
	"NICK":    {false, 1, 2, (*Server).handleNick},
	"USER":    {false, 4, 4, (*Server).handleUser},
	"CAP":     {false, 0, 3, (*Server).handleCap},
	"PING":    {false, 1, 1, (*Server).handlePing},
	"PONG":    {false, 0, 2, (*Server).handlePong},
	"QUIT":    {false, 0, 1, (*Server).handleQuit},
	"JOIN":    {true, 1, 2, (*Server).handleJoin},
	"PART":    {true, 1, 2, (*Server).handlePart},
	"PRIVMSG": {true, 1, 2, (*Server).handlePrivmsg},
	"NOTICE":  {true, 1, 2, (*Server).handleNotice},
	"TOPIC":   {true, 1, 2, (*Server).handleTopic},
	"KICK":    {true, 2, 3, (*Server).handleKick},
	"INVITE":  {true, 2, 2, (*Server).handleInvite},
	"MODE":    {true, 1, 3, (*Server).handleMode},
	"NAMES":   {true, 1, 1, (*Server).handleNames},
	"LIST":    {true, 0, 1, (*Server).handleList},
	"LUSERS":  {true, 0, 1, (*Server).handleLusers},
	"MOTD":    {true, 0, 1, (*Server).handleMotd},
	"WHO":     {true, 0, 2, (*Server).handleWho},
}

// dispatchLine parses a raw line and sends it to the appropriate
// handler, applying the common registration and parameter-count checks
// every handler in the original design relies on.
func (s *Server) dispatchLine(c *Client, line string) {
	msg, err := irc.Parse(line)
	if err != nil {
		s.log.WithError(err).Warn("dropping oversized message")
		return
	}
	if msg.Command == "" {
		return
	}

	name := strings.ToUpper(msg.Command)
	spec, ok := commands[name]
	if !ok {
		s.numeric(c, errUnknownCommand, name, ":Unknown command")
		s.log.WithField("command", name).Warn("unimplemented command")
		return
	}

	if spec.requiresReg && !c.registered {
		s.numeric(c, errNotRegistered, ":You have not registered")
		return
	}
	if len(msg.Params) < spec.min || len(msg.Params) > spec.max {
		s.numeric(c, errNeedMoreParams, name, ":Not enough parameters")
		return
	}

	spec.handler(s, c, msg.Params)
}

// completeRegistration sends the welcome sequence once PASS (if
// required), NICK, and USER have all been satisfied. It is idempotent
// in the sense that each handler only calls it the first time its own
// piece becomes available.
func (s *Server) completeRegistration(c *Client) {
	if c.Nick == "" || c.user == "" || !c.passValid {
		return
	}

	c.registered = true

	s.numeric(c, rplWelcome, fmt.Sprintf(":Welcome to the %s Network %s", s.name, c.fullname()))
	s.numeric(c, rplYourHost, fmt.Sprintf(":Your host is %s, running version 1.0", s.name))
	s.numeric(c, rplCreated, fmt.Sprintf(":This server was created %s", s.launchTime.Format(time.RFC1123)))
	s.numeric(c, rplMyInfo, fmt.Sprintf(":%s Version 1.0", s.name))
	s.numeric(c, rplISupport, "CASEMAPPING=ascii", ":are supported by this server")

	s.handleLusers(c, nil)
	s.handleMotd(c, nil)
}

func (s *Server) handlePass(c *Client, args []string) {
	if c.registered {
		s.numeric(c, errAlreadyRegistred, ":You may not reregister")
		return
	}

	wasValid := c.passValid
	if args[0] != s.password {
		c.passValid = false
		s.numeric(c, errPasswdMismatch, ":Password incorrect")
		s.disconnect(c, "Incorrect password")
		return
	}

	c.passValid = true
	if !wasValid {
		s.completeRegistration(c)
	}
}

func (s *Server) handleNick(c *Client, args []string) {
	if !c.passValid {
		s.numeric(c, errPasswdMismatch, ":Password incorrect")
		return
	}
	newNick := args[0]
	if len(args) > 1 {
		s.numeric(c, errErroneousNick, newNick, ":Erroneous nickname")
		return
	}
	if s.nickInUse(newNick) {
		s.numeric(c, errNicknameInUse, newNick, ":Nickname is already in use")
		return
	}
	if !isValidNick(newNick) {
		s.numeric(c, errErroneousNick, newNick, ":Erroneous nickname")
		return
	}

	if c.registered {
		s.send(c, "NICK", newNick)
		notified := make(map[int32]bool)
		for _, ch := range c.channels {
			for _, member := range ch.members {
				if member.fd == c.fd || notified[member.fd] {
					continue
				}
				notified[member.fd] = true
				s.sendFrom(member, c, "NICK", newNick)
			}
		}
	}

	alreadyHadNick := c.Nick != ""
	c.Nick = newNick
	if !alreadyHadNick {
		s.completeRegistration(c)
	}
}

func (s *Server) handleUser(c *Client, args []string) {
	if !c.passValid {
		s.numeric(c, errPasswdMismatch, ":Password incorrect")
		return
	}
	if c.registered {
		s.numeric(c, errAlreadyRegistred, ":You may not reregister")
		return
	}

	alreadySubmitted := c.user != "" || c.realname != ""
	if args[0] == "" {
		s.numeric(c, errNeedMoreParams, "USER", ":Not enough parameters")
		return
	}
	c.setUser(args[0], args[3])

	if !alreadySubmitted {
		s.completeRegistration(c)
	}
}

// handleCap silently accepts capability negotiation without advertising
// any capabilities, so clients that speak IRCv3 do not stall waiting for
// a reply they will never get a meaningful answer to.
func (s *Server) handleCap(c *Client, args []string) {}

func (s *Server) handlePing(c *Client, args []string) {
	token := args[0]
	if token == "" {
		s.numeric(c, errNoOrigin, ":No origin specified")
		return
	}
	s.send(c, "PONG", token)
}

// handlePong is silently accepted; the server never solicits a PONG of
// its own, but does not want to warn about clients sending keepalives
// proactively.
func (s *Server) handlePong(c *Client, args []string) {}

func (s *Server) handleQuit(c *Client, args []string) {
	reason := "Client exited the server"
	if len(args) == 1 && args[0] != "" {
		reason = args[0]
	}
	s.disconnect(c, reason)
}

func (s *Server) handleJoin(c *Client, args []string) {
	if args[0] == "0" && len(args) == 1 {
		for name, ch := range c.channels {
			for _, member := range ch.members {
				s.sendFrom(member, c, "PART", name, "")
			}
			ch.removeMember(c)
			if ch.isEmpty() {
				delete(s.channels, name)
			}
		}
		c.channels = make(map[string]*Channel)
		return
	}

	names := strings.Split(args[0], ",")
	var keys []string
	if len(args) == 2 {
		keys = strings.Split(args[1], ",")
	}

	for i, name := range names {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		if !isValidChannel(name) {
			s.numeric(c, errNoSuchChannel, name, ":No such channel")
			continue
		}

		ch, existed := s.channels[name]
		if !existed {
			ch = newChannel(name, time.Now().Unix())
			s.channels[name] = ch
		}

		if ch.isMember(c) {
			continue
		}
		if !ch.checkKey(key) {
			s.numeric(c, errBadChannelKey, name, ":Cannot join channel (+k)")
			continue
		}
		if ch.isFull() {
			s.numeric(c, errChannelIsFull, name, ":Cannot join channel (+l)")
			continue
		}
		if ch.inviteOnly && !ch.isInvited(c.Nick) {
			s.numeric(c, errInviteOnlyChan, name, ":Cannot join channel (+i)")
			continue
		}

		ch.addMember(c)
		if !existed {
			ch.addOperator(c)
		}
		c.joinChannel(ch)

		s.sendFrom(c, c, "JOIN", name)

		if ch.hasTopic() {
			s.numeric(c, rplTopic, name, ":"+ch.topic)
			s.numeric(c, rplTopicWhoTime, name, fmt.Sprintf("%s %d", ch.topicSetBy, ch.topicSetAt))
		}

		s.sendNames(c, ch)
		s.numeric(c, rplEndOfNames, name, ":End of /NAMES list")

		for _, member := range ch.members {
			if member.fd == c.fd {
				continue
			}
			s.sendFrom(member, c, "JOIN", name)
		}
	}
}

func (s *Server) sendNames(c *Client, ch *Channel) {
	names := make([]string, 0, len(ch.members))
	for _, member := range ch.members {
		prefix := ""
		if ch.isOperator(member) {
			prefix = "@"
		}
		names = append(names, prefix+member.Nick)
	}
	s.numeric(c, rplNamReply, "=", ch.Name, ":"+strings.Join(names, " "))
}

func (s *Server) handlePart(c *Client, args []string) {
	reason := ""
	if len(args) == 2 {
		reason = args[1]
	}

	for _, name := range strings.Split(args[0], ",") {
		ch, ok := s.channels[name]
		if !ok {
			s.numeric(c, errNoSuchChannel, name, ":No such channel")
			continue
		}
		if !ch.isMember(c) {
			s.numeric(c, errNotOnChannel, name, ":You're not on that channel")
			continue
		}

		ch.removeMember(c)
		c.partChannel(name)

		s.sendFrom(c, c, "PART", name)
		for _, member := range ch.members {
			s.sendFrom(member, c, "PART", name, reason)
		}
		if ch.isEmpty() {
			delete(s.channels, name)
		}
	}
}

func (s *Server) handlePrivmsg(c *Client, args []string) {
	s.relay(c, "PRIVMSG", args, true)
}

func (s *Server) handleNotice(c *Client, args []string) {
	s.relay(c, "NOTICE", args, false)
}

// relay implements both PRIVMSG and NOTICE, which share target
// resolution and broadcast logic and differ only in whether errors are
// reported back to the sender.
func (s *Server) relay(c *Client, command string, args []string, reportErrors bool) {
	message := ""
	if len(args) == 2 {
		message = args[1]
	}

	for _, target := range strings.Split(args[0], ",") {
		if isValidChannel(target) {
			ch, ok := s.channels[target]
			if !ok {
				if reportErrors {
					s.numeric(c, errCannotSendToChan, target, ":Cannot send to channel")
				}
				continue
			}
			if !ch.isMember(c) {
				if reportErrors {
					s.numeric(c, errCannotSendToChan, target, ":Cannot send to channel (not a member)")
				}
				continue
			}
			for _, member := range ch.members {
				if member.fd == c.fd {
					continue
				}
				s.sendFrom(member, c, command, target, message)
			}
			continue
		}

		recipient := s.findClientByNick(target)
		if recipient == nil {
			if reportErrors {
				s.numeric(c, errNoSuchNick, target, ":No such nick/channel")
			}
			continue
		}
		s.sendFrom(recipient, c, command, target, message)
	}
}

func (s *Server) handleTopic(c *Client, args []string) {
	ch, ok := s.channels[args[0]]
	if !ok {
		s.numeric(c, errNoSuchChannel, args[0], ":No such channel")
		return
	}

	if len(args) == 1 {
		if !ch.isMember(c) {
			s.numeric(c, errNotOnChannel, ch.Name, ":You're not on that channel")
			return
		}
		if !ch.hasTopic() {
			s.numeric(c, rplNoTopic, ch.Name, ":No topic is set")
			return
		}
		s.numeric(c, rplTopic, ch.Name, ":"+ch.topic)
		s.numeric(c, rplTopicWhoTime, ch.Name, fmt.Sprintf("%s %d", ch.topicSetBy, ch.topicSetAt))
		return
	}

	if !ch.isMember(c) {
		s.numeric(c, errNotOnChannel, ch.Name, ":You're not on that channel")
		return
	}
	if ch.topicRestricted && !ch.isOperator(c) {
		s.numeric(c, errChanOpPrivsNeeded, ch.Name, ":You're not channel operator")
		return
	}

	ch.setTopic(args[1], c.Nick, time.Now().Unix())
	for _, member := range ch.members {
		s.sendFrom(member, c, "TOPIC", ch.Name, ch.topic)
	}
}

// maxKickReasonLength caps a KICK reason; unlike most parameters this
// one is truncated rather than rejected outright.
const maxKickReasonLength = 255

func (s *Server) handleKick(c *Client, args []string) {
	channelName, targetNick := args[0], args[1]
	reason := "No reason. I just kicked you for fun"
	if len(args) == 3 {
		reason = strings.TrimPrefix(args[2], ":")
	}
	if len(reason) > maxKickReasonLength {
		reason = reason[:maxKickReasonLength]
	}

	ch, ok := s.channels[channelName]
	if !ok {
		s.numeric(c, errNoSuchChannel, channelName, ":No such channel")
		return
	}
	if !ch.isMember(c) {
		s.numeric(c, errNotOnChannel, channelName, ":You're not on that channel")
		return
	}
	if !ch.isOperator(c) {
		s.numeric(c, errChanOpPrivsNeeded, channelName, ":You're not channel operator")
		return
	}

	target := s.findMemberByNick(ch, targetNick)
	if target == nil {
		s.numeric(c, errUserNotInChannel, targetNick, channelName, ":They aren't on that channel")
		return
	}

	for _, member := range ch.members {
		s.sendFrom(member, c, "KICK", channelName, targetNick, reason)
	}
	ch.removeMember(target)
	target.partChannel(channelName)
	if ch.isEmpty() {
		delete(s.channels, channelName)
	}
}

func (s *Server) findMemberByNick(ch *Channel, nick string) *Client {
	for _, member := range ch.members {
		if member.Nick == nick {
			return member
		}
	}
	return nil
}

func (s *Server) handleInvite(c *Client, args []string) {
	invitedNick, channelName := args[0], args[1]

	invited := s.findClientByNick(invitedNick)
	if invited == nil {
		s.numeric(c, errNoSuchNick, invitedNick, ":There was no such nickname")
		return
	}
	ch, ok := s.channels[channelName]
	if !ok {
		s.numeric(c, errNoSuchChannel, invitedNick, ":No such channel")
		return
	}
	if !ch.isMember(c) {
		s.numeric(c, errNotOnChannel, ch.Name, ":You're not on that channel")
		return
	}
	if ch.isMember(invited) {
		s.numeric(c, errUserOnChannel, invitedNick, ch.Name, ":is already on channel")
		return
	}
	if !ch.isOperator(c) {
		s.numeric(c, errChanOpPrivsNeeded, ch.Name, ":You're not channel operator")
		return
	}

	ch.addInvited(invitedNick)
	s.numeric(c, rplInviting, ch.Name, invitedNick)
	s.sendFrom(invited, c, "INVITE", invitedNick, ch.Name)
}

func (s *Server) handleNames(c *Client, args []string) {
	for _, name := range strings.Split(args[0], ",") {
		ch, ok := s.channels[name]
		if ok {
			s.sendNames(c, ch)
		}
		s.numeric(c, rplEndOfNames, name, ":End of /NAMES list")
	}
}

func (s *Server) handleList(c *Client, args []string) {
	s.numeric(c, rplListStart, "Channel :Users  Name")

	if len(args) == 0 {
		for _, ch := range s.channels {
			s.numeric(c, rplList, ch.Name, fmt.Sprintf("%d", ch.memberCount()), ":"+ch.topic)
		}
	} else {
		for _, name := range strings.Split(args[0], ",") {
			if ch, ok := s.channels[name]; ok {
				s.numeric(c, rplList, ch.Name, fmt.Sprintf("%d", ch.memberCount()), ":"+ch.topic)
			}
		}
	}

	s.numeric(c, rplListEnd, ":End of /LIST")
}

func (s *Server) handleLusers(c *Client, args []string) {
	s.numeric(c, rplLUserClient, fmt.Sprintf(":There are %d users and 0 invisible on 1 servers", len(s.clients)))
	s.numeric(c, rplLUserChannels, fmt.Sprintf("%d", len(s.channels)), ":channels formed")
	s.numeric(c, rplLUserMe, fmt.Sprintf(":I have %d clients and 1 servers", len(s.clients)))
}

func (s *Server) handleMotd(c *Client, args []string) {
	if len(args) == 1 {
		s.numeric(c, errNoSuchServer, args[0], ":No such server")
		return
	}
	s.numeric(c, rplMotdStart, fmt.Sprintf(":- %s Message of the day - ", s.name))
	for _, line := range s.motd {
		s.numeric(c, rplMotd, ":"+line)
	}
	s.numeric(c, rplEndOfMotd, ":End of /MOTD command.")
}

func (s *Server) handleWho(c *Client, args []string) {
	if len(args) == 0 {
		for _, other := range s.clients {
			if !other.registered {
				continue
			}
			channel := "*"
			for name := range other.channels {
				channel = name
				break
			}
			s.numeric(c, rplWhoReply, channel, other.user, other.host, s.name, other.Nick, "H", ":0 "+other.realname)
		}
	}
	target := "*"
	if len(args) > 0 {
		target = args[0]
	}
	s.numeric(c, rplEndOfWho, target, ":End of WHO list")
}
