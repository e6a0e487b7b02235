// Package bot implements a small demo client that connects to the
// server like any other user: it accepts invites, remembers the
// channels it is invited into, and watches for a short list of trigger
// words in those channels.
package bot

import (
	"strings"

	"github.com/lrstanley/girc"
	"github.com/sirupsen/logrus"
)

// triggerWords are scanned for case-insensitively in every message the
// bot sees in a channel it has joined. Kept private to this package so
// the core server never has to know about it.
var triggerWords = []string{
	"shit", "piss", "fuck", "cunt", "cocksucker", "motherfucker", "tits",
}

// Config holds the connection parameters for Bot.
type Config struct {
	Server   string
	Port     int
	Password string
	Nick     string
	User     string
	Name     string
}

// Bot wraps a girc.Client, tracking which channels it has been invited
// into so it can forget them again if kicked.
type Bot struct {
	client   *girc.Client
	log      *logrus.Logger
	channels map[string]bool
}

// New constructs a Bot ready to have Run called on it.
func New(cfg Config, log *logrus.Logger) *Bot {
	client := girc.New(girc.Config{
		Server:     cfg.Server,
		Port:       cfg.Port,
		ServerPass: cfg.Password,
		Nick:       cfg.Nick,
		User:       cfg.User,
		Name:       cfg.Name,
		MaxRetries: 3,
	})

	b := &Bot{
		client:   client,
		log:      log,
		channels: make(map[string]bool),
	}

	client.Handlers.Add(girc.INVITE, b.onInvite)
	client.Handlers.Add(girc.KICK, b.onKick)
	client.Handlers.Add(girc.PRIVMSG, b.onPrivmsg)

	return b
}

// Run connects the bot and blocks, processing events, until the
// connection is closed.
func (b *Bot) Run() error {
	if err := b.client.Connect(); err != nil {
		return err
	}
	b.client.Loop()
	return nil
}

// onInvite joins the channel it was invited to and remembers it.
func (b *Bot) onInvite(c *girc.Client, e girc.Event) {
	if len(e.Params) < 2 {
		return
	}
	channel := e.Params[1]
	b.channels[channel] = true
	c.Cmd.Join(channel)
	b.log.WithField("channel", channel).Info("invited, joining")
}

// onKick forgets the channel if it is the bot itself being kicked.
func (b *Bot) onKick(c *girc.Client, e girc.Event) {
	if len(e.Params) < 2 {
		return
	}
	channel, kicked := e.Params[0], e.Params[1]
	if !strings.EqualFold(kicked, c.GetNick()) {
		return
	}
	delete(b.channels, channel)
	b.log.WithField("channel", channel).Info("kicked, forgetting channel")
}

// onPrivmsg scans messages in channels the bot remembers for a trigger
// word and replies with a warning if one is found.
func (b *Bot) onPrivmsg(c *girc.Client, e girc.Event) {
	if len(e.Params) == 0 {
		return
	}
	channel := e.Params[0]
	if !b.channels[channel] {
		return
	}

	lower := strings.ToLower(e.Trailing)
	for _, word := range triggerWords {
		if strings.Contains(lower, word) {
			c.Cmd.Message(channel, "NO, BAD WORD!")
			return
		}
	}
}
