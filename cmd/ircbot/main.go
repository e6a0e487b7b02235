// Command ircbot runs the demo client bot against a running server.
package main

import (
	"flag"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/relaycore/ircd/internal/bot"
)

func main() {
	server := flag.String("server", "localhost", "server hostname to connect to")
	port := flag.Int("port", 6667, "server port to connect to")
	password := flag.String("password", "", "server password, if the server requires one")
	nick := flag.String("nick", "botwatch", "nickname to register as")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	b := bot.New(bot.Config{
		Server:   *server,
		Port:     *port,
		Password: *password,
		Nick:     *nick,
		User:     *nick,
		Name:     "Channel watch bot",
	}, logger)

	if err := b.Run(); err != nil {
		log.Fatalf("bot exited: %s", err)
	}
}
