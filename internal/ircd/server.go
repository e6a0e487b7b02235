// Package ircd implements the single-threaded IRC server core: wire
// dispatch, channel and client bookkeeping, and the epoll-driven event
// loop. Nothing in this package takes a lock; all state is owned by the
// goroutine running Server.Run, and the admin HTTP surface (see admin.go)
// only ever reads a snapshot handed to it over a channel.
package ircd

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// readBufSize is how much we attempt to read from a ready client fd
	// per iteration, mirroring the original server's fixed-size recv buffer.
	readBufSize = 4096

	// pollTimeoutMS bounds how long a single poll can block, so the
	// server still gets a chance to notice signals and sweep state even
	// under a quiet network.
	pollTimeoutMS = 1000
)

// Server holds all shared IRC server state.
type Server struct {
	name       string
	password   string
	launchTime time.Time
	hostname   string
	motd       []string

	listenFD int32
	poll     poller
	io       transport

	clients  map[int32]*Client
	channels map[string]*Channel

	log *logrus.Logger

	// metrics, if non-nil, is fed the accepted-connection counter; see
	// metrics.go. It is optional so tests can run without a prometheus
	// registry.
	metrics *serverMetrics

	// snapshotCh serves read-only Server snapshots to the admin HTTP
	// goroutine; see admin.go. Server.Snapshot sends on it from that
	// goroutine; only Run's select receives from it.
	snapshotCh chan chan Snapshot

	shutdown chan struct{}
}

// Config is the set of values needed to construct a Server. See
// config.go for how these are loaded from disk/environment.
type Config struct {
	Port     int
	Password string
	Name     string
	MOTD     []string
}

// NewServer constructs a Server ready to have Run called on it.
func NewServer(cfg Config, log *logrus.Logger) *Server {
	name := cfg.Name
	if name == "" {
		name = lookupHostname()
	}
	return &Server{
		name:       name,
		password:   cfg.Password,
		launchTime: time.Now(),
		hostname:   name,
		motd:       cfg.MOTD,
		clients:    make(map[int32]*Client),
		channels:   make(map[string]*Channel),
		io:         unixTransport{},
		log:        log,
		snapshotCh: make(chan chan Snapshot),
		shutdown:   make(chan struct{}),
	}
}

// lookupHostname reads the machine's hostname from the first line of
// /etc/hostname, falling back to "localhost" if it cannot be determined.
func lookupHostname() string {
	data, err := os.ReadFile("/etc/hostname")
	if err != nil {
		return "localhost"
	}
	h := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if h == "" {
		return "localhost"
	}
	return h
}

// Stop asks Run to return after its current iteration.
func (s *Server) Stop() {
	close(s.shutdown)
}

// Run listens on the configured port and drives the event loop until
// Stop is called or an unrecoverable error occurs. It returns nil once a
// Stop-triggered shutdown has completed, and a non-nil error if listening
// or polling fails; callers should log a non-nil error and exit.
func (s *Server) Run(port int) error {
	lfd, err := listen(port)
	if err != nil {
		return err
	}
	s.listenFD = lfd
	defer rawClose(lfd)

	p, err := newPoller()
	if err != nil {
		return err
	}
	s.poll = p
	defer p.close()

	if err := p.add(lfd, false); err != nil {
		return err
	}

	s.log.WithField("port", port).Info("ircd listening")

	for {
		select {
		case <-s.shutdown:
			s.log.Info("shutting down")
			s.shutdownAll()
			return nil
		case reply := <-s.snapshotCh:
			reply <- s.snapshot()
			continue
		default:
		}

		events, err := p.wait(pollTimeoutMS)
		if err != nil {
			return err
		}

		for _, ev := range events {
			if ev.fd == s.listenFD {
				s.acceptAll()
				continue
			}
			s.handleEvent(ev)
		}

		s.sweep()
	}
}

// acceptAll drains every pending connection on the listening socket, so
// one readiness notification handles a whole batch of arrivals.
func (s *Server) acceptAll() {
	for {
		fd, host, err := acceptNonblocking(s.listenFD)
		if err != nil {
			if !isWouldBlock(err) {
				s.log.WithError(err).Warn("accept failed")
			}
			return
		}

		if err := s.poll.add(fd, false); err != nil {
			s.log.WithError(err).Warn("failed to register client fd with poller")
			rawClose(fd)
			continue
		}

		c := newClient(fd, host, s.password != "")
		s.clients[fd] = c
		if s.metrics != nil {
			s.metrics.connectionsTotal.Inc()
		}
		s.log.WithFields(logrus.Fields{"fd": fd, "host": host, "conn_id": c.connID}).Info("accepted connection")
	}
}

// handleEvent reacts to one readiness notification for a client fd:
// hangups disconnect immediately, readability triggers a read-and-
// dispatch pass, and writability flushes any queued output.
func (s *Server) handleEvent(ev event) {
	c, ok := s.clients[ev.fd]
	if !ok {
		return
	}

	if ev.hangup {
		s.disconnect(c, "Connection reset by peer")
		return
	}

	if ev.readable {
		s.readClient(c)
		if c.disconnected {
			return
		}
	}

	if ev.writable || len(c.outBuf) > 0 {
		s.flush(c)
	}
}

// readClient drains everything currently available on c's socket,
// extracts complete lines, and dispatches each one in turn.
func (s *Server) readClient(c *Client) {
	buf := make([]byte, readBufSize)
	for {
		n, err := s.io.read(c.fd, buf)
		if n > 0 {
			c.inBuf = append(c.inBuf, buf[:n]...)
		}
		if err != nil {
			if s.io.wouldBlock(err) {
				break
			}
			s.disconnect(c, "Connection reset by peer")
			return
		}
		if n == 0 {
			s.disconnect(c, "Connection closed")
			return
		}
		if n < len(buf) {
			// Socket had less than a full buffer ready; rather than loop
			// again immediately, let the next readiness notification
			// bring more.
			break
		}
	}

	lines, rest := extractLines(c.inBuf)
	c.inBuf = rest

	for _, line := range lines {
		s.dispatchLine(c, line)
		if c.disconnected {
			return
		}
	}
}

// flush writes as much of c's pending output as the socket will accept
// right now, re-arming for EPOLLOUT if any remains.
func (s *Server) flush(c *Client) {
	for len(c.outBuf) > 0 {
		n, err := s.io.write(c.fd, c.outBuf)
		if n > 0 {
			c.outBuf = c.outBuf[n:]
		}
		if err != nil {
			if s.io.wouldBlock(err) {
				break
			}
			s.disconnect(c, "Connection reset by peer")
			return
		}
		if n == 0 {
			break
		}
	}

	if s.poll != nil {
		_ = s.poll.modify(c.fd, len(c.outBuf) > 0)
	}
}

// disconnect tears down a client: it is removed from every channel it
// was on (destroying any channel left empty), removed from the poller
// and client map, and its fd is closed. reason is sent as a QUIT to
// anyone who shared a channel with it, if it had registered, and as an
// ERROR to the client itself before its fd is closed.
func (s *Server) disconnect(c *Client, reason string) {
	if c.disconnected {
		return
	}
	c.disconnected = true

	s.send(c, "ERROR", reason)

	if c.registered {
		notified := make(map[int32]bool)
		for _, ch := range c.channels {
			for _, member := range ch.members {
				if member.fd == c.fd || notified[member.fd] {
					continue
				}
				notified[member.fd] = true
				s.sendFrom(member, c, "QUIT", reason)
			}
		}
	}

	for name, ch := range c.channels {
		ch.removeMember(c)
		if ch.isEmpty() {
			delete(s.channels, name)
		}
	}

	s.flushBeforeClose(c)

	if s.poll != nil {
		s.poll.remove(c.fd)
	}
	delete(s.clients, c.fd)
	s.io.close(c.fd)

	s.log.WithFields(logrus.Fields{"fd": c.fd, "conn_id": c.connID, "reason": reason}).Info("client disconnected")
}

// flushBeforeClose makes a best-effort attempt to write out c's pending
// output (in particular the ERROR line disconnect just queued) before
// its fd is closed. Unlike flush, it never re-arms the poller or
// recurses into disconnect: the fd is going away regardless of outcome.
func (s *Server) flushBeforeClose(c *Client) {
	for len(c.outBuf) > 0 {
		n, err := s.io.write(c.fd, c.outBuf)
		if n > 0 {
			c.outBuf = c.outBuf[n:]
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// shutdownAll notifies every connected client that the server is going
// away, closes their sockets, and clears the client and channel
// registries. Called once, from Run, when Stop is invoked.
func (s *Server) shutdownAll() {
	for _, c := range s.clients {
		s.send(c, "ERROR", "Server is shutting down")
		s.flushBeforeClose(c)
		s.io.close(c.fd)
	}
	s.clients = make(map[int32]*Client)
	s.channels = make(map[string]*Channel)
}

// sweep gives the server a chance to notice state invalidated mid-batch
// (for example a command handler that disconnected a client directly
// rather than through a socket error) before the next poll.
func (s *Server) sweep() {
	for _, c := range s.clients {
		if c.disconnected {
			if s.poll != nil {
				s.poll.remove(c.fd)
			}
			delete(s.clients, c.fd)
			s.io.close(c.fd)
		}
	}
	for name, ch := range s.channels {
		if ch.isEmpty() {
			delete(s.channels, name)
		}
	}
}

func (s *Server) findClientByNick(nick string) *Client {
	for _, c := range s.clients {
		if c.Nick == nick {
			return c
		}
	}
	return nil
}

func (s *Server) nickInUse(nick string) bool {
	return s.findClientByNick(nick) != nil
}
