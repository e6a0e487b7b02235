package ircd

// event is one readiness notification from the poller.
type event struct {
	fd       int32
	readable bool
	writable bool
	hangup   bool
}

// poller abstracts the OS readiness facility (epoll on Linux). The
// server polls once per iteration and reacts to whatever comes back;
// nothing here blocks on an individual connection.
type poller interface {
	// add registers fd for read (and, if wantWrite, write) readiness.
	add(fd int32, wantWrite bool) error

	// modify changes which events fd is registered for.
	modify(fd int32, wantWrite bool) error

	// remove deregisters fd. It is harmless to call on an fd already gone.
	remove(fd int32)

	// wait blocks up to timeoutMS milliseconds for at least one event.
	wait(timeoutMS int) ([]event, error)

	// close releases the poller's own resources (not the watched fds).
	close() error
}

// transport abstracts raw socket I/O on a single fd. The production
// implementation (see poller_linux.go) wraps the unix.Read/Write/Close
// syscalls directly; tests substitute an in-memory fake so they never
// touch a real file descriptor.
type transport interface {
	read(fd int32, buf []byte) (int, error)
	write(fd int32, buf []byte) (int, error)
	close(fd int32)
	wouldBlock(err error) bool
}
