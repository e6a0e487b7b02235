//go:build linux

package ircd

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the real readiness facility: a single epoll instance
// shared by every connection, listener included. This is the one place
// in the server that talks to the kernel's readiness machinery directly.
type epollPoller struct {
	epfd int
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd}, nil
}

func eventsFor(wantWrite bool) uint32 {
	ev := uint32(unix.EPOLLIN)
	if wantWrite {
		ev |= uint32(unix.EPOLLOUT)
	}
	return ev
}

func (p *epollPoller) add(fd int32, wantWrite bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &unix.EpollEvent{
		Events: eventsFor(wantWrite),
		Fd:     fd,
	})
}

func (p *epollPoller) modify(fd int32, wantWrite bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &unix.EpollEvent{
		Events: eventsFor(wantWrite),
		Fd:     fd,
	})
}

func (p *epollPoller) remove(fd int32) {
	// Best effort: the fd may already be closed, which removes it from
	// the epoll set implicitly and makes this call fail harmlessly.
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (p *epollPoller) wait(timeoutMS int) ([]event, error) {
	raw := make([]unix.EpollEvent, 256)
	n, err := unix.EpollWait(p.epfd, raw, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	events := make([]event, 0, n)
	for i := 0; i < n; i++ {
		e := raw[i]
		events = append(events, event{
			fd:       e.Fd,
			readable: e.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: e.Events&unix.EPOLLOUT != 0,
			hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0,
		})
	}
	return events, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

// listen creates a non-blocking TCP listening socket bound to port on
// all interfaces, using raw syscalls so its fd can be registered with
// the epoll instance directly alongside client connections.
func listen(port int) (int32, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return int32(fd), nil
}

func acceptNonblocking(listenFD int32) (int32, string, error) {
	nfd, sa, err := unix.Accept4(int(listenFD), unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, "", err
	}
	host := ""
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		host = ipString(in4.Addr)
	}
	return int32(nfd), host, nil
}

func ipString(b [4]byte) string {
	return itoa(b[0]) + "." + itoa(b[1]) + "." + itoa(b[2]) + "." + itoa(b[3])
}

func itoa(b byte) string {
	if b < 10 {
		return string(rune('0' + b))
	}
	const digits = "0123456789"
	if b < 100 {
		return string([]byte{digits[b/10], digits[b%10]})
	}
	return string([]byte{digits[b/100], digits[b/10%10], digits[b%10]})
}

func rawRead(fd int32, buf []byte) (int, error) {
	return unix.Read(int(fd), buf)
}

func rawWrite(fd int32, buf []byte) (int, error) {
	return unix.Write(int(fd), buf)
}

func rawClose(fd int32) {
	_ = unix.Close(int(fd))
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// unixTransport is the production transport: direct syscalls on raw
// fds, exactly what accept/listen above hand out.
type unixTransport struct{}

func (unixTransport) read(fd int32, buf []byte) (int, error)  { return rawRead(fd, buf) }
func (unixTransport) write(fd int32, buf []byte) (int, error) { return rawWrite(fd, buf) }
func (unixTransport) close(fd int32)                          { rawClose(fd) }
func (unixTransport) wouldBlock(err error) bool                { return isWouldBlock(err) }
