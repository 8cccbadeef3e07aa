//go:build linux
// +build linux

package capture

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ETHALL htons(ETH_P_ALL)
const ETHALL uint16 = unix.ETH_P_ALL<<8 | unix.ETH_P_ALL>>8

// readTimeout bounds a single recvfrom so Close can take the socket
// from a blocked reader.
const readTimeout = 200 * time.Millisecond

// NewPlatformProvider returns the provider used when Options.Provider is nil.
func NewPlatformProvider() Provider {
	return NewPacketSocketProvider()
}

// PacketSocketProvider captures through a linux AF_PACKET socket.
// The socket is SOCK_DGRAM so the kernel strips the link layer header
// and reads return the network layer packet.
type PacketSocketProvider struct {
	// Read holds mu for reading during one recvfrom, everything else locks it.
	mu      sync.RWMutex
	fd      int
	ifindex int
}

func NewPacketSocketProvider() *PacketSocketProvider {
	return &PacketSocketProvider{fd: -1}
}

func (p *PacketSocketProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd != -1 {
		return nil
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, int(ETHALL))
	if err != nil {
		return errors.Wrap(err, "socket af_packet")
	}
	return p.adopt(fd)
}

// adopt takes ownership of fd. Called with mu held.
func (p *PacketSocketProvider) adopt(fd int) error {
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "setsockopt SO_RCVTIMEO")
	}
	p.fd = fd
	return nil
}

func (p *PacketSocketProvider) ResolveBindAddress(iface string) (BindAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd == -1 {
		return BindAddress{}, errors.Wrap(unix.EBADF, "socket not open")
	}
	ifr, err := p.ifreq(iface, unix.SIOCGIFINDEX)
	if err != nil {
		return BindAddress{}, newError(InterfaceNotFound, iface, err)
	}
	p.ifindex = int(ifr.Uint32())
	return BindAddress{Name: iface, Index: p.ifindex}, nil
}

func (p *PacketSocketProvider) Bind(addr BindAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd == -1 {
		return unix.EBADF
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: ETHALL,
		Ifindex:  addr.Index,
	}
	return unix.Bind(p.fd, sa)
}

// SetPromiscuous flips IFF_PROMISC in the interface flags.
// If reading the flags succeeds but writing them back fails the flags are left as they are.
func (p *PacketSocketProvider) SetPromiscuous(iface string, enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ifr, err := p.ifreq(iface, unix.SIOCGIFFLAGS)
	if err != nil {
		return errors.Wrap(err, "unable to get interface flags")
	}

	flags := ifr.Uint16()
	if enable {
		flags |= unix.IFF_PROMISC
	} else {
		flags &^= unix.IFF_PROMISC
	}
	ifr.SetUint16(flags)

	if err := unix.IoctlIfreq(p.fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return errors.Wrap(err, "unable to set promisc mode")
	}
	return nil
}

// Read blocks until a packet arrives or the socket is closed, in which case
// it returns net.ErrClosed.
func (p *PacketSocketProvider) Read(b []byte) (int, error) {
	for {
		p.mu.RLock()
		if p.fd == -1 {
			p.mu.RUnlock()
			return 0, net.ErrClosed
		}
		n, _, err := unix.Recvfrom(p.fd, b, 0)
		p.mu.RUnlock()

		switch err {
		case nil:
			return n, nil
		case unix.EINTR, unix.EAGAIN:
			continue
		}
		return 0, errors.Wrap(err, "recvfrom")
	}
}

// Close closes the underlying socket. A blocked Read gives up the socket
// within readTimeout and then returns net.ErrClosed.
func (p *PacketSocketProvider) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd != -1 {
		err = unix.Close(p.fd)
		p.fd = -1
	}
	return
}

func (p *PacketSocketProvider) String() string {
	return fmt.Sprintf("af_packet(ifindex=%d)", p.ifindex)
}

func (p *PacketSocketProvider) ifreq(iface string, req uint) (*unix.Ifreq, error) {
	if p.fd == -1 {
		return nil, unix.EBADF
	}
	ifr, err := unix.NewIfreq(iface)
	if err != nil {
		return nil, err
	}
	if err := unix.IoctlIfreq(p.fd, req, ifr); err != nil {
		return nil, err
	}
	return ifr, nil
}
