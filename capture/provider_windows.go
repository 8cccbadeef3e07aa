//go:build windows
// +build windows

package capture

import (
	"fmt"
	"net"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/vearne/rawsniff/util"
)

const (
	sioRcvall = 0x98000001
	rcvallOff = 0
	rcvallOn  = 1
)

// NewPlatformProvider returns the provider used when Options.Provider is nil.
func NewPlatformProvider() Provider {
	return NewRawIPSocketProvider()
}

// RawIPSocketProvider captures through a raw IPv4 socket.
// The interface is identified by one of its IPv4 addresses.
type RawIPSocketProvider struct {
	mu     sync.Mutex
	fd     windows.Handle
	opened bool
	ip     net.IP
}

func NewRawIPSocketProvider() *RawIPSocketProvider {
	return &RawIPSocketProvider{fd: windows.InvalidHandle}
}

func (p *RawIPSocketProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		return nil
	}
	var data windows.WSAData
	if err := windows.WSAStartup(uint32(0x202), &data); err != nil {
		return errors.Wrap(err, "WSAStartup")
	}
	fd, err := windows.Socket(windows.AF_INET, windows.SOCK_RAW, windows.IPPROTO_IP)
	if err != nil {
		windows.WSACleanup()
		return errors.Wrap(err, "socket raw")
	}
	p.fd = fd
	p.opened = true
	return nil
}

// ResolveBindAddress parses iface as a dotted IPv4 address, there is no name lookup.
func (p *RawIPSocketProvider) ResolveBindAddress(iface string) (BindAddress, error) {
	if util.IsIPv6(iface) {
		return BindAddress{}, newError(InterfaceNotFound, iface,
			fmt.Errorf("%s: IPv6 not supported", iface))
	}
	if !util.IsIPv4(iface) {
		return BindAddress{}, newError(InterfaceNotFound, iface,
			fmt.Errorf("%q is not an IPv4 address", iface))
	}
	ip := net.ParseIP(iface).To4()
	p.mu.Lock()
	p.ip = ip
	p.mu.Unlock()
	return BindAddress{Name: iface, IP: ip}, nil
}

func (p *RawIPSocketProvider) Bind(addr BindAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return windows.ERROR_INVALID_HANDLE
	}
	sa := &windows.SockaddrInet4{}
	copy(sa.Addr[:], addr.IP.To4())
	return windows.Bind(p.fd, sa)
}

// SetPromiscuous toggles SIO_RCVALL, the socket then receives every IPv4 packet of the interface.
func (p *RawIPSocketProvider) SetPromiscuous(_ string, enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	value := uint32(rcvallOff)
	if enable {
		value = rcvallOn
	}
	var out uint32
	err := windows.WSAIoctl(p.fd, sioRcvall,
		(*byte)(unsafe.Pointer(&value)), uint32(unsafe.Sizeof(value)),
		nil, 0, &out, nil, 0)
	if err != nil {
		return errors.Wrap(err, "WSAIoctl SIO_RCVALL")
	}
	return nil
}

func (p *RawIPSocketProvider) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	// closesocket wakes a blocked WSARecv
	p.mu.Lock()
	fd, opened := p.fd, p.opened
	p.mu.Unlock()
	if !opened {
		return 0, net.ErrClosed
	}

	buf := windows.WSABuf{Len: uint32(len(b)), Buf: &b[0]}
	var n, flags uint32
	if err := windows.WSARecv(fd, &buf, 1, &n, &flags, nil, nil); err != nil {
		return 0, errors.Wrap(err, "WSARecv")
	}
	return int(n), nil
}

func (p *RawIPSocketProvider) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		err = windows.Closesocket(p.fd)
		windows.WSACleanup()
		p.fd = windows.InvalidHandle
		p.opened = false
	}
	return
}

func (p *RawIPSocketProvider) String() string {
	return fmt.Sprintf("raw_ip(%s)", p.ip)
}
