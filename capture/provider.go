package capture

import (
	"fmt"
	"net"
)

// ifNameSize is IFNAMSIZ: interface names must fit with their terminating NUL.
const ifNameSize = 16

// BindAddress is where a capture socket gets bound.
// Index is set by link layer providers, IP by raw IP providers.
type BindAddress struct {
	Name  string
	Index int
	IP    net.IP
}

func (a BindAddress) String() string {
	if a.IP != nil {
		return fmt.Sprintf("%s(ip=%s)", a.Name, a.IP)
	}
	return fmt.Sprintf("%s(index=%d)", a.Name, a.Index)
}

// Provider is any interface that defines the platform side of a capture socket
type Provider interface {
	// Open creates the raw socket.
	Open() error
	// ResolveBindAddress maps an interface identifier to a binding address.
	// It fails with InterfaceNotFound when the identifier is unknown.
	ResolveBindAddress(iface string) (BindAddress, error)
	Bind(addr BindAddress) error
	SetPromiscuous(iface string, enable bool) error
	// Read blocks until the next packet arrives and copies its network layer bytes into p.
	Read(p []byte) (int, error)
	Close() error
	String() string
}
