package util

import (
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func IsIPv4(ipAddr string) bool {
	ip := net.ParseIP(ipAddr)
	return ip != nil && strings.Contains(ipAddr, ".")
}

func IsIPv6(ipAddr string) bool {
	ip := net.ParseIP(ipAddr)
	return ip != nil && strings.Contains(ipAddr, ":")
}

// NIC is a host network interface as reported by the OS.
type NIC struct {
	Index int
	Name  string
	MTU   int
	Flags []string
	Addrs []string
}

// ListNICs returns the host's network interfaces.
func ListNICs() ([]NIC, error) {
	stats, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}
	nics := make([]NIC, 0, len(stats))
	for _, st := range stats {
		nic := NIC{
			Index: st.Index,
			Name:  st.Name,
			MTU:   st.MTU,
			Flags: st.Flags,
		}
		for _, a := range st.Addrs {
			nic.Addrs = append(nic.Addrs, a.Addr)
		}
		nics = append(nics, nic)
	}
	return nics, nil
}

// NICNames returns the names of the host's network interfaces,
// or nil if they cannot be listed.
func NICNames() []string {
	nics, err := ListNICs()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(nics))
	for _, nic := range nics {
		names = append(names, nic.Name)
	}
	return names
}
