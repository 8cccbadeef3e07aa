package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/nettest"
)

func TestIsIPv4(t *testing.T) {
	cases := []struct {
		addr     string
		expected bool
	}{
		{"192.168.1.100", true},
		{"0.0.0.0", true},
		{"::1", false},
		{"eth0", false},
		{"", false},
		{"256.1.1.1", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, IsIPv4(c.addr), c.addr)
	}
}

func TestIsIPv6(t *testing.T) {
	assert.True(t, IsIPv6("::1"))
	assert.True(t, IsIPv6("fe80::1"))
	assert.False(t, IsIPv6("10.0.0.1"))
	assert.False(t, IsIPv6("lo"))
}

func TestListNICsContainsLoopback(t *testing.T) {
	lo, err := nettest.LoopbackInterface()
	if err != nil {
		t.Skipf("no loopback interface: %v", err)
	}

	nics, err := ListNICs()
	assert.Nil(t, err)

	found := false
	for _, nic := range nics {
		if nic.Name == lo.Name {
			found = true
			assert.Equal(t, lo.Index, nic.Index)
		}
	}
	assert.True(t, found, "loopback %s not listed", lo.Name)
	assert.Contains(t, NICNames(), lo.Name)
}
