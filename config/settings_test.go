package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buger/goreplay/size"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(s *AppSettings)
		ok     bool
	}{
		{"valid", func(s *AppSettings) {}, true},
		{"no interface", func(s *AppSettings) { s.Interface = "" }, false},
		{"interface too long", func(s *AppSettings) { s.Interface = "abcdefghijklmnop" }, false},
		{"interface at limit", func(s *AppSettings) { s.Interface = "abcdefghijklmno" }, true},
		{"no output", func(s *AppSettings) { s.Output = "" }, false},
		{"zero snaplen", func(s *AppSettings) { s.SnapLen = 0 }, false},
		{"huge snaplen", func(s *AppSettings) { s.SnapLen = 1 << 20 }, false},
		{"negative exit-after", func(s *AppSettings) { s.ExitAfter = -time.Second }, false},
		{"epoch-bias one hour", func(s *AppSettings) { s.EpochBias = time.Hour }, true},
		{"epoch-bias before 1970", func(s *AppSettings) { s.EpochBias = 100 * 365 * 24 * time.Hour }, false},
		{"epoch-bias past 2106", func(s *AppSettings) { s.EpochBias = -100 * 365 * 24 * time.Hour }, false},
	}
	for _, c := range cases {
		s := NewAppSettings()
		s.Interface = "eth0"
		s.Output = "/tmp/eth0.pcap"
		c.modify(s)
		err := s.Validate()
		if c.ok {
			assert.Nil(t, err, c.name)
		} else {
			assert.NotNil(t, err, c.name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rawsniff.yaml")
	content := `
interface: lo
output: /tmp/lo.pcap
snaplen: 2kb
epoch-bias: 1s
exit-after: 30s
log-level: debug
`
	require.Nil(t, os.WriteFile(path, []byte(content), 0600))

	s := NewAppSettings()
	require.Nil(t, s.LoadFile(path))
	assert.Equal(t, "lo", s.Interface)
	assert.Equal(t, "/tmp/lo.pcap", s.Output)
	assert.Equal(t, size.Size(2048), s.SnapLen)
	assert.Equal(t, time.Second, s.EpochBias)
	assert.Equal(t, 30*time.Second, s.ExitAfter)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Nil(t, s.Validate())
}

func TestLoadFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rawsniff.yaml")
	require.Nil(t, os.WriteFile(path, []byte("interface: eth0\n"), 0600))

	s := NewAppSettings()
	require.Nil(t, s.LoadFile(path))
	assert.Equal(t, size.Size(DefaultSnapLen), s.SnapLen)
}

func TestLoadFileErrors(t *testing.T) {
	s := NewAppSettings()
	assert.NotNil(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.Nil(t, os.WriteFile(path, []byte("snaplen: lots\n"), 0600))
	assert.NotNil(t, s.LoadFile(path))
}

func TestSizeOptionFlag(t *testing.T) {
	s := NewAppSettings()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&SizeOption{Size: &s.SnapLen}, "snaplen", "")

	require.Nil(t, fs.Parse([]string{"-snaplen", "64kb"}))
	assert.Equal(t, size.Size(64<<10), s.SnapLen)

	assert.NotNil(t, fs.Parse([]string{"-snaplen", "abc"}))
}
