// Package config holds rawsniff's settings and their command line and file forms.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/buger/goreplay/size"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSnapLen = 65535
	// interface names must fit IFNAMSIZ including the NUL
	maxInterfaceLen = 15
)

// SizeOption lets a size.Size be set from a flag and from YAML, e.g. "64kb".
type SizeOption struct {
	Size *size.Size
}

func (h *SizeOption) String() string {
	if h.Size == nil {
		return ""
	}
	return fmt.Sprint(int64(*h.Size))
}

// Set gets called when the flag is given
func (h *SizeOption) Set(value string) error {
	if h.Size == nil {
		return nil
	}
	return h.Size.Set(value)
}

// AppSettings is rawsniff's whole configuration.
// Its fields mirror the command line flags.
type AppSettings struct {
	ExitAfter time.Duration `json:"exit-after" yaml:"exit-after"`

	// ######################## input #######################
	// Interface is an interface name on linux and an IPv4 address on windows.
	Interface string    `json:"interface" yaml:"interface"`
	SnapLen   size.Size `json:"snaplen" yaml:"-"`
	// SnapLenStr is the YAML form of SnapLen
	SnapLenStr string `json:"-" yaml:"snaplen"`

	// ######################## output ########################
	Output string `json:"output" yaml:"output"`

	// --- clock ---
	// EpochBias is subtracted from wall clock time before it is written.
	EpochBias time.Duration `json:"epoch-bias" yaml:"epoch-bias"`

	// --- other ---
	LogLevel       string `json:"log-level" yaml:"log-level"`
	ListInterfaces bool   `json:"list-interfaces" yaml:"-"`
}

// NewAppSettings returns settings holding the defaults.
func NewAppSettings() *AppSettings {
	return &AppSettings{SnapLen: DefaultSnapLen}
}

// LoadFile overlays the YAML file at path onto s.
func (s *AppSettings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if s.SnapLenStr != "" {
		if err := s.SnapLen.Set(s.SnapLenStr); err != nil {
			return fmt.Errorf("parse config %s: snaplen: %w", path, err)
		}
	}
	return nil
}

// Validate checks what the capture needs before any socket is opened.
func (s *AppSettings) Validate() error {
	if s.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	if len(s.Interface) > maxInterfaceLen {
		return fmt.Errorf("interface %q is longer than %d bytes", s.Interface, maxInterfaceLen)
	}
	if s.Output == "" {
		return fmt.Errorf("output is required")
	}
	if s.SnapLen <= 0 || s.SnapLen > 1<<18 {
		return fmt.Errorf("snaplen %d out of range (0, %d]", s.SnapLen, 1<<18)
	}
	if s.ExitAfter < 0 {
		return fmt.Errorf("exit-after must not be negative")
	}
	// pcap seconds are unsigned 32 bit
	if sec := time.Now().Add(-s.EpochBias).Unix(); sec < 0 || sec > math.MaxUint32 {
		return fmt.Errorf("epoch-bias %s moves the clock outside the pcap time range", s.EpochBias)
	}
	return nil
}
