//go:build !linux && !windows
// +build !linux,!windows

package capture

// NewPlatformProvider returns a provider whose Open always fails.
func NewPlatformProvider() Provider {
	return unsupportedProvider{}
}

type unsupportedProvider struct{}

func (unsupportedProvider) Open() error { return ErrUnsupported }

func (unsupportedProvider) ResolveBindAddress(iface string) (BindAddress, error) {
	return BindAddress{}, newError(InterfaceNotFound, iface, ErrUnsupported)
}

func (unsupportedProvider) Bind(BindAddress) error            { return ErrUnsupported }
func (unsupportedProvider) SetPromiscuous(string, bool) error { return ErrUnsupported }
func (unsupportedProvider) Read([]byte) (int, error)          { return 0, ErrUnsupported }
func (unsupportedProvider) Close() error                      { return nil }
func (unsupportedProvider) String() string                    { return "unsupported" }
