/*
Package capture sniffs traffic from a single interface and persists it as a pcap trace.

A Session owns a raw socket and the trace output. The socket is opened and bound
through a Provider, which hides the platform: an AF_PACKET datagram socket on linux,
a raw IPv4 socket with SIO_RCVALL on windows. Either way the socket yields network
layer bytes, so every record gets a synthetic Ethernet header with EtherType IPv4.

example:

	f, err := os.Create("/tmp/lo.pcap")
	if err != nil {
		// handle error
	}
	sess := capture.NewSession("lo", f, capture.Options{})
	defer sess.Close()

	if err := sess.Init(); err != nil {
		// handle error
	}
	go func() {
		<-quit
		sess.StopCapture()
	}()
	if err := sess.StartCapture(); err != nil {
		// capture loop ended on an error, errors.Is(err, capture.ErrEndOfStream) etc.
	}
*/
package capture // import github.com/vearne/rawsniff/capture
