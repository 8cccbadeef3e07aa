package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slog "github.com/vearne/simplelog"

	"github.com/vearne/rawsniff/capture"
	"github.com/vearne/rawsniff/config"
	"github.com/vearne/rawsniff/consts"
	"github.com/vearne/rawsniff/util"
)

const banner string = `
                             _ ________
   _________ __      _______(_) __/ __/
  / ___/ __ '/ | /| / / ___/ / /_/ /_
 / /  / /_/ /| |/ |/ (__  ) / __/ __/
/_/   \__,_/ |__/|__/____/_/_/ /_/
`

var settings = config.NewAppSettings()
var version bool
var configFile string

func init() {
	flag.BoolVar(&version, "version", false,
		"print version")

	flag.StringVar(&configFile, "config", "",
		"YAML settings file, flags given on the command line override it")

	flag.DurationVar(&settings.ExitAfter, "exit-after", 0, "exit after specified duration")

	// #################### input ######################
	flag.StringVar(&settings.Interface, "interface", "",
		`Capture traffic from given interface (use RAW sockets and require *sudo* access):
                # linux, interface name
                rawsniff --interface=eth0 --output=/tmp/eth0.pcap
                # windows, IPv4 address of the interface
                rawsniff --interface=192.168.1.10 --output=C:\eth0.pcap
               `)

	flag.Var(&config.SizeOption{Size: &settings.SnapLen}, "snaplen",
		"largest packet captured, also written to the trace header, e.g. 65535 or 64kb")

	flag.BoolVar(&settings.ListInterfaces, "list-interfaces", false,
		"print the network interfaces of this host and exit")

	// #################### output ######################
	flag.StringVar(&settings.Output, "output", "",
		"trace file to write, it is truncated if it exists")

	flag.DurationVar(&settings.EpochBias, "epoch-bias", 0,
		"subtracted from the wall clock before timestamps are written")

	flag.StringVar(&settings.LogLevel, "log-level", "",
		"debug or info, overrides SIMPLE_LOG_LEVEL")
}

func main() {
	fmt.Print(banner)

	adjustLogLevel("")

	flag.Parse()
	if version {
		fmt.Println("service: rawsniff")
		fmt.Println("Version", consts.Version)
		fmt.Println("BuildTime", consts.BuildTime)
		fmt.Println("GitTag", consts.GitTag)
		return
	}

	if settings.ListInterfaces {
		listInterfaces()
		return
	}

	if configFile != "" {
		loadConfigFile(configFile)
	}
	adjustLogLevel(settings.LogLevel)

	if err := settings.Validate(); err != nil {
		slog.Fatal("invalid settings: %v", err)
	}
	printSettings(settings)

	os.Exit(run(settings))
}

func run(settings *config.AppSettings) int {
	f, err := os.OpenFile(settings.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		slog.Error("open output %s: %v", settings.Output, err)
		return 1
	}

	sess := capture.NewSession(settings.Interface, f, capture.Options{
		SnapLen: int(settings.SnapLen),
		Clock:   capture.WallClock{EpochBias: settings.EpochBias},
	})
	defer sess.Close()

	if err := sess.Init(); err != nil {
		slog.Error("init capture: %v", err)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.StartCapture()
	}()

	closeCh := make(chan int)
	if settings.ExitAfter > 0 {
		slog.Info("Running rawsniff for a duration of %s", settings.ExitAfter)

		time.AfterFunc(settings.ExitAfter, func() {
			slog.Info("run timeout %s", settings.ExitAfter)
			close(closeCh)
		})
	}
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)

	exit := 0
	select {
	case sig := <-c:
		slog.Info("got signal %v, stopping", sig)
		exit = 1
	case <-closeCh:
		exit = 0
	case err := <-errCh:
		if err != nil {
			slog.Error("capture ended: %v", err)
			exit = 1
		}
	}

	// the read in flight is not interrupted, the deferred Close releases it
	sess.StopCapture()
	st := sess.Stats()
	slog.Info("[%s] captured %d packets, %d bytes from %s into %s",
		sess.ID(), st.Packets, st.Bytes, sess.InterfaceName(), settings.Output)
	return exit
}

func loadConfigFile(path string) {
	// flags set on the command line win over the file
	explicit := make(map[string]string)
	flag.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := settings.LoadFile(path); err != nil {
		slog.Fatal("load config: %v", err)
	}
	for name, value := range explicit {
		if err := flag.Set(name, value); err != nil {
			slog.Fatal("flag %s: %v", name, err)
		}
	}
}

func listInterfaces() {
	nics, err := util.ListNICs()
	if err != nil {
		slog.Fatal("list interfaces: %v", err)
	}
	for _, nic := range nics {
		fmt.Printf("%d\t%s\tmtu:%d\t[%s]\t%s\n", nic.Index, nic.Name, nic.MTU,
			strings.Join(nic.Flags, ","), strings.Join(nic.Addrs, " "))
	}
}

func printSettings(settings *config.AppSettings) {
	slog.Info("interface, %v", settings.Interface)
	slog.Info("output, %v", settings.Output)
	slog.Info("snaplen, %v", settings.SnapLen)
	slog.Info("epoch-bias, %v", settings.EpochBias)
	slog.Info("exit-after, %v", settings.ExitAfter)
}

func adjustLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		slog.SetLevel(slog.DebugLevel)
		return
	case "info":
		slog.SetLevel(slog.InfoLevel)
		return
	}
	logLevel := os.Getenv("SIMPLE_LOG_LEVEL")
	if len(logLevel) > 0 {
		return
	}
	slog.SetLevel(slog.InfoLevel)
}
