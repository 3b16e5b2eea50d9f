// Command ah-echo exercises the TCP transport in two modes: -listen runs
// an echo server, -connect sends one payload and prints whatever comes
// back before closing.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ehrlich-b/ah"
	"github.com/ehrlich-b/ah/internal/logging"
)

func main() {
	var (
		listenAddr  = flag.String("listen", "", "address to listen on, e.g. 127.0.0.1:9000")
		connectAddr = flag.String("connect", "", "address to connect to, e.g. 127.0.0.1:9000")
		data        = flag.String("data", "hello", "payload to send in -connect mode")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	switch {
	case *listenAddr != "":
		runServer(*listenAddr, logger)
	case *connectAddr != "":
		runClient(*connectAddr, *data, logger)
	default:
		fmt.Fprintln(os.Stderr, "usage: ah-echo -listen addr | -connect addr -data payload")
		os.Exit(1)
	}
}

func parseAddr(s string) (ah.SockAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return ah.SockAddr{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return ah.SockAddr{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ah.SockAddr{}, fmt.Errorf("invalid host %q", host)
	}
	if v4 := ip.To4(); v4 != nil {
		return ah.IPv4(uint16(port), [4]byte{v4[0], v4[1], v4[2], v4[3]}), nil
	}
	v6 := ip.To16()
	var b [16]byte
	copy(b[:], v6)
	return ah.IPv6(uint16(port), b, 0, 0), nil
}

// echoServer implements ah.ListenerObserver: every accepted connection is
// handed an echoConnHandler that bounces bytes straight back.
type echoServer struct {
	logger *logging.Logger
}

func (s *echoServer) OnOpen(l *ah.TCPListener, err error) {
	if err != nil {
		s.logger.Error("listener open failed", "error", err)
		return
	}
	addr, _ := l.LocalAddr()
	s.logger.Info("listening", "addr", addr.Stringify())
}

func (s *echoServer) OnAccept(l *ah.TCPListener, info *ah.AcceptInfo) {
	s.logger.Info("accepted connection", "remote", info.RemoteAddr.Stringify())
	info.Observer = &echoConnHandler{logger: s.logger}
	if err := info.Conn.ReadStart(); err != nil {
		s.logger.Error("read_start failed", "error", err)
	}
}

func (s *echoServer) OnClose(l *ah.TCPListener, err error) {
	if err != nil {
		s.logger.Error("listener closed with error", "error", err)
	}
}

// echoConnHandler implements ah.ConnObserver for one accepted connection.
type echoConnHandler struct {
	logger *logging.Logger
}

func (h *echoConnHandler) OnOpen(c *ah.TCPConn, err error) {}

func (h *echoConnHandler) OnConnect(c *ah.TCPConn, err error) {}

func (h *echoConnHandler) OnRead(c *ah.TCPConn, in *ah.InputBuffer, err error) {
	if err != nil {
		_ = c.Close()
		return
	}
	readable := in.Cursor().Readable()
	if len(readable) == 0 {
		return
	}
	payload := make([]byte, len(readable))
	copy(payload, readable)
	in.Cursor().Consume(len(readable))
	if werr := c.Write(ah.NewOutputDescriptor(payload, nil)); werr != nil {
		h.logger.Error("write failed", "error", werr)
	}
}

func (h *echoConnHandler) OnWrite(c *ah.TCPConn, out *ah.OutputDescriptor, err error) {
	if err != nil {
		h.logger.Error("write completion error", "error", err)
	}
}

func (h *echoConnHandler) OnClose(c *ah.TCPConn, err error) {}

func runServer(addr string, logger *logging.Logger) {
	laddr, err := parseAddr(addr)
	if err != nil {
		log.Fatalf("invalid -listen address: %v", err)
	}

	loop, err := ah.NewLoop()
	if err != nil {
		log.Fatalf("loop init failed: %v", err)
	}

	srv := &echoServer{logger: logger}
	listener := ah.NewTCPListener()
	if err := listener.Init(loop, ah.NewDefaultTransport(), srv); err != nil {
		log.Fatalf("listener init failed: %v", err)
	}
	if err := listener.Open(laddr); err != nil {
		log.Fatalf("listener open failed: %v", err)
	}
	if err := listener.SetReuseaddr(true); err != nil {
		logger.Warn("setsockopt reuseaddr failed", "error", err)
	}
	if err := listener.Listen(ah.DefaultBacklog); err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := loop.RunUntil(ah.Time{}); err != nil {
			logger.Error("loop exited with error", "error", err)
		}
	}()

	<-sigCh
	logger.Info("received shutdown signal")
	os.Exit(0)
}

// echoClient sends one payload, collects every byte the peer echoes back
// until it has as much as it sent, prints it, then closes.
type echoClient struct {
	logger  *logging.Logger
	payload []byte
	got     []byte
	loop    *ah.Loop
}

func (c *echoClient) OnOpen(conn *ah.TCPConn, err error) {}

func (c *echoClient) OnConnect(conn *ah.TCPConn, err error) {
	if err != nil {
		c.logger.Error("connect failed", "error", err)
		_ = c.loop.Stop()
		return
	}
	if werr := conn.Write(ah.NewOutputDescriptor(c.payload, nil)); werr != nil {
		c.logger.Error("write failed", "error", werr)
	}
	if rerr := conn.ReadStart(); rerr != nil {
		c.logger.Error("read_start failed", "error", rerr)
	}
}

func (c *echoClient) OnRead(conn *ah.TCPConn, in *ah.InputBuffer, err error) {
	if err != nil {
		fmt.Printf("reply: %s\n", c.got)
		_ = conn.Close()
		return
	}
	readable := in.Cursor().Readable()
	c.got = append(c.got, readable...)
	in.Cursor().Consume(len(readable))
	if len(c.got) >= len(c.payload) {
		fmt.Printf("reply: %s\n", c.got)
		_ = conn.Close()
	}
}

func (c *echoClient) OnWrite(conn *ah.TCPConn, out *ah.OutputDescriptor, err error) {
	if err != nil {
		c.logger.Error("write completion error", "error", err)
	}
}

func (c *echoClient) OnClose(conn *ah.TCPConn, err error) {
	_ = conn.Term()
	_ = c.loop.Stop()
}

func runClient(addr, payload string, logger *logging.Logger) {
	raddr, err := parseAddr(addr)
	if err != nil {
		log.Fatalf("invalid -connect address: %v", err)
	}

	loop, err := ah.NewLoop()
	if err != nil {
		log.Fatalf("loop init failed: %v", err)
	}

	client := &echoClient{logger: logger, payload: []byte(payload), loop: loop}
	conn := ah.NewTCPConn()
	if err := conn.Init(loop, ah.NewDefaultTransport(), client); err != nil {
		log.Fatalf("conn init failed: %v", err)
	}
	family := ah.FamilyIPv4
	if raddr.Family == ah.FamilyIPv6 {
		family = ah.FamilyIPv6
	}
	localWildcard := ah.IPv4Wildcard(0)
	if family == ah.FamilyIPv6 {
		localWildcard = ah.IPv6Wildcard(0)
	}
	if err := conn.Open(localWildcard); err != nil {
		log.Fatalf("conn open failed: %v", err)
	}
	if err := conn.Connect(raddr); err != nil {
		log.Fatalf("connect failed: %v", err)
	}

	if err := loop.RunUntil(ah.Time{}); err != nil {
		log.Fatalf("loop exited with error: %v", err)
	}
}
