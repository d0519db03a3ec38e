package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// DialTimeout bounds every connection attempt, TCP or otherwise: a hung peer
// must not stall a supervisor recovery pass.
const DialTimeout = 300 * time.Millisecond

// MaxConcurrentStreams caps in-flight bidirectional streams per client
// connection so one runaway watcher cannot starve the others sharing a
// channel to the same agent.
const MaxConcurrentStreams = 30

// TLSConfig carries the mTLS material for a single endpoint. A nil TLSConfig
// on EndpointConfig means no_auth mode: only legal when identity.NoAuth
// gating has already confirmed TLS is globally disabled.
type TLSConfig struct {
	Cert  tls.Certificate
	Roots *x509.CertPool
}

// EndpointConfig bundles a dial/listen address with its TLS material.
// TLSName pins the name the peer's certificate must present; empty falls
// back to the address authority.
type EndpointConfig struct {
	Address EndpointAddress
	TLSName string
	TLS     *TLSConfig
}

// clientTLSConfig builds the *tls.Config used to dial cfg, enforcing TLS 1.2
// as the floor regardless of caller-supplied material.
func clientTLSConfig(cfg *TLSConfig, serverName string) *tls.Config {
	tc := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cfg.Cert},
		ServerName:   serverName,
	}
	if cfg.Roots != nil {
		tc.RootCAs = cfg.Roots
	}
	return tc
}

// dialFunc resolves a net.Conn for every EndpointAddress kind. TCP uses the
// standard dialer; Unix and abstract sockets share net.Dial's "unix"
// network, with "@" prepended to abstract-namespace names (the net package
// turns it into the Linux leading NUL byte); VSOCK uses the raw AF_VSOCK syscalls since the standard
// library has no vsock network type.
func dialFunc(ctx context.Context, addr EndpointAddress) (net.Conn, error) {
	d := net.Dialer{Timeout: DialTimeout}
	switch addr.Kind {
	case KindTCP:
		return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr.Addr, addr.Port))
	case KindUnix:
		return d.DialContext(ctx, "unix", addr.Path)
	case KindAbstract:
		return d.DialContext(ctx, "unix", "@"+addr.Path)
	case KindVsock:
		return dialVsock(addr.CID, addr.VPort)
	default:
		return nil, givcerrors.New(givcerrors.InvalidArgument, "unsupported address kind for dial")
	}
}

// dialVsock opens an AF_VSOCK stream socket to (cid, port). VSOCK has no
// net.Dial support in the standard library, so the syscalls are issued
// directly and wrapped into a *net.FileConn.
func dialVsock(cid, port uint32) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock socket", err)
	}
	sa := &unix.SockaddrVM{CID: cid, Port: port}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock connect", err)
	}
	file := os.NewFile(uintptr(fd), fmt.Sprintf("vsock-%d:%d", cid, port))
	conn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock fileconn", err)
	}
	return conn, nil
}

// Dial establishes a grpc.ClientConn to cfg.Address. When cfg.TLS is nil the
// connection is plaintext (no_auth mode only); otherwise mutual TLS is
// negotiated using clientTLSConfig. Extra carries caller-supplied options
// such as the rpcapi gob codec.
func Dial(ctx context.Context, cfg EndpointConfig, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if cfg.TLS != nil {
		serverName := cfg.TLSName
		if serverName == "" {
			serverName = cfg.Address.Authority()
		}
		creds = credentials.NewTLS(clientTLSConfig(cfg.TLS, serverName))
	} else {
		creds = insecure.NewCredentials()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithContextDialer(func(dctx context.Context, _ string) (net.Conn, error) {
			return dialFunc(dctx, cfg.Address)
		}),
		grpc.WithBlock(),
	}
	opts = append(opts, extra...)

	conn, err := grpc.DialContext(dialCtx, cfg.Address.Authority(), opts...)
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "dial "+cfg.Address.String(), err)
	}
	return conn, nil
}

// Listen opens the listener backing cfg.Address, for use with grpc.Server.Serve.
func Listen(ctx context.Context, addr EndpointAddress) (net.Listener, error) {
	lc := net.ListenConfig{}
	switch addr.Kind {
	case KindTCP:
		return lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", addr.Addr, addr.Port))
	case KindUnix:
		return lc.Listen(ctx, "unix", addr.Path)
	case KindAbstract:
		return lc.Listen(ctx, "unix", "@"+addr.Path)
	case KindVsock:
		return listenVsock(addr.CID, addr.VPort)
	default:
		return nil, givcerrors.New(givcerrors.InvalidArgument, "unsupported address kind for listen")
	}
}

func listenVsock(cid, port uint32) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock socket", err)
	}
	sa := &unix.SockaddrVM{CID: cid, Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock bind", err)
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock listen", err)
	}
	file := os.NewFile(uintptr(fd), fmt.Sprintf("vsock-listen-%d:%d", cid, port))
	ln, err := net.FileListener(file)
	file.Close()
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "vsock filelistener", err)
	}
	return ln, nil
}

// ServerOptions returns the grpc.Server options enforcing this package's
// mTLS and concurrency-cap policy. tc is nil in no_auth mode.
func ServerOptions(tc *TLSConfig) []grpc.ServerOption {
	opts := []grpc.ServerOption{grpc.MaxConcurrentStreams(MaxConcurrentStreams)}
	if tc == nil {
		return opts
	}
	serverTLS := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{tc.Cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
	if tc.Roots != nil {
		serverTLS.ClientCAs = tc.Roots
	}
	return append(opts, grpc.Creds(credentials.NewTLS(serverTLS)))
}
