// Package transport implements the uniform dial-side and listen-side
// abstraction over TCP+TLS, Unix domain sockets, Linux abstract sockets and
// VSOCK, with mutual TLS peer authentication.
package transport

import "fmt"

// AddressKind discriminates the EndpointAddress sum type.
type AddressKind int

const (
	KindTCP AddressKind = iota
	KindUnix
	KindAbstract
	KindVsock
)

// EndpointAddress is the sum type EndpointAddress = Tcp | Unix | Abstract |
// Vsock from the data model. Only the fields relevant to Kind are
// meaningful; callers switch on Kind rather than relying on zero values.
type EndpointAddress struct {
	Kind AddressKind

	// KindTCP
	Addr string
	Port uint16

	// KindUnix / KindAbstract
	Path string

	// KindVsock
	CID  uint32
	VPort uint32
}

func TCP(addr string, port uint16) EndpointAddress {
	return EndpointAddress{Kind: KindTCP, Addr: addr, Port: port}
}

func Unix(path string) EndpointAddress {
	return EndpointAddress{Kind: KindUnix, Path: path}
}

func Abstract(name string) EndpointAddress {
	return EndpointAddress{Kind: KindAbstract, Path: name}
}

func Vsock(cid, port uint32) EndpointAddress {
	return EndpointAddress{Kind: KindVsock, CID: cid, VPort: port}
}

func (a EndpointAddress) String() string {
	switch a.Kind {
	case KindTCP:
		return fmt.Sprintf("tcp://%s:%d", a.Addr, a.Port)
	case KindUnix:
		return fmt.Sprintf("unix://%s", a.Path)
	case KindAbstract:
		return fmt.Sprintf("abstract://%s", a.Path)
	case KindVsock:
		return fmt.Sprintf("vsock://%d:%d", a.CID, a.VPort)
	default:
		return "unknown://"
	}
}

// Scheme returns "https" iff TLS is present, else "http", per the URL
// scheme-selection rule; for non-TCP addresses this is a placeholder
// authority only, the real connection goes through the custom dialer.
func Scheme(tlsPresent bool) string {
	if tlsPresent {
		return "https"
	}
	return "http"
}

// Authority returns a placeholder "host:port" string suitable as a gRPC
// target authority, regardless of transport kind.
func (a EndpointAddress) Authority() string {
	switch a.Kind {
	case KindTCP:
		return fmt.Sprintf("%s:%d", a.Addr, a.Port)
	case KindUnix, KindAbstract:
		return "local"
	case KindVsock:
		return fmt.Sprintf("vsock-%d", a.CID)
	default:
		return "unknown"
	}
}
