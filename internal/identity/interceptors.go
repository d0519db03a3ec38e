package identity

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// securityInfoFromPeer derives the request's SecurityInfo from the verified
// client certificate carried by the transport, and runs the bind check
// against the transport peer address. enabled=false (no_auth mode) yields
// the permissive info without touching the handshake state.
func securityInfoFromPeer(ctx context.Context, enabled bool) (SecurityInfo, error) {
	if !enabled {
		return NoAuth(), nil
	}

	p, ok := peer.FromContext(ctx)
	if !ok {
		return SecurityInfo{}, givcerrors.New(givcerrors.PermissionDenied, "no peer information on request")
	}
	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok || len(tlsInfo.State.PeerCertificates) == 0 {
		return SecurityInfo{}, givcerrors.New(givcerrors.PermissionDenied, "no verified client certificate")
	}

	info := FromPeerCertificate(tlsInfo.State.PeerCertificates[0])

	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			if err := BindCheck(info, ip); err != nil {
				return SecurityInfo{}, err
			}
		}
	}
	return info, nil
}

// UnaryInterceptor returns the server interceptor binding a verified
// SecurityInfo into every unary request's context.
func UnaryInterceptor(enabled bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		info, err := securityInfoFromPeer(ctx, enabled)
		if err != nil {
			return nil, err
		}
		return handler(WithContext(ctx, info), req)
	}
}

// StreamInterceptor is the streaming counterpart of UnaryInterceptor.
func StreamInterceptor(enabled bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		info, err := securityInfoFromPeer(ss.Context(), enabled)
		if err != nil {
			return err
		}
		return handler(srv, &securedStream{ServerStream: ss, ctx: WithContext(ss.Context(), info)})
	}
}

type securedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *securedStream) Context() context.Context { return s.ctx }
