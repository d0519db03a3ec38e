package admin

import (
	"context"

	"google.golang.org/grpc"

	"github.com/tiiuae/ghaf-givc/internal/obs/metrics"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
)

// Server exposes a Service over the unit-control RPC surface. It owns no
// state beyond the service handle; one instance is registered per
// grpc.Server.
type Server struct {
	svc     *Service
	metrics *metrics.Metrics
}

// NewServer wraps svc for RPC registration. m may be nil.
func NewServer(svc *Service, m *metrics.Metrics) *Server {
	svc.SetMetrics(m)
	return &Server{svc: svc, metrics: m}
}

// Register attaches the unit-control service to srv.
func (s *Server) Register(srv *grpc.Server) {
	srv.RegisterService(s.serviceDesc(), s)
}

func (s *Server) record(method string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordAdminRequest(method, status)
}

// unaryMethod builds one grpc.MethodDesc around a typed handler closure,
// threading the server's registered interceptor chain through.
func unaryMethod(name string, newReq func() interface{}, handle func(ctx context.Context, req interface{}) (interface{}, error)) grpc.MethodDesc {
	fullMethod := "/" + rpcapi.ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return handle(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, req, info, handle)
		},
	}
}

func (s *Server) serviceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: rpcapi.ServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			unaryMethod("RegisterService",
				func() interface{} { return new(rpcapi.RegisterServiceRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.RegisterService(ctx, *req.(*rpcapi.RegisterServiceRequest))
					s.record("RegisterService", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("StartVM",
				func() interface{} { return new(rpcapi.UnitRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.StartVM(ctx, req.(*rpcapi.UnitRequest).Name)
					s.record("StartVM", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("StartApplication",
				func() interface{} { return new(rpcapi.ApplicationRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					name, err := s.svc.StartApp(ctx, *req.(*rpcapi.ApplicationRequest))
					s.record("StartApplication", err)
					if err != nil {
						return nil, err
					}
					return &rpcapi.StartAppResponse{Name: name}, nil
				}),
			unaryMethod("StartService",
				func() interface{} { return new(rpcapi.StartServiceRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					r := req.(*rpcapi.StartServiceRequest)
					err := s.svc.StartService(ctx, r.Service, r.VM)
					s.record("StartService", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Pause",
				func() interface{} { return new(rpcapi.UnitRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.Pause(ctx, req.(*rpcapi.UnitRequest).Name)
					s.record("Pause", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Resume",
				func() interface{} { return new(rpcapi.UnitRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.Resume(ctx, req.(*rpcapi.UnitRequest).Name)
					s.record("Resume", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Stop",
				func() interface{} { return new(rpcapi.UnitRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.StopApplication(ctx, req.(*rpcapi.UnitRequest).Name)
					s.record("Stop", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Poweroff",
				func() interface{} { return new(rpcapi.Empty) },
				func(ctx context.Context, _ interface{}) (interface{}, error) {
					err := s.svc.Poweroff(ctx)
					s.record("Poweroff", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Reboot",
				func() interface{} { return new(rpcapi.Empty) },
				func(ctx context.Context, _ interface{}) (interface{}, error) {
					err := s.svc.Reboot(ctx)
					s.record("Reboot", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Suspend",
				func() interface{} { return new(rpcapi.Empty) },
				func(ctx context.Context, _ interface{}) (interface{}, error) {
					err := s.svc.Suspend(ctx)
					s.record("Suspend", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("Wakeup",
				func() interface{} { return new(rpcapi.Empty) },
				func(ctx context.Context, _ interface{}) (interface{}, error) {
					err := s.svc.Wakeup(ctx)
					s.record("Wakeup", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("SetLocale",
				func() interface{} { return new(rpcapi.LocaleRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.SetLocale(ctx, req.(*rpcapi.LocaleRequest).Locale)
					s.record("SetLocale", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("SetTimezone",
				func() interface{} { return new(rpcapi.TimezoneRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					err := s.svc.SetTimezone(ctx, req.(*rpcapi.TimezoneRequest).Timezone)
					s.record("SetTimezone", err)
					return &rpcapi.Empty{}, err
				}),
			unaryMethod("GetStats",
				func() interface{} { return new(rpcapi.StatsRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					resp, err := s.svc.GetStats(ctx, req.(*rpcapi.StatsRequest).VMName)
					s.record("GetStats", err)
					if err != nil {
						return nil, err
					}
					return &resp, nil
				}),
			unaryMethod("QueryList",
				func() interface{} { return new(rpcapi.QueryListRequest) },
				func(ctx context.Context, req interface{}) (interface{}, error) {
					resp := s.svc.QueryList(*req.(*rpcapi.QueryListRequest))
					s.record("QueryList", nil)
					return &resp, nil
				}),
		},
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Watch",
				ServerStreams: true,
				Handler: func(_ interface{}, stream grpc.ServerStream) error {
					return s.watchHandler(stream)
				},
			},
		},
	}
}

// watchHandler streams the Initial snapshot frame, then relays registry
// events until the client goes away or the subscription drains.
func (s *Server) watchHandler(stream grpc.ServerStream) error {
	ctx := stream.Context()
	snapshot, events := s.svc.Watch(ctx)
	defer s.svc.reg.Unsubscribe(events)

	if err := stream.SendMsg(&rpcapi.WatchItem{Initial: snapshot}); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			item := &rpcapi.WatchItem{
				Event: &rpcapi.WatchEvent{Kind: ev.Kind.String(), Result: ev.Result},
			}
			if err := stream.SendMsg(item); err != nil {
				return err
			}
		}
	}
}
