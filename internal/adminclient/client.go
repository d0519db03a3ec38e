// Package adminclient is the client-side handle onto the admin process's
// RPC surface, used by the CLI and by integration tooling. It mirrors the
// agentclient wrapper style: one typed method per operation, errors rewrapped
// into the local chained form.
package adminclient

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/transport"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// Client is a live connection to the admin process.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the admin endpoint described by cfg.
func Dial(ctx context.Context, cfg transport.EndpointConfig) (*Client, error) {
	conn, err := transport.Dial(ctx, cfg, rpcapi.DialOption())
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// rewrap turns an RPC status back into the chained ServiceError the server
// raised, per the transport error contract.
func rewrap(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return givcerrors.FromStatus(st)
	}
	return err
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return rewrap(c.conn.Invoke(ctx, method, req, resp))
}

// RegisterService announces a unit to the admin registry.
func (c *Client) RegisterService(ctx context.Context, req rpcapi.RegisterServiceRequest) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodRegisterService, &req, &resp)
}

// StartVM starts the named microVM via the host manager.
func (c *Client) StartVM(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStartVM, &rpcapi.UnitRequest{Name: name}, &resp)
}

// StartApp launches an application, returning its allocated unit name.
func (c *Client) StartApp(ctx context.Context, req rpcapi.ApplicationRequest) (string, error) {
	var resp rpcapi.StartAppResponse
	err := c.invoke(ctx, rpcapi.MethodStartApp, &req, &resp)
	return resp.Name, err
}

// StartService starts a systemd service inside a VM.
func (c *Client) StartService(ctx context.Context, service, vm string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStartService, &rpcapi.StartServiceRequest{Service: service, VM: vm}, &resp)
}

// Pause freezes the named application(s).
func (c *Client) Pause(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodPause, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Resume thaws the named application(s).
func (c *Client) Resume(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodResume, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Stop stops the named application(s).
func (c *Client) Stop(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStop, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Poweroff, Reboot, Suspend and Wakeup drive the host system targets.
func (c *Client) Poweroff(ctx context.Context) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodPoweroff, &rpcapi.Empty{}, &resp)
}

func (c *Client) Reboot(ctx context.Context) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodReboot, &rpcapi.Empty{}, &resp)
}

func (c *Client) Suspend(ctx context.Context) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodSuspend, &rpcapi.Empty{}, &resp)
}

func (c *Client) Wakeup(ctx context.Context) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodWakeup, &rpcapi.Empty{}, &resp)
}

// SetLocale distributes a new system locale.
func (c *Client) SetLocale(ctx context.Context, locale string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodSetLocale, &rpcapi.LocaleRequest{Locale: locale}, &resp)
}

// SetTimezone distributes a new system timezone.
func (c *Client) SetTimezone(ctx context.Context, timezone string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodSetTimezone, &rpcapi.TimezoneRequest{Timezone: timezone}, &resp)
}

// GetStats fetches resource statistics for a VM ("host" for the admin host).
func (c *Client) GetStats(ctx context.Context, vmName string) (rpcapi.StatsResponse, error) {
	var resp rpcapi.StatsResponse
	err := c.invoke(ctx, rpcapi.MethodGetStats, &rpcapi.StatsRequest{VMName: vmName}, &resp)
	return resp, err
}

// QueryList fetches a registry snapshot.
func (c *Client) QueryList(ctx context.Context, req rpcapi.QueryListRequest) ([]registry.QueryResult, error) {
	var resp rpcapi.QueryListResponse
	if err := c.invoke(ctx, rpcapi.MethodQueryList, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Units, nil
}

// GetUnitStatus asks for one unit's status by registry lookup.
func (c *Client) GetUnitStatus(ctx context.Context, name string) (units.UnitStatus, error) {
	list, err := c.QueryList(ctx, rpcapi.QueryListRequest{NamePrefix: name})
	if err != nil {
		return units.UnitStatus{}, err
	}
	for _, u := range list {
		if u.Name == name {
			return u.Status, nil
		}
	}
	return units.UnitStatus{}, givcerrors.New(givcerrors.NotFound, "unit "+name+" not registered")
}

// WatchStream is a live watch subscription; Recv blocks for the next frame.
type WatchStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc
}

// Watch opens the server-stream watch subscription. The first frame carries
// the Initial snapshot.
func (c *Client) Watch(ctx context.Context) (*WatchStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	desc := &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, rpcapi.MethodWatch, grpc.ForceCodec(rpcapi.Codec()))
	if err != nil {
		cancel()
		return nil, rewrap(err)
	}
	if err := stream.SendMsg(&rpcapi.Empty{}); err != nil {
		cancel()
		return nil, rewrap(err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, rewrap(err)
	}
	return &WatchStream{stream: stream, cancel: cancel}, nil
}

// Recv returns the next watch frame; io.EOF when the server closed the
// stream.
func (w *WatchStream) Recv() (*rpcapi.WatchItem, error) {
	var item rpcapi.WatchItem
	if err := w.stream.RecvMsg(&item); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, rewrap(err)
	}
	return &item, nil
}

// Close tears the subscription down.
func (w *WatchStream) Close() { w.cancel() }
