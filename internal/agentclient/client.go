// Package agentclient is the admin process's typed handle onto a single
// agent manager's unit-control RPCs: one thin wrapper method per operation,
// dialed over internal/transport and guarded by a per-connection circuit
// breaker.
package agentclient

import (
	"context"
	"time"

	"google.golang.org/grpc"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
	"github.com/tiiuae/ghaf-givc/internal/resilience"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/transport"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// Client is a live connection to one agent manager, used by the supervisor
// and admin service to drive unit lifecycle on that agent's behalf.
type Client struct {
	name    string
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
}

// Dial connects to the agent manager reachable at cfg, registering its name
// (the registry entry name of the Mgr unit) for logging and breaker
// bookkeeping. A private breaker is created; callers that pool connections
// per agent use DialWithBreaker so the failure state is shared.
func Dial(ctx context.Context, name string, cfg transport.EndpointConfig) (*Client, error) {
	return DialWithBreaker(ctx, name, cfg, nil)
}

// DialWithBreaker is Dial with a caller-owned breaker, typically one handed
// out by a resilience.BreakerSet keyed on the agent name.
func DialWithBreaker(ctx context.Context, name string, cfg transport.EndpointConfig, breaker *resilience.Breaker) (*Client, error) {
	conn, err := transport.Dial(ctx, cfg, rpcapi.DialOption())
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Unavailable, "dial agent "+name, err)
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(name, resilience.DefaultBreakerConfig(), nil)
	}
	return &Client{name: name, conn: conn, breaker: breaker}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Invoke issues an arbitrary unit-control method against this agent,
// exposed for callers (the admin service's locale/timezone broadcast and
// stats relay) that don't need a dedicated wrapper method.
func (c *Client) Invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.invoke(ctx, method, req, resp)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.breaker.Execute(ctx, func() error {
		if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
			return givcerrors.Wrap(givcerrors.Unavailable, "agent "+c.name+" "+method, err)
		}
		return nil
	})
}

// Get fetches the current UnitStatus for name from the agent.
func (c *Client) Get(ctx context.Context, name string) (units.UnitStatus, error) {
	var resp units.UnitStatus
	err := c.invoke(ctx, rpcapi.MethodGet, &rpcapi.UnitRequest{Name: name}, &resp)
	return resp, err
}

// Start starts the named unit under systemd control on the agent.
func (c *Client) Start(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStartService, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Stop stops the named unit.
func (c *Client) Stop(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStop, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Kill sends a hard kill to the named unit.
func (c *Client) Kill(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodKill, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Freeze cgroup-freezes the named unit.
func (c *Client) Freeze(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodFreeze, &rpcapi.UnitRequest{Name: name}, &resp)
}

// Unfreeze thaws the named unit.
func (c *Client) Unfreeze(ctx context.Context, name string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodUnfreeze, &rpcapi.UnitRequest{Name: name}, &resp)
}

// StartApplication asks the agent to launch a new application instance
// under the admin-allocated unit name, returning the post-launch status.
func (c *Client) StartApplication(ctx context.Context, unitName string, args []string) (units.UnitStatus, error) {
	var resp units.UnitStatus
	err := c.invoke(ctx, rpcapi.MethodStartApp, &rpcapi.ApplicationRequest{AppName: unitName, Args: args}, &resp)
	return resp, err
}

// StartVM asks a VM-hosting agent to start the named microVM unit.
func (c *Client) StartVM(ctx context.Context, vmUnit string) error {
	var resp rpcapi.Empty
	return c.invoke(ctx, rpcapi.MethodStartVM, &rpcapi.UnitRequest{Name: vmUnit}, &resp)
}
