// givc-admin is the control plane daemon: it serves the admin RPC surface,
// supervises every watched unit and runs the operational debug listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/tiiuae/ghaf-givc/internal/admin"
	"github.com/tiiuae/ghaf-givc/internal/identity"
	"github.com/tiiuae/ghaf-givc/internal/obs/config"
	"github.com/tiiuae/ghaf-givc/internal/obs/debughttp"
	"github.com/tiiuae/ghaf-givc/internal/obs/logging"
	"github.com/tiiuae/ghaf-givc/internal/obs/metrics"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/supervisor"
	"github.com/tiiuae/ghaf-givc/internal/transport"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "givc-admin:", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.FromEnv()

	addr := flag.String("addr", env.Addr, "listen address")
	port := flag.Int("port", env.Port, "listen port")
	name := flag.String("name", env.Name, "advertised admin name")
	vsock := flag.Bool("vsock", env.Vsock, "listen on vsock instead of tcp")
	cacert := flag.String("cacert", env.CACertPath, "CA certificate path")
	cert := flag.String("cert", env.CertPath, "server certificate path")
	key := flag.String("key", env.KeyPath, "server key path")
	notls := flag.Bool("notls", env.NoTLS, "disable TLS (development only)")
	debugAddr := flag.String("debug-addr", config.GetEnv("GIVC_DEBUG_ADDR", "127.0.0.1:9001"), "debug listener address")
	flag.Parse()

	logging.InitDefault("givc-admin", config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "json"))
	log := logging.Default()

	var tlsCfg *transport.TLSConfig
	if !*notls {
		var err error
		tlsCfg, err = transport.LoadTLSConfig(*cert, *key, *cacert)
		if err != nil {
			return err
		}
	} else {
		log.Warn("TLS disabled, running in no_auth mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init("givc-admin", version)
	reg := registry.New(log)
	svc := admin.New(reg, log, tlsCfg, env.LocaleFile, env.TimezoneFile)

	supLog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "supervisor").Logger()
	sup, err := supervisor.NewWithSchedule(reg, svc, supLog, m,
		fmt.Sprintf("@every %s", env.TickInterval))
	if err != nil {
		return err
	}
	svc.SetProber(sup.Probe)
	go sup.Run(ctx)

	if metrics.Enabled() {
		health := debughttp.NewHealth(version, reg.Count, sup.LastTick, 3*env.TickInterval)
		go func() {
			<-ctx.Done()
			health.SetReady(false)
		}()
		go func() {
			cfg := debughttp.Config{
				Addr:    *debugAddr,
				Version: version,
				Logger:  log,
				Health:  health,
				Metrics: true,
				Limiter: debughttp.NewRateLimiter(50, 100, log),
			}
			if err := debughttp.Serve(ctx, cfg); err != nil {
				log.WithError(err).Warn("debug listener stopped")
			}
		}()
	}

	var listenAddr transport.EndpointAddress
	if *vsock {
		listenAddr = transport.Vsock(uint32(2), uint32(*port))
	} else {
		listenAddr = transport.TCP(*addr, uint16(*port))
	}
	lis, err := transport.Listen(ctx, listenAddr)
	if err != nil {
		return err
	}

	opts := transport.ServerOptions(tlsCfg)
	opts = append(opts,
		rpcapi.ServerOption(),
		grpc.ChainUnaryInterceptor(identity.UnaryInterceptor(tlsCfg != nil)),
		grpc.ChainStreamInterceptor(identity.StreamInterceptor(tlsCfg != nil)),
	)
	grpcServer := grpc.NewServer(opts...)
	admin.NewServer(svc, m).Register(grpcServer)

	go func() {
		<-ctx.Done()
		grace := time.AfterFunc(10*time.Second, grpcServer.Stop)
		grpcServer.GracefulStop()
		grace.Stop()
	}()

	log.WithFields(map[string]interface{}{
		"name":    *name,
		"address": listenAddr.String(),
	}).Info("admin service listening")
	return grpcServer.Serve(lis)
}
