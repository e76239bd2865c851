// Package asr checks that the speech-recognition collaborator feeding parla
// is reachable over gRPC.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ProbeConfig targets one gRPC endpoint.
type ProbeConfig struct {
	Endpoint string
	// Service is the grpc.health.v1 service name; empty asks about the server.
	Service string
	Timeout time.Duration
}

// ProbeResult summarizes a successful probe.
type ProbeResult struct {
	Endpoint string
	// Status is the reported serving status, or "" when the server does not
	// implement the health service.
	Status string
}

// Probe connects to cfg.Endpoint and queries the standard health service.
// A server without the health service counts as reachable.
func Probe(ctx context.Context, cfg ProbeConfig) (ProbeResult, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return ProbeResult{}, errors.New("asr endpoint is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return ProbeResult{}, fmt.Errorf("dial asr grpc %q: %w", endpoint, err)
	}
	defer conn.Close()

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn.Connect()
	if err := waitForReady(probeCtx, conn); err != nil {
		return ProbeResult{}, fmt.Errorf("wait for asr grpc readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(probeCtx, &healthpb.HealthCheckRequest{
		Service: strings.TrimSpace(cfg.Service),
	})
	if err != nil {
		if status.Code(err) == codes.Unimplemented {
			return ProbeResult{Endpoint: endpoint}, nil
		}
		return ProbeResult{}, fmt.Errorf("asr health check: %w", err)
	}

	result := ProbeResult{Endpoint: endpoint, Status: resp.GetStatus().String()}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return result, fmt.Errorf("asr service %q is %s", cfg.Service, result.Status)
	}
	return result, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
