// Package geyser maintains the upstream Yellowstone gRPC subscription. It
// holds exactly one active transaction stream, hands every transaction
// update to a handler, and recovers from any failure by reconnecting with
// exponential backoff.
package geyser

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pumpfun-relay/internal/observability"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// transactionFilterName labels the single filter of the subscription.
	transactionFilterName = "pump_fun"

	maxRecvMsgSize = 64 * 1024 * 1024
)

// FrameHandler consumes one transaction update. It runs on the subscriber
// goroutine, so it must never block on downstream consumers.
type FrameHandler func(*pb.SubscribeUpdateTransaction)

// Config holds the upstream connection parameters.
type Config struct {
	// Endpoint is the geyser URL, https scheme.
	Endpoint string
	// Token is the x-token credential; empty means unauthenticated.
	Token string
	// ProgramID is included verbatim as the filter's account-include entry.
	ProgramID string
}

// Subscriber owns the upstream subscription lifecycle.
type Subscriber struct {
	cfg     Config
	roots   *x509.CertPool
	handler FrameHandler
	logger  *slog.Logger
}

// NewSubscriber creates a subscriber. roots is the certificate pool used
// for TLS; pass the system pool loaded at startup.
func NewSubscriber(cfg Config, roots *x509.CertPool, handler FrameHandler, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:     cfg,
		roots:   roots,
		handler: handler,
		logger:  logger,
	}
}

// Run maintains the subscription until ctx is canceled. Every upstream
// failure is logged and followed by a reconnect: the delay starts at one
// second, doubles per consecutive failure up to thirty seconds, and resets
// once a session starts delivering messages. A server-side clean close is
// treated as a successful session, so the next attempt starts immediately.
func (s *Subscriber) Run(ctx context.Context) {
	bo := newBackoff()
	for {
		connected, err := s.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			bo.reset()
		}
		if err == nil {
			continue
		}

		delay := bo.fail()
		s.logger.Error("geyser subscription failed",
			slog.Any("error", err),
			slog.Duration("retry_in", delay),
		)
		observability.RecordReconnect()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// backoff is the reconnect delay policy: one second after the first
// failure, doubling per consecutive failure up to thirty seconds, back to
// one second after a successful session.
type backoff struct {
	delay time.Duration
}

func newBackoff() *backoff {
	return &backoff{delay: initialReconnectDelay}
}

// fail returns the delay to sleep before the next attempt and doubles the
// stored delay, saturating at maxReconnectDelay.
func (b *backoff) fail() time.Duration {
	d := b.delay
	b.delay *= 2
	if b.delay > maxReconnectDelay {
		b.delay = maxReconnectDelay
	}
	return d
}

// reset restores the initial delay.
func (b *backoff) reset() {
	b.delay = initialReconnectDelay
}

// subscribeOnce runs a single subscription session: dial, subscribe, and
// consume the stream until it fails or the server closes it. connected
// reports whether the session received at least one message, which is the
// signal for Run to reset its backoff.
func (s *Subscriber) subscribeOnce(ctx context.Context) (connected bool, err error) {
	target, err := grpcTarget(s.cfg.Endpoint)
	if err != nil {
		return false, err
	}

	s.logger.Info("connecting to geyser endpoint", slog.String("endpoint", s.cfg.Endpoint))

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(s.roots, "")),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	)
	if err != nil {
		return false, fmt.Errorf("create grpc client for %s: %w", target, err)
	}
	defer conn.Close()

	streamCtx := ctx
	if s.cfg.Token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "x-token", s.cfg.Token)
	}

	stream, err := pb.NewGeyserClient(conn).Subscribe(streamCtx)
	if err != nil {
		return false, fmt.Errorf("open subscribe stream: %w", err)
	}

	if err := stream.Send(s.subscribeRequest()); err != nil {
		return false, fmt.Errorf("send subscribe request: %w", err)
	}
	s.logger.Info("subscription request sent",
		slog.String("filter", transactionFilterName),
		slog.String("program", s.cfg.ProgramID),
	)

	for {
		update, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// The server closed the stream without a status error. The
				// session counts as successful, so backoff resets.
				s.logger.Error("geyser stream closed by server")
				return connected, nil
			}
			if st, ok := status.FromError(err); ok {
				s.logger.Error("geyser stream error",
					slog.String("code", st.Code().String()),
					slog.String("message", st.Message()),
					slog.Any("error", err),
				)
			}
			return connected, fmt.Errorf("receive update: %w", err)
		}
		connected = true

		if txUpdate, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_Transaction); ok {
			if tx := txUpdate.Transaction; tx != nil {
				s.handler(tx)
			}
		}
	}
}

// subscribeRequest builds the single request sent on each new stream: one
// transaction filter on the target program, votes and failed transactions
// excluded, at processed commitment.
func (s *Subscriber) subscribeRequest() *pb.SubscribeRequest {
	vote := false
	failed := false
	commitment := pb.CommitmentLevel_PROCESSED

	return &pb.SubscribeRequest{
		Transactions: map[string]*pb.SubscribeRequestFilterTransactions{
			transactionFilterName: {
				AccountInclude: []string{s.cfg.ProgramID},
				Vote:           &vote,
				Failed:         &failed,
			},
		},
		Commitment: &commitment,
	}
}

// grpcTarget converts the configured endpoint to a gRPC dial target,
// stripping the https scheme and defaulting the port to 443.
func grpcTarget(endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "https://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
		}
		if u.Port() != "" {
			return u.Host, nil
		}
		return u.Hostname() + ":443", nil
	}
	if endpoint == "" {
		return "", fmt.Errorf("empty geyser endpoint")
	}
	if strings.Contains(endpoint, ":") {
		return endpoint, nil
	}
	return endpoint + ":443", nil
}
