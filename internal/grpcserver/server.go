// Package grpcserver implements the EngagementService gRPC server.
//
// It delegates all business logic to lifecycle.Service and handles
// only the gRPC transport concerns: metadata extraction, error mapping,
// and type conversion between the domain model and wire messages.
package grpcserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"alumnet/engagement-service/internal/lifecycle"
)

// Server implements EngagementServer.
type Server struct {
	svc *lifecycle.Service
	log *zap.Logger
}

// NewServer constructs a gRPC Server backed by the given lifecycle.Service.
func NewServer(svc *lifecycle.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// Accept turns a pending proposal into an engagement.
func (s *Server) Accept(ctx context.Context, req *TransitionRequest) (*AcceptResponse, error) {
	caller, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	d, k, err := parseTarget(req.Domain, req.Kind)
	if err != nil {
		return nil, err
	}

	res, err := s.svc.Accept(ctx, caller, d, k, req.ProposalID)
	if err != nil {
		return nil, s.fail(err)
	}

	e := res.Engagement
	out := &AcceptResponse{
		EngagementID: e.ID,
		SourceKind:   string(e.Source.Kind()),
		SourceID:     e.Source.ID(),
	}
	if res.RemainingSlots != nil {
		out.RemainingSlots = wrapperspb.Int32(int32(*res.RemainingSlots))
	}
	return out, nil
}

// Reject closes a pending proposal on behalf of its counterparty.
func (s *Server) Reject(ctx context.Context, req *TransitionRequest) (*ProposalResponse, error) {
	return s.resolve(ctx, req, s.svc.Reject)
}

// Withdraw closes a pending proposal on behalf of its initiator.
func (s *Server) Withdraw(ctx context.Context, req *TransitionRequest) (*ProposalResponse, error) {
	return s.resolve(ctx, req, s.svc.Withdraw)
}

type resolveFunc func(context.Context, lifecycle.Caller, lifecycle.Domain, lifecycle.ProposalKind, int64) (*lifecycle.Proposal, error)

func (s *Server) resolve(ctx context.Context, req *TransitionRequest, fn resolveFunc) (*ProposalResponse, error) {
	caller, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	d, k, err := parseTarget(req.Domain, req.Kind)
	if err != nil {
		return nil, err
	}

	p, err := fn(ctx, caller, d, k, req.ProposalID)
	if err != nil {
		return nil, s.fail(err)
	}
	out := &ProposalResponse{ID: p.ID, Status: string(p.Status)}
	if p.RespondedAt != nil {
		out.RespondedAt = timestamppb.New(*p.RespondedAt)
	}
	return out, nil
}

// ToggleActive flips a listing's is_active flag.
func (s *Server) ToggleActive(ctx context.Context, req *ToggleActiveRequest) (*wrapperspb.BoolValue, error) {
	caller, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	d, err := lifecycle.ParseDomain(req.Domain)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	active, err := s.svc.ToggleActive(ctx, caller, d, req.ListingID)
	if err != nil {
		return nil, s.fail(err)
	}
	return wrapperspb.Bool(active), nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// callerFromCtx extracts the x-user-id and x-user-role values forwarded by
// the gateway via gRPC metadata.
func callerFromCtx(ctx context.Context) (lifecycle.Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return lifecycle.Caller{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	ids, roles := md.Get("x-user-id"), md.Get("x-user-role")
	if len(ids) == 0 || ids[0] == "" {
		return lifecycle.Caller{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	if len(roles) == 0 || roles[0] == "" {
		return lifecycle.Caller{}, status.Error(codes.Unauthenticated, "missing x-user-role metadata")
	}
	id, err := strconv.ParseInt(ids[0], 10, 64)
	if err != nil || id <= 0 {
		return lifecycle.Caller{}, status.Error(codes.Unauthenticated, "invalid x-user-id metadata")
	}
	role, err := lifecycle.ParseRole(roles[0])
	if err != nil {
		return lifecycle.Caller{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return lifecycle.Caller{Role: role, ProfileID: id}, nil
}

func parseTarget(domain, kind string) (lifecycle.Domain, lifecycle.ProposalKind, error) {
	d, err := lifecycle.ParseDomain(domain)
	if err != nil {
		return "", "", status.Error(codes.InvalidArgument, err.Error())
	}
	k, err := lifecycle.ParseProposalKind(kind)
	if err != nil {
		return "", "", status.Error(codes.InvalidArgument, err.Error())
	}
	return d, k, nil
}

var codeFor = map[lifecycle.Code]codes.Code{
	lifecycle.CodeNotFound:     codes.NotFound,
	lifecycle.CodeInvalidState: codes.FailedPrecondition,
	lifecycle.CodeForbidden:    codes.PermissionDenied,
	lifecycle.CodeConflict:     codes.AlreadyExists,
	lifecycle.CodeValidation:   codes.InvalidArgument,
}

// fail logs unclassified errors before hiding them behind codes.Internal.
func (s *Server) fail(err error) error {
	if lifecycle.CodeOf(err) == lifecycle.CodeInternal {
		s.log.Error("engagement operation failed", zap.Error(err))
	}
	return toGRPCError(err)
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	var le *lifecycle.Error
	if errors.As(err, &le) {
		if c, ok := codeFor[le.Code]; ok {
			return status.Error(c, le.Msg)
		}
	}
	return status.Error(codes.Internal, "internal server error")
}

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		log.Info("gRPC call", fields...)
		return resp, err
	}
}
