package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "alumnet.engagement.v1.EngagementService"

// ─── Messages ────────────────────────────────────────────────────────────────

// TransitionRequest addresses one proposal.
type TransitionRequest struct {
	Domain     string `json:"domain"`
	Kind       string `json:"kind"`
	ProposalID int64  `json:"proposalId"`
}

// AcceptResponse describes the engagement created by Accept. RemainingSlots
// is unset for unbounded listings.
type AcceptResponse struct {
	EngagementID   int64                  `json:"engagementId"`
	SourceKind     string                 `json:"sourceKind"`
	SourceID       int64                  `json:"sourceId"`
	RemainingSlots *wrapperspb.Int32Value `json:"remainingSlots,omitempty"`
}

// ProposalResponse is the proposal after Reject or Withdraw.
type ProposalResponse struct {
	ID          int64                  `json:"id"`
	Status      string                 `json:"status"`
	RespondedAt *timestamppb.Timestamp `json:"respondedAt,omitempty"`
}

// ToggleActiveRequest addresses one listing.
type ToggleActiveRequest struct {
	Domain    string `json:"domain"`
	ListingID int64  `json:"listingId"`
}

// ─── Service descriptor ──────────────────────────────────────────────────────

// EngagementServer is the server API of the engagement service.
type EngagementServer interface {
	Accept(context.Context, *TransitionRequest) (*AcceptResponse, error)
	Reject(context.Context, *TransitionRequest) (*ProposalResponse, error)
	Withdraw(context.Context, *TransitionRequest) (*ProposalResponse, error)
	ToggleActive(context.Context, *ToggleActiveRequest) (*wrapperspb.BoolValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngagementServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Accept", EngagementServer.Accept),
		unary("Reject", EngagementServer.Reject),
		unary("Withdraw", EngagementServer.Withdraw),
		unary("ToggleActive", EngagementServer.ToggleActive),
	},
	Metadata: "engagement.json",
}

// Register mounts srv on s.
func Register(s *grpc.Server, srv EngagementServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp any](method string, call func(EngagementServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(EngagementServer), ctx, req.(*Req))
			}
			if ic == nil {
				return h(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return ic(ctx, in, info, h)
		},
	}
}

// ─── Client ──────────────────────────────────────────────────────────────────

// Client calls an EngagementServer over a gRPC connection using the JSON
// codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Accept(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*AcceptResponse, error) {
	out := new(AcceptResponse)
	if err := c.invoke(ctx, "Accept", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Reject(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*ProposalResponse, error) {
	out := new(ProposalResponse)
	if err := c.invoke(ctx, "Reject", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Withdraw(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*ProposalResponse, error) {
	out := new(ProposalResponse)
	if err := c.invoke(ctx, "Withdraw", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleActive returns the listing's new is_active value.
func (c *Client) ToggleActive(ctx context.Context, in *ToggleActiveRequest, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "ToggleActive", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}
