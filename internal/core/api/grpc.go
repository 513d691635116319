package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service wiring for approvalgate.v1.ApprovalService.
 *
 * Requests and responses are google.protobuf.Struct, so the service needs no
 * generated code: the descriptor below is what protoc-gen-go-grpc would emit
 * for
 *
 *   service ApprovalService {
 *     rpc FindMatchingRule(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc RequiresApproval(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc EvaluateConditions(google.protobuf.Struct) returns (google.protobuf.Struct);
 *   }
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "approvalgate.v1.ApprovalService"

// Full method names, used for interceptor skip lists and logging.
const (
	FindMatchingRuleMethod   = "/" + ServiceName + "/FindMatchingRule"
	RequiresApprovalMethod   = "/" + ServiceName + "/RequiresApproval"
	EvaluateConditionsMethod = "/" + ServiceName + "/EvaluateConditions"
)

// ApprovalServiceServer is the server API for ApprovalService.
type ApprovalServiceServer interface {
	FindMatchingRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequiresApproval(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateConditions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ ApprovalServiceServer = (*ApprovalService)(nil)

// RegisterApprovalServiceServer registers srv with s.
func RegisterApprovalServiceServer(s grpc.ServiceRegistrar, srv ApprovalServiceServer) {
	s.RegisterService(&ApprovalServiceDesc, srv)
}

// unaryHandler adapts one ApprovalServiceServer method to a grpc.MethodHandler.
func unaryHandler(fullMethod string, call func(ApprovalServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ApprovalServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ApprovalServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ApprovalServiceDesc is the grpc.ServiceDesc for ApprovalService.
var ApprovalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FindMatchingRule",
			Handler:    unaryHandler(FindMatchingRuleMethod, ApprovalServiceServer.FindMatchingRule),
		},
		{
			MethodName: "RequiresApproval",
			Handler:    unaryHandler(RequiresApprovalMethod, ApprovalServiceServer.RequiresApproval),
		},
		{
			MethodName: "EvaluateConditions",
			Handler:    unaryHandler(EvaluateConditionsMethod, ApprovalServiceServer.EvaluateConditions),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "approvalgate/v1/approval.proto",
}

// ApprovalServiceClient is the client API for ApprovalService.
type ApprovalServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewApprovalServiceClient creates a client over cc.
func NewApprovalServiceClient(cc grpc.ClientConnInterface) *ApprovalServiceClient {
	return &ApprovalServiceClient{cc: cc}
}

func (c *ApprovalServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FindMatchingRule calls ApprovalService.FindMatchingRule.
func (c *ApprovalServiceClient) FindMatchingRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FindMatchingRuleMethod, in, opts...)
}

// RequiresApproval calls ApprovalService.RequiresApproval.
func (c *ApprovalServiceClient) RequiresApproval(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RequiresApprovalMethod, in, opts...)
}

// EvaluateConditions calls ApprovalService.EvaluateConditions.
func (c *ApprovalServiceClient) EvaluateConditions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, EvaluateConditionsMethod, in, opts...)
}
