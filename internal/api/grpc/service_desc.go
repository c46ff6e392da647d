package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// WorkflowServiceDesc is the grpc.ServiceDesc for WorkflowService. Messages are
// plain Go structs carried by the JSON codec.
var WorkflowServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkflowServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateRequest", WorkflowServer.CreateRequest),
		unary("GetRequest", WorkflowServer.GetRequest),
		unary("ApproveAsTeamLead", WorkflowServer.ApproveAsTeamLead),
		unary("RejectAsTeamLead", WorkflowServer.RejectAsTeamLead),
		unary("ApproveAsAdmin", WorkflowServer.ApproveAsAdmin),
		unary("RejectAsAdmin", WorkflowServer.RejectAsAdmin),
		unary("TransitionRequestStatus", WorkflowServer.TransitionRequestStatus),
		unary("RegisterEquipment", WorkflowServer.RegisterEquipment),
		unary("GetEquipment", WorkflowServer.GetEquipment),
		unary("TransitionEquipment", WorkflowServer.TransitionEquipment),
		unary("QueryEquipment", WorkflowServer.QueryEquipment),
		unary("Assign", WorkflowServer.Assign),
		unary("Unassign", WorkflowServer.Unassign),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListHistory",
			Handler:       listHistoryHandler,
			ServerStreams: true,
		},
	},
	Metadata: "equiptrack/v1/workflow",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor for one request/response call and maps
// its error to a gRPC status.
func unary[Req, Resp any](name string, call func(WorkflowServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	invoke := func(srv any, ctx context.Context, in *Req) (any, error) {
		out, err := call(srv.(WorkflowServer), ctx, in)
		if err != nil {
			return nil, toStatus(ctx, err)
		}
		return out, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return invoke(srv, ctx, req.(*Req))
			})
		},
	}
}

func listHistoryHandler(srv any, stream grpc.ServerStream) error {
	in := new(ListHistoryRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	if err := srv.(WorkflowServer).ListHistory(in, stream); err != nil {
		return toStreamStatus(stream, err)
	}
	return nil
}
