package historyv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tablehistory.v1.HistoryService"

// HistoryServiceServer is the server API for HistoryService.
type HistoryServiceServer interface {
	Update(context.Context, *UpdateRequest) (*UpdateResponse, error)
	ListHistory(context.Context, *ListHistoryRequest) (*PageResponse, error)
	ListDocumentHistory(context.Context, *ListDocumentHistoryRequest) (*PageResponse, error)
	ListSnapshot(context.Context, *ListSnapshotRequest) (*SnapshotResponse, error)
	Vacuum(context.Context, *VacuumRequest) (*VacuumResponse, error)
	GetWatermark(context.Context, *GetWatermarkRequest) (*GetWatermarkResponse, error)
	CreateTable(context.Context, *CreateTableRequest) (*CreateTableResponse, error)
	ListTables(context.Context, *ListTablesRequest) (*ListTablesResponse, error)
}

// UnimplementedHistoryServiceServer can be embedded for forward compatibility.
type UnimplementedHistoryServiceServer struct{}

func (UnimplementedHistoryServiceServer) Update(context.Context, *UpdateRequest) (*UpdateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Update not implemented")
}
func (UnimplementedHistoryServiceServer) ListHistory(context.Context, *ListHistoryRequest) (*PageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListHistory not implemented")
}
func (UnimplementedHistoryServiceServer) ListDocumentHistory(context.Context, *ListDocumentHistoryRequest) (*PageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListDocumentHistory not implemented")
}
func (UnimplementedHistoryServiceServer) ListSnapshot(context.Context, *ListSnapshotRequest) (*SnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSnapshot not implemented")
}
func (UnimplementedHistoryServiceServer) Vacuum(context.Context, *VacuumRequest) (*VacuumResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Vacuum not implemented")
}
func (UnimplementedHistoryServiceServer) GetWatermark(context.Context, *GetWatermarkRequest) (*GetWatermarkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetWatermark not implemented")
}
func (UnimplementedHistoryServiceServer) CreateTable(context.Context, *CreateTableRequest) (*CreateTableResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateTable not implemented")
}
func (UnimplementedHistoryServiceServer) ListTables(context.Context, *ListTablesRequest) (*ListTablesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTables not implemented")
}

// unaryMethod adapts a typed handler to a Struct-in, Struct-out gRPC method.
func unaryMethod[Req, Resp any](name string, call func(HistoryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				var r Req
				if err := FromStruct(req.(*structpb.Struct), &r); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				resp, err := call(srv.(HistoryServiceServer), ctx, &r)
				if err != nil {
					return nil, err
				}
				out, err := ToStruct(resp)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// HistoryService_ServiceDesc is the grpc.ServiceDesc for HistoryService.
var HistoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Update", HistoryServiceServer.Update),
		unaryMethod("ListHistory", HistoryServiceServer.ListHistory),
		unaryMethod("ListDocumentHistory", HistoryServiceServer.ListDocumentHistory),
		unaryMethod("ListSnapshot", HistoryServiceServer.ListSnapshot),
		unaryMethod("Vacuum", HistoryServiceServer.Vacuum),
		unaryMethod("GetWatermark", HistoryServiceServer.GetWatermark),
		unaryMethod("CreateTable", HistoryServiceServer.CreateTable),
		unaryMethod("ListTables", HistoryServiceServer.ListTables),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tablehistory/v1/history.proto",
}

// RegisterHistoryServiceServer registers srv on s.
func RegisterHistoryServiceServer(s grpc.ServiceRegistrar, srv HistoryServiceServer) {
	s.RegisterService(&HistoryService_ServiceDesc, srv)
}

// HistoryServiceClient is the client API for HistoryService.
type HistoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewHistoryServiceClient(cc grpc.ClientConnInterface) *HistoryServiceClient {
	return &HistoryServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	var resp Resp
	if err := FromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HistoryServiceClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[UpdateResponse](ctx, c.cc, "Update", in, opts)
}

func (c *HistoryServiceClient) ListHistory(ctx context.Context, in *ListHistoryRequest, opts ...grpc.CallOption) (*PageResponse, error) {
	return invoke[PageResponse](ctx, c.cc, "ListHistory", in, opts)
}

func (c *HistoryServiceClient) ListDocumentHistory(ctx context.Context, in *ListDocumentHistoryRequest, opts ...grpc.CallOption) (*PageResponse, error) {
	return invoke[PageResponse](ctx, c.cc, "ListDocumentHistory", in, opts)
}

func (c *HistoryServiceClient) ListSnapshot(ctx context.Context, in *ListSnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "ListSnapshot", in, opts)
}

func (c *HistoryServiceClient) Vacuum(ctx context.Context, in *VacuumRequest, opts ...grpc.CallOption) (*VacuumResponse, error) {
	return invoke[VacuumResponse](ctx, c.cc, "Vacuum", in, opts)
}

func (c *HistoryServiceClient) GetWatermark(ctx context.Context, in *GetWatermarkRequest, opts ...grpc.CallOption) (*GetWatermarkResponse, error) {
	return invoke[GetWatermarkResponse](ctx, c.cc, "GetWatermark", in, opts)
}

func (c *HistoryServiceClient) CreateTable(ctx context.Context, in *CreateTableRequest, opts ...grpc.CallOption) (*CreateTableResponse, error) {
	return invoke[CreateTableResponse](ctx, c.cc, "CreateTable", in, opts)
}

func (c *HistoryServiceClient) ListTables(ctx context.Context, in *ListTablesRequest, opts ...grpc.CallOption) (*ListTablesResponse, error) {
	return invoke[ListTablesResponse](ctx, c.cc, "ListTables", in, opts)
}
