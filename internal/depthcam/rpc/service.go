// Package rpc exposes scan control over gRPC. Messages are protobuf
// well-known types so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "depthscan.v1.ScanControl"

const (
	methodGetStatus     = "/" + ServiceName + "/GetStatus"
	methodStartScanning = "/" + ServiceName + "/StartScanning"
	methodStopScanning  = "/" + ServiceName + "/StopScanning"
	methodSaveScan      = "/" + ServiceName + "/SaveScan"
)

// ScanControlServer is the server API for the ScanControl service.
type ScanControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StartScanning(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	StopScanning(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// SaveScan takes {"format": "obj", "filename": "cup.obj"} and returns
	// the resolved path it will write.
	SaveScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ScanControl for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScanControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "StartScanning", Handler: startScanningHandler},
		{MethodName: "StopScanning", Handler: stopScanningHandler},
		{MethodName: "SaveScan", Handler: saveScanHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depthscan/v1/scan_control",
}

// RegisterService registers srv on s.
func RegisterService(s grpc.ServiceRegistrar, srv ScanControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(ScanControlServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScanControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ScanControlServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	getStatusHandler     = unary(methodGetStatus, ScanControlServer.GetStatus)
	startScanningHandler = unary(methodStartScanning, ScanControlServer.StartScanning)
	stopScanningHandler  = unary(methodStopScanning, ScanControlServer.StopScanning)
	saveScanHandler      = unary(methodSaveScan, ScanControlServer.SaveScan)
)

// Client calls a remote ScanControl service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartScanning(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodStartScanning, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *Client) StopScanning(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodStopScanning, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

// SaveScan requests a reconstruction and returns the path the server will
// write.
func (c *Client) SaveScan(ctx context.Context, format, filename string, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"format": format, "filename": filename})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodSaveScan, in, out, opts...); err != nil {
		return "", err
	}
	return out.GetFields()["filename"].GetStringValue(), nil
}
