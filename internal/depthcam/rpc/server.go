package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/scan"
	"github.com/banshee-data/depthscan/internal/monitoring"
	"github.com/banshee-data/depthscan/internal/security"
)

var logf = monitoring.Prefixed("gRPC")

// Camera is the part of depthcam.Camera the service drives.
type Camera interface {
	Status() depthcam.Status
	StartScanning() error
	StopScanning() error
	SaveScan(format device.FileFormat, filename string) error
}

// Ensure Server implements the gRPC interface.
var _ ScanControlServer = (*Server)(nil)

// Server implements ScanControl on a Camera.
type Server struct {
	cam           Camera
	outputDir     string
	defaultFormat device.FileFormat
}

// NewServer returns a Server saving scans under outputDir. Requests without
// a format use defaultFormat.
func NewServer(cam Camera, outputDir string, defaultFormat device.FileFormat) *Server {
	return &Server{cam: cam, outputDir: outputDir, defaultFormat: defaultFormat}
}

func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := statusStruct(s.cam.Status())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return st, nil
}

func (s *Server) StartScanning(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.cam.StartScanning(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) StopScanning(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.cam.StopScanning(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) SaveScan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	format := s.defaultFormat
	if name := fields["format"].GetStringValue(); name != "" {
		f, err := device.ParseFileFormat(name)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		format = f
	}

	path, err := security.ResolveScanPath(s.outputDir, fields["filename"].GetStringValue(), s.cam.Status().SessionID, format.String())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.cam.SaveScan(format, path); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"format": format.String(), "filename": path})
}

func statusStruct(st depthcam.Status) (*structpb.Struct, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, depthcam.ErrNoScanner), errors.Is(err, depthcam.ErrRunning):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, scan.ErrNoFilename), errors.Is(err, security.ErrPathEscape):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logf("%s %s %v", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}

// Listener runs a grpc.Server with ScanControl registered.
type Listener struct {
	addr     string
	srv      *Server
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

func NewListener(addr string, srv *Server) *Listener {
	return &Listener{addr: addr, srv: srv}
}

// Start binds addr and serves in the background.
func (l *Listener) Start() error {
	lis, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return l.Serve(lis)
}

// Serve serves on lis in the background.
func (l *Listener) Serve(lis net.Listener) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("gRPC listener already running")
	}
	l.listener = lis
	l.server = grpc.NewServer(grpc.UnaryInterceptor(logUnary))
	RegisterService(l.server, l.srv)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		logf("listening on %s", lis.Addr())
		if err := l.server.Serve(lis); err != nil && l.running.Load() {
			logf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Stop gracefully stops the server.
func (l *Listener) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.server.GracefulStop()
	l.wg.Wait()
	logf("stopped")
}
