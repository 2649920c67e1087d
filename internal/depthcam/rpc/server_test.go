package rpc

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/testutil"
)

type fakeCamera struct {
	mu      sync.Mutex
	status  depthcam.Status
	starts  int
	stops   int
	saved   []string
	format  device.FileFormat
	scanErr error
	saveErr error
}

func (f *fakeCamera) Status() depthcam.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeCamera) StartScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.scanErr
}

func (f *fakeCamera) StopScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.scanErr
}

func (f *fakeCamera) SaveScan(format device.FileFormat, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.format = format
	f.saved = append(f.saved, filename)
	return nil
}

func newTestClient(t *testing.T, cam Camera, outputDir string) *Client {
	t.Helper()
	testutil.QuietLogs(t)

	lis := bufconn.Listen(1 << 20)
	l := NewListener("bufconn", NewServer(cam, outputDir, device.FormatOBJ))
	require.NoError(t, l.Serve(lis))
	t.Cleanup(l.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestServer_GetStatus(t *testing.T) {
	cam := &fakeCamera{status: depthcam.Status{
		Running:   true,
		RunID:     "run-1",
		Model:     "SR300",
		Frames:    42,
		ScanState: "scanning",
	}}
	client := newTestClient(t, cam, t.TempDir())

	st, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	fields := st.GetFields()
	assert.True(t, fields["running"].GetBoolValue())
	assert.Equal(t, "run-1", fields["run_id"].GetStringValue())
	assert.Equal(t, "SR300", fields["model"].GetStringValue())
	assert.Equal(t, float64(42), fields["frames"].GetNumberValue())
	assert.Equal(t, "scanning", fields["scan_state"].GetStringValue())
}

func TestServer_StartStop(t *testing.T) {
	cam := &fakeCamera{}
	client := newTestClient(t, cam, t.TempDir())

	require.NoError(t, client.StartScanning(context.Background()))
	require.NoError(t, client.StopScanning(context.Background()))
	assert.Equal(t, 1, cam.starts)
	assert.Equal(t, 1, cam.stops)
}

func TestServer_StartWithoutScanner(t *testing.T) {
	cam := &fakeCamera{scanErr: depthcam.ErrNoScanner}
	client := newTestClient(t, cam, t.TempDir())

	err := client.StartScanning(context.Background())
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestServer_SaveScan(t *testing.T) {
	dir := t.TempDir()
	cam := &fakeCamera{status: depthcam.Status{SessionID: "sess-1"}}
	client := newTestClient(t, cam, dir)

	path, err := client.SaveScan(context.Background(), "ply", "cup.ply")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cup.ply"), path)
	assert.Equal(t, device.FormatPLY, cam.format)

	path, err = client.SaveScan(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sess-1.obj"), path)
	assert.Equal(t, device.FormatOBJ, cam.format)
	assert.Len(t, cam.saved, 2)
}

func TestServer_SaveScanErrors(t *testing.T) {
	dir := t.TempDir()
	client := newTestClient(t, &fakeCamera{}, dir)

	_, err := client.SaveScan(context.Background(), "fbx", "a.fbx")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SaveScan(context.Background(), "obj", "../../escape.obj")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	failing := newTestClient(t, &fakeCamera{saveErr: depthcam.ErrNoScanner}, dir)
	_, err = failing.SaveScan(context.Background(), "obj", "a.obj")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestListener_StartStop(t *testing.T) {
	testutil.QuietLogs(t)

	l := NewListener("127.0.0.1:0", NewServer(&fakeCamera{}, t.TempDir(), device.FormatOBJ))
	assert.Nil(t, l.Addr())
	require.NoError(t, l.Start())
	assert.NotNil(t, l.Addr())
	assert.Error(t, l.Serve(bufconn.Listen(1024)), "second serve must fail")
	l.Stop()
	l.Stop()
}
