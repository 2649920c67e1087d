package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("frame %d", 7)
	assert.Equal(t, []string{"frame 7"}, got)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, got, 1, "no-op logger must not reach the previous logger")
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	logf := Prefixed("depthcam")
	logf("started %s", "loop")
	assert.Equal(t, "[depthcam] started loop", got)
}

func TestOnceReporter(t *testing.T) {
	var msgs []string
	r := NewOnceReporter(ReporterFunc(func(msg string) { msgs = append(msgs, msg) }))

	r.Report("No RealSense camera detected")
	r.Report("No RealSense camera detected")
	r.Report("scan saved")

	assert.Equal(t, []string{"No RealSense camera detected", "scan saved"}, msgs)
}

func TestOnceReporter_NilNextUsesLog(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	r := &OnceReporter{}
	r.Report("hello")
	assert.Equal(t, "[report] hello", got)
}
