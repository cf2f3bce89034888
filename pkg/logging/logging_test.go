package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	originalOutput := logger.Out
	originalLevel := logger.GetLevel()
	logger.SetOutput(&buf)
	t.Cleanup(func() {
		logger.SetOutput(originalOutput)
		logger.SetLevel(originalLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	buf := captureOutput(t)

	SetLevel(InfoLevel)
	Debugf("Debug message")
	assert.Empty(t, buf.String())
	assert.False(t, IsDebug())

	buf.Reset()
	Infof("Info message")
	assert.Contains(t, buf.String(), "Info message")

	SetLevel(DebugLevel)
	assert.True(t, IsDebug())
}

func TestWithFields(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(DebugLevel)

	InfoWithFields(logrus.Fields{"peer": "10.0.0.2:1234", "role": "server"}, "peer adopted")

	out := buf.String()
	assert.Contains(t, out, "peer adopted")
	assert.Contains(t, out, "peer=\"10.0.0.2:1234\"")
	assert.Contains(t, out, "role=server")
}

func TestFieldHelpersRespectLevel(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WarnLevel)

	DebugWithFields(logrus.Fields{"from": "10.0.0.2:1234"}, "sock->tun: %d bytes", 20)
	assert.Empty(t, buf.String())

	WarnWithFields(logrus.Fields{"device": "tun1"}, "TUN device is down")
	assert.Contains(t, buf.String(), "device=tun1")
	assert.Contains(t, buf.String(), "level=warning")

	buf.Reset()
	SetLevel(DebugLevel)
	DebugWithFields(logrus.Fields{"from": "10.0.0.2:1234"}, "sock->tun: %d bytes", 20)
	assert.Contains(t, buf.String(), "sock->tun: 20 bytes")
	assert.Contains(t, buf.String(), "from=\"10.0.0.2:1234\"")

	buf.Reset()
	WithFields(logrus.Fields{"addr": ":8080"}).Warnf("health endpoint stopped")
	assert.Contains(t, buf.String(), "addr=\":8080\"")
}

func TestFatalWithFieldsUsesExitFunc(t *testing.T) {
	buf := captureOutput(t)
	code := -1
	SetExitFunc(func(c int) { code = c })
	defer SetExitFunc(nil)

	FatalWithFields(logrus.Fields{"op": "socket send", "role": "client"}, "forwarding stopped: %s", "boom")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "forwarding stopped: boom")
	assert.Contains(t, buf.String(), "op=\"socket send\"")
	assert.Contains(t, buf.String(), "role=client")
}

func TestSetFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(InfoLevel)

	require.NoError(t, SetFormat("json"))
	Infof("JSON formatted message")
	assert.Contains(t, buf.String(), "\"level\":\"info\"")
	assert.Contains(t, buf.String(), "\"msg\":\"JSON formatted message\"")

	require.NoError(t, SetFormat("text"))
	assert.Error(t, SetFormat("xml"))
}

func TestFatalUsesExitFunc(t *testing.T) {
	buf := captureOutput(t)
	code := -1
	SetExitFunc(func(c int) { code = c })
	defer SetExitFunc(nil)

	Fatalf("device write: short write %d/%d", 10, 20)

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "short write 10/20")
}

func TestFileLogging(t *testing.T) {
	captureOutput(t)
	tempDir := t.TempDir()

	err := EnableFileLogging(tempDir, "udptun.log", 10, 3, 7)
	require.NoError(t, err)
	defer logger.SetOutput(os.Stdout)

	SetLevel(InfoLevel)
	Infof("File log test message")

	content, err := os.ReadFile(filepath.Join(tempDir, "udptun.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "File log test message")
}
