package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuildReport(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewLogger(Config{Level: "debug"}, buf)
	assert.Nil(t, err)

	boot1 := log.With(zap.String("boot_id", "one"))
	boot1.Info("spawn", zap.Int("pid", 1), zap.String("path", "/init"))
	boot1.Info("fork", zap.Int("pid", 1), zap.Int("child", 2))
	boot1.Info("exec", zap.Int("pid", 2), zap.String("path", "/sh"))
	boot1.Info("exec failed", zap.Int("pid", 3), zap.String("path", "nope"), zap.Error(errors.New("exec nope: file does not exist")))
	boot1.Info("exit", zap.Int("pid", 3), zap.String("path", "/sh"), zap.Int("status", 1))
	boot1.Error("panic", zap.Int("pid", 4), zap.String("path", "/boom"), zap.String("panic", "oops"))
	boot1.Info("halt")

	boot2 := log.With(zap.String("boot_id", "two"))
	boot2.Warn("fork failed", zap.Int("pid", 2), zap.Error(errors.New("process table full")))
	boot2.Warn("halt", zap.Error(errors.New("init exited")))

	report, err := BuildReport(buf)
	assert.Nil(t, err)

	assert.Equal(t, 9, report.LogEntries)
	assert.Equal(t, 2, report.Boots)
	assert.Equal(t, 2, report.Events.Get("halt"))
	assert.Equal(t, 1, report.Execs.Get("/init"))
	assert.Equal(t, 1, report.Execs.Get("/sh"))
	assert.Equal(t, 1, report.ExecFailures.Get("nope", "exec nope: file does not exist"))
	assert.Equal(t, 1, report.ExitStatuses.Get("/sh", "1"))
	assert.Equal(t, 1, report.ForkFailures.Get("process table full"))
	assert.Equal(t, 1, report.Halts.Get("clean"))
	assert.Equal(t, 1, report.Halts.Get("init exited"))
	assert.Equal(t, []Panic{{BootID: "one", Pid: 4, Path: "/boom", Panic: "oops"}}, report.Panics)

	_, err = json.Marshal(report)
	assert.Nil(t, err)
}

func TestBuildReport_invalid(t *testing.T) {
	_, err := BuildReport(strings.NewReader("{not json"))
	assert.NotNil(t, err)
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("path", "status")
	ctr.Increment("/sh", "0")
	ctr.Increment("/sh", "0")
	ctr.Increment("/cat", "1")

	out, err := json.Marshal(ctr)
	assert.Nil(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"path": "/sh", "status": "0"}},
		{"count": 1, "event": {"path": "/cat", "status": "1"}}
	]`, string(out))

	assert.Panics(t, func() { ctr.Increment("/sh") })
}
