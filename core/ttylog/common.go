// Package ttylog records console sessions and plays them back.
package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/tinyos/core/kernel"
)

// FD is the descriptor an event was seen on.
type FD int

const (
	FdStdin  FD = 0
	FdStdout FD = 1
	FdStderr FD = 2
)

// Entry is a single recorded event.
type Entry struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It reutrns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	return newPlayback(maxSleep, time.Sleep, next)
}

func newPlayback(maxSleep time.Duration, sleep func(time.Duration), next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(logEntry *Entry) error {
		once.Do(func() {
			prevTimeMicros = logEntry.TimestampMicros
		})

		delta := logEntry.TimestampMicros - prevTimeMicros
		prevTimeMicros = logEntry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			sleep(sleepDuration)
		}

		return next(logEntry)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(logEntry *Entry) error {
		if logEntry.Fd == FdStdin {
			return nil
		}
		_, err := w.Write(logEntry.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		logEntry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(logEntry); err != nil {
			return err
		}
	}
}

// Recorder wraps a machine's console and copies everything that crosses it
// to a sink.
type Recorder struct {
	*kernel.VIOAdapter
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

func (r *Recorder) recordIO(mockFd FD, data []byte, dest func([]byte) (int, error)) (int, error) {
	eventTime := r.now()
	amount, err := dest(data)
	if amount > 0 {
		r.mutex.Lock()
		e2 := r.output(&Entry{
			TimestampMicros: eventTime.UnixMicro(),
			Fd:              mockFd,
			Data:            append([]byte(nil), data[:amount]...),
		})
		r.mutex.Unlock()
		if e2 != nil {
			log.Print(e2)
		}
	}
	return amount, err
}

var _ kernel.VIO = (*Recorder)(nil)

type recorderReadCloser struct {
	r       *Recorder
	mockFd  FD
	wrapped io.ReadCloser
}

var _ io.ReadCloser = (*recorderReadCloser)(nil)

func (rc *recorderReadCloser) Read(p []byte) (int, error) {
	return rc.r.recordIO(rc.mockFd, p, rc.wrapped.Read)
}

func (rc *recorderReadCloser) Close() error {
	return rc.wrapped.Close()
}

type recorderWriteCloser struct {
	r       *Recorder
	mockFd  FD
	wrapped io.WriteCloser
}

var _ io.WriteCloser = (*recorderWriteCloser)(nil)

func (rc *recorderWriteCloser) Write(p []byte) (int, error) {
	return rc.r.recordIO(rc.mockFd, p, rc.wrapped.Write)
}

func (rc *recorderWriteCloser) Close() error {
	return rc.wrapped.Close()
}

// NewRecorder creates a logger that forwards all events to output.
func NewRecorder(toWrap kernel.VIO, output LogSink) *Recorder {
	recorder := &Recorder{
		output: output,
		now:    time.Now,
	}

	recorder.VIOAdapter = kernel.NewVIOAdapter(
		&recorderReadCloser{mockFd: FdStdin, r: recorder, wrapped: toWrap.Stdin()},
		&recorderWriteCloser{mockFd: FdStdout, r: recorder, wrapped: toWrap.Stdout()},
		&recorderWriteCloser{mockFd: FdStderr, r: recorder, wrapped: toWrap.Stderr()},
	)

	return recorder
}
