package ttylog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// AsciicastFileExt holds the suggested file extension for asciicast files.
const AsciicastFileExt = "cast"

const (
	asciicastVersion = 2

	defaultWidth  = 80
	defaultHeight = 24
)

// AsciicastHeader is the first line of an asciicast v2 recording.
//
// See: https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
type AsciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// MachineHeader describes a recording of the console of the machine bootID.
func MachineHeader(bootID, term string, width, height int) AsciicastHeader {
	env := map[string]string{"SHELL": "/sh"}
	if term != "" {
		env["TERM"] = term
	}
	return AsciicastHeader{
		Width:  width,
		Height: height,
		Title:  fmt.Sprintf("tinyos %s", bootID),
		Env:    env,
	}
}

func writeJSONLine(w io.Writer, v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}

// NewAsciicastLogSink creates a LogSink writing asciicast v2. The header is
// written before the first event, a missing timestamp or size is filled in.
func NewAsciicastLogSink(w io.Writer, header AsciicastHeader) LogSink {
	var start int64
	wroteHeader := false

	return func(entry *Entry) error {
		if !wroteHeader {
			start = entry.TimestampMicros
			header.Version = asciicastVersion
			if header.Width <= 0 {
				header.Width = defaultWidth
			}
			if header.Height <= 0 {
				header.Height = defaultHeight
			}
			if header.Timestamp == 0 {
				header.Timestamp = time.UnixMicro(start).Unix()
			}
			if err := writeJSONLine(w, &header); err != nil {
				return err
			}
			wroteHeader = true
		}

		event := asciicastEvent{
			Time: microsecondsToSeconds(entry.TimestampMicros - start),
			Code: "o",
			Data: string(entry.Data),
		}
		if entry.Fd == FdStdin {
			event.Code = "i"
		}
		return writeJSONLine(w, &event)
	}
}

// AsciicastLogSource reads events back from an asciicast v2 recording.
type AsciicastLogSource struct {
	r *bufio.Reader

	header    *AsciicastHeader
	headerErr error
}

var _ LogSource = (*AsciicastLogSource)(nil)

// NewAsciicastLogSource reads log events from an Asciicast formatted file.
func NewAsciicastLogSource(r io.Reader) *AsciicastLogSource {
	return &AsciicastLogSource{r: bufio.NewReader(r)}
}

// Header parses the recording's header, it's read at most once.
func (src *AsciicastLogSource) Header() (AsciicastHeader, error) {
	if src.header == nil && src.headerErr == nil {
		src.header = &AsciicastHeader{}
		line, err := src.r.ReadBytes('\n')
		switch {
		case err != nil && len(line) == 0:
			src.headerErr = err
		default:
			src.headerErr = json.Unmarshal(line, src.header)
		}
		if src.headerErr == nil && src.header.Version != asciicastVersion {
			src.headerErr = fmt.Errorf("unsupported asciicast version %d", src.header.Version)
		}
	}
	return *src.header, src.headerErr
}

// Next gets the next log entry, it returns io.EOF if there are no more.
// Header errors aren't fatal to reading events.
func (src *AsciicastLogSource) Next() (*Entry, error) {
	src.Header()

	for {
		line, err := src.r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		if len(line) == 1 {
			continue
		}

		var event asciicastEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, err
		}

		// Asciicast has no stderr, it was collapsed into stdout when recorded.
		var fd FD
		switch event.Code {
		case "o":
			fd = FdStdout
		case "i":
			fd = FdStdin
		default:
			continue
		}

		return &Entry{
			TimestampMicros: secondsToMicroseconds(event.Time),
			Fd:              fd,
			Data:            []byte(event.Data),
		}, nil
	}
}

// asciicastEvent is a [time, code, data] line.
type asciicastEvent struct {
	Time float64
	Code string
	Data string
}

func (e *asciicastEvent) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("malformed event, expected 3 entries got %d", len(fields))
	}
	if err := json.Unmarshal(fields[0], &e.Time); err != nil {
		return fmt.Errorf("malformed event time: %w", err)
	}
	if err := json.Unmarshal(fields[1], &e.Code); err != nil {
		return fmt.Errorf("malformed event code: %w", err)
	}
	if err := json.Unmarshal(fields[2], &e.Data); err != nil {
		return fmt.Errorf("malformed event data: %w", err)
	}
	return nil
}

func (e *asciicastEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]interface{}{e.Time, e.Code, e.Data})
}

func microsecondsToSeconds(microseconds int64) (seconds float64) {
	return (float64(microseconds) * float64(time.Microsecond)) / float64(time.Second)
}

func secondsToMicroseconds(seconds float64) (microseconds int64) {
	return int64(float64(seconds)*float64(time.Second)) / int64(time.Microsecond)
}
