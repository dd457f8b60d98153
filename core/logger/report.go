package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// LogEntry is one line of the JSON application log.
type LogEntry struct {
	Time    string   `json:"time"`
	Level   string   `json:"level"`
	Message string   `json:"msg"`
	BootID  string   `json:"boot_id"`
	Pid     int      `json:"pid"`
	PPid    int      `json:"ppid"`
	Child   int      `json:"child"`
	Path    string   `json:"path"`
	Argv    []string `json:"argv"`
	Status  *int     `json:"status"`
	Error   string   `json:"error"`
	Panic   string   `json:"panic"`
}

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Panic is a process that crashed.
type Panic struct {
	BootID string `json:"boot_id"`
	Pid    int    `json:"pid"`
	Path   string `json:"path"`
	Panic  string `json:"panic"`
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries int        `json:"log_entries"`
	Boots      int        `json:"boots"`
	Events     StrCounter `json:"events"`
	Levels     StrCounter `json:"levels"`

	Execs        StrCounter   `json:"execs"`
	ExecFailures *PathCounter `json:"exec_failures"`
	ExitStatuses *PathCounter `json:"exit_statuses"`
	ForkFailures StrCounter   `json:"fork_failures"`
	Halts        StrCounter   `json:"halts"`
	Panics       []Panic      `json:"panics"`

	boots map[string]bool
}

func NewReport() *Report {
	return &Report{
		ExecFailures: NewPathCounter("path", "error"),
		ExitStatuses: NewPathCounter("path", "status"),
		Panics:       []Panic{},
		boots:        make(map[string]bool),
	}
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	r.Events.Increment(le.Message)
	r.Levels.Increment(le.Level)

	if le.BootID != "" && !r.boots[le.BootID] {
		r.boots[le.BootID] = true
		r.Boots++
	}

	switch le.Message {
	case "exec", "spawn":
		r.Execs.Increment(le.Path)
	case "exec failed", "spawn failed":
		r.ExecFailures.Increment(le.Path, le.Error)
	case "exit":
		status := "unknown"
		if le.Status != nil {
			status = strconv.Itoa(*le.Status)
		}
		r.ExitStatuses.Increment(le.Path, status)
	case "fork failed":
		r.ForkFailures.Increment(le.Error)
	case "halt":
		reason := le.Error
		if reason == "" {
			reason = "clean"
		}
		r.Halts.Increment(reason)
	case "panic":
		r.Panics = append(r.Panics, Panic{
			BootID: le.BootID,
			Pid:    le.Pid,
			Path:   le.Path,
			Panic:  le.Panic,
		})
	}
}

// BuildReport reads a JSON lines log and summarizes it.
func BuildReport(r io.Reader) (*Report, error) {
	report := NewReport()
	if err := ReadJSONLinesLog(r, report.Update); err != nil {
		return nil, fmt.Errorf("couldn't read log: %w", err)
	}
	return report, nil
}
