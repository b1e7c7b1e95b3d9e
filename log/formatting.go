package log

import (
	"fmt"
	"sync/atomic"
)

const (
	rightArrow = "▶"
	maxCount   = 999
)

var counter uint32

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

func nextCount() uint32 {
	return atomic.AddUint32(&counter, 1) % (maxCount + 1)
}

func formatLine(line *logLine) string {
	if line.line == 0 {
		return fmt.Sprintf(
			"%s ? %s %s %03d %s",
			line.timestamp.Format("060102 15:04:05.000"),
			rightArrow,
			line.level.String(),
			nextCount(),
			line.msg,
		)
	}

	// only keep the end of the file path
	fPartStart := len(line.file) - 10
	if fPartStart < 0 {
		fPartStart = 0
	}
	return fmt.Sprintf(
		"%s %s:%03d %s %s %03d %s",
		line.timestamp.Format("060102 15:04:05.000"),
		line.file[fPartStart:],
		line.line,
		rightArrow,
		line.level.String(),
		nextCount(),
		line.msg,
	)
}
