package filestore

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Logger is the reduced logging interface storage backends depend on.
// Developer Notes: kept deliberately small so that any structured logger can
// be adapted without this package importing one. Idiomatically, interfaces
// are defined by the package that uses them; accept interfaces, return
// concrete types.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
}

// OperationLog is the structured record emitted for every storage operation.
// In DEBUG mode it can be exported to a file or printed to the terminal.
type OperationLog struct {
	Operation string  `json:"operation"`
	Duration  int64   `json:"duration"`
	Status    *string `json:"status"`
	Location  string  `json:"location,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	Message   *string `json:"message,omitempty"`
}

var regexpSpaces = regexp.MustCompile(`\s+`)

func cleanString(s *string) string {
	if s == nil {
		return ""
	}

	return strings.TrimSpace(regexpSpaces.ReplaceAllString(*s, " "))
}

func (ol *OperationLog) PrettyPrint(writer io.Writer) {
	fmt.Fprintf(writer, "\u001B[38;5;8m%-32s \u001B[38;5;148m%-6s\u001B[0m %8d\u001B[38;5;8mµs\u001B[0m %-10s \u001B[0m %-48s \n",
		cleanString(&ol.Operation), ol.Provider, ol.Duration, cleanString(ol.Status), cleanString(ol.Message))
}
