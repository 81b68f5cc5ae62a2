package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nerrad567/mqttscope/internal/session"
)

// echoTimeFormat is the clock shown in front of each echoed line.
const echoTimeFormat = "15:04:05.000"

// Echo writes per-connection activity lines to a terminal, one line each,
// with the level colored.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Echo struct {
	mu    sync.Mutex
	out   io.Writer
	names map[string]string
}

// NewEcho creates an Echo writing to out.
func NewEcho(out io.Writer) *Echo {
	return &Echo{
		out:   out,
		names: make(map[string]string),
	}
}

// SetName sets the label shown for a connection id. Lines for ids without
// a name are labelled with the id itself.
func (e *Echo) SetName(id, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		delete(e.names, id)
		return
	}
	e.names[id] = name
}

// Line writes one activity line for connection id.
func (e *Echo) Line(id string, line session.LogLine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	label := id
	if name, ok := e.names[id]; ok {
		label = name
	}
	_, _ = io.WriteString(e.out, formatLine(label, line))
}

func formatLine(label string, line session.LogLine) string {
	return fmt.Sprintf("%s | %-5s | %s %s\n",
		color.GreenString(line.Time.Format(echoTimeFormat)),
		levelString(line.Level),
		color.CyanString("["+label+"]"),
		line.Text,
	)
}

func levelString(level session.LogLevel) string {
	text := strings.ToUpper(string(level))
	switch level {
	case session.LogDebug:
		return color.MagentaString(text)
	case session.LogInfo:
		return color.BlueString(text)
	case session.LogWarn:
		return color.YellowString(text)
	case session.LogError:
		return color.RedString(text)
	default:
		return text
	}
}
