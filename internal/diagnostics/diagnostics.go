// Package diagnostics renders a human-readable snapshot of one
// daemon's state for troubleshooting: a tail of its log file, whether
// its process is still alive, and its registry record (spec §4.6).
//
// Rendering is a pure function of filesystem and registry state and
// must never panic or return an error the caller has to handle — a
// failure to read any one piece degrades to a placeholder for that
// piece rather than failing the whole report.
package diagnostics

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/logtail"
	"github.com/mvnd-go/mvndc/internal/registry"
)

const placeholder = "(unavailable)"

const defaultTailLines = 40

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true)
	aliveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Report is the assembled snapshot for one daemon.
type Report struct {
	DaemonID string
	Info     *daemoninfo.Info // nil if not found in the registry
	Alive    bool
	LogTail  []string
}

// Render assembles a Report for daemonID and formats it as text. It
// never returns an error: any individual lookup failure is reflected
// in the rendered output as a placeholder rather than aborting.
func Render(reg *registry.Registry, logFile, daemonID string) string {
	report := Collect(reg, logFile, daemonID)
	return format(report)
}

// Collect gathers the raw pieces of a Report without formatting them,
// for callers that want structured access (e.g. a future JSON
// diagnostics mode).
func Collect(reg *registry.Registry, logFile, daemonID string) Report {
	report := Report{DaemonID: daemonID}

	if reg != nil {
		if daemons, err := reg.List(); err == nil {
			for i := range daemons {
				if daemons[i].ID == daemonID {
					info := daemons[i]
					report.Info = &info
					break
				}
			}
		}
	}

	if report.Info != nil {
		report.Alive = isProcessAlive(report.Info.PID)
	}

	report.LogTail = logtail.Lines(logFile, defaultTailLines)

	return report
}

func format(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("daemon"), r.DaemonID)

	if r.Info == nil {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("registry:"), placeholder)
	} else {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("address:"), r.Info.Address)
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("pid:"), r.Info.PID)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("state:"), r.Info.State)
		status := aliveStyle.Render("alive")
		if !r.Alive {
			status = deadStyle.Render("dead")
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("process:"), status)
	}

	fmt.Fprintf(&b, "%s\n", labelStyle.Render("log tail:"))
	if len(r.LogTail) == 0 {
		b.WriteString(placeholder + "\n")
	} else {
		for _, line := range r.LogTail {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// isProcessAlive reports whether pid still refers to a running
// process, via the platform liveness probe. A lookup failure is
// treated as "dead" — diagnostics never propagates an error here.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	alive, err := processAlive(proc)
	return err == nil && alive
}

