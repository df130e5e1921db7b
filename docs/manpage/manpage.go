// Package manpage generates a roff-formatted man page for host-pulse.
//
// The OPTIONS and KEYBINDINGS sections are built from the registered
// command-line flags and the dashboard key map, so the page stays in sync
// with the binary.
//
// Usage:
//
//	host-pulse -man | man -l -
//	host-pulse -man > ~/.local/share/man/man1/host-pulse.1
package manpage

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/display/tui"
)

// Generate produces a complete roff-formatted man(1) page. The version,
// commit, and date parameters are passed from the build-time linker
// variables. Options are listed from fs in lexical order.
func Generate(fs *flag.FlagSet, version, commit, date string) string {
	var b strings.Builder

	writeHeader(&b, version)
	writeName(&b)
	writeSynopsis(&b)
	writeDescription(&b)
	writeOptions(&b, fs)
	writeKeybindings(&b)
	writeConfiguration(&b)
	writeSignals(&b)
	writeFiles(&b)
	writeExamples(&b)
	writeExitStatus(&b)
	writeSeeAlso(&b)
	writeAuthors(&b)
	writeFooter(&b, version, commit, date)

	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	s = strings.ReplaceAll(s, `.`, `\&.`)
	return s
}

func writeHeader(b *strings.Builder, version string) {
	month := time.Now().Format("January 2006")
	fmt.Fprintf(b, ".TH HOST-PULSE 1 \"%s\" \"host-pulse %s\" \"User Commands\"\n", month, version)
}

func writeName(b *strings.Builder) {
	b.WriteString(`.SH NAME
host\-pulse \- host metrics sampler with debounced threshold alerts
`)
}

func writeSynopsis(b *strings.Builder) {
	b.WriteString(`.SH SYNOPSIS
.B host\-pulse
[\fIOPTIONS\fR]
`)
}

func writeDescription(b *strings.Builder) {
	b.WriteString(`.SH DESCRIPTION
.B host\-pulse
samples CPU usage, memory usage, disk usage and CPU temperature at a fixed
interval. Each metric is compared against its threshold. A metric that stays
above its threshold for the whole grace period raises an alert, which is
cleared on the first sample back at or below the threshold.
.PP
The tool runs in one of two modes:
.IP \(bu 2
.B Headless mode
(default): samples in the foreground, logging to the rotating log file and
to stderr until interrupted.
.IP \(bu 2
.B Dashboard mode
(\fB\-tui\fR): shows one card per available metric, a CPU/RAM history chart,
threshold sliders and the alert log. Slider edits take effect on the next
sample.
.PP
Both modes rewrite a status file after every sample, which
\fB\-health\fR reads.
`)
}

func writeOptions(b *strings.Builder, fs *flag.FlagSet) {
	b.WriteString(".SH OPTIONS\n")
	if fs == nil {
		return
	}
	fs.VisitAll(func(f *flag.Flag) {
		b.WriteString(".TP\n")
		name, usage := flag.UnquoteUsage(f)
		if name != "" {
			fmt.Fprintf(b, ".BR \\-%s \" \\fI%s\\fR\"\n", roffEscape(f.Name), name)
		} else {
			fmt.Fprintf(b, ".B \\-%s\n", roffEscape(f.Name))
		}
		b.WriteString(roffEscape(usage) + "\n")
	})
}

func writeKeybindings(b *strings.Builder) {
	b.WriteString(`.SH KEYBINDINGS
Active in the dashboard (\fB\-tui\fR). The mouse wheel over a slider moves
it; a click on a card or slider selects it.
`)
	for _, k := range tui.Bindings() {
		keys := strings.Join(k.Keys(), ", ")
		fmt.Fprintf(b, ".TP\n.B %s\n%s\n", roffEscape(keys), k.Help().Desc)
	}
}

func writeConfiguration(b *strings.Builder) {
	b.WriteString(`.SH CONFIGURATION
Configuration is read from a YAML file at
.B ~/.config/host\-pulse/config.yaml
by default, or from the path specified with \fB\-config\fR. Missing keys take
their defaults. Edits to the thresholds section are picked up while running;
an invalid edit is logged and ignored.
.SS sampling
.TP
.B interval
Time between samples. Default: "2s".
.TP
.B timeout
Bound on one sampling call; must be shorter than the interval. Default: "1s".
.TP
.B escalate_after
Consecutive failed samples after which failures are logged as errors. Default: 3.
.TP
.B source
"auto", "procfs" or "psutil". Default: "auto" (procfs on Linux).
.TP
.B disk_path
Filesystem whose usage is reported. Default: / (the system drive on Windows).
.TP
.B history_size
Samples kept for the chart. Default: 60.
.SS thresholds
.TP
.B cpu, ram, disk
Percent thresholds in [0, 100]. Default: 80.
.TP
.B temp
Temperature threshold in degrees Celsius. Default: 70.
.TP
.B grace_period
How long a metric must stay above its threshold before alerting. "0s"
alerts on the first exceeding sample. Default: "5m".
.SS log
.TP
.B file
Log file path. Default: ~/.local/log/host\-pulse.log.
.TP
.B max_size_mb, max_backups
Rotation size and backups kept. Default: 5 and 5.
.TP
.B level
Minimum level written to the file. Default: debug.
.SS state, telemetry, notify, display
.TP
.B state.dir
Directory for the status and PID files. Default: ~/.local/state/host\-pulse.
.TP
.B telemetry.textfile
Optional Prometheus textfile path, rewritten after every sample.
.TP
.B notify.queue_size
Alert events buffered for the dashboard. Default: 64.
.TP
.B display.refresh, display.threshold_step
Dashboard redraw interval and slider step. Default: "1s" and 5.
`)
}

func writeSignals(b *strings.Builder) {
	b.WriteString(`.SH SIGNALS
.TP
.B SIGINT, SIGTERM
Stop sampling and exit.
.TP
.B SIGHUP
Rotate the log file.
`)
}

func writeFiles(b *strings.Builder) {
	b.WriteString(`.SH FILES
.TP
.I ~/.config/host\-pulse/config.yaml
Configuration file (YAML).
.TP
.I ~/.local/state/host\-pulse/status.json
Outcome of the latest sample, read by \fB\-health\fR.
.TP
.I ~/.local/state/host\-pulse/host\-pulse.pid
PID file of the running instance.
.TP
.I ~/.local/log/host\-pulse.log
Log file, rotated at 5 MB with 5 backups.
`)
}

func writeExamples(b *strings.Builder) {
	b.WriteString(`.SH EXAMPLES
Launch the dashboard:
.PP
.nf
host\-pulse \-tui
.fi
.PP
Write the default configuration for editing:
.PP
.nf
host\-pulse \-write\-config
.fi
.PP
Check that a running instance is sampling:
.PP
.nf
host\-pulse \-health
host\-pulse \-health \-json
.fi
`)
}

func writeExitStatus(b *strings.Builder) {
	b.WriteString(".SH EXIT STATUS\n")
	b.WriteString(".TP\n.B 0\n")
	b.WriteString("Success. For \\fB\\-health\\fR, the latest sample is recent.\n")
	b.WriteString(".TP\n.B 1\n")
	b.WriteString("Failure. For \\fB\\-health\\fR, the status file is stale or missing.\n")
}

func writeSeeAlso(b *strings.Builder) {
	b.WriteString(`.SH SEE ALSO
.BR top (1),
.BR sensors (1),
.BR node_exporter (1)
`)
}

func writeAuthors(b *strings.Builder) {
	b.WriteString(`.SH AUTHORS
Tinyland Lab <https://gitlab.com/tinyland/lab>
`)
}

func writeFooter(b *strings.Builder, version, commit, date string) {
	fmt.Fprintf(b, ".SH VERSION\n%s (%s) built %s\n", version, commit, date)
}
