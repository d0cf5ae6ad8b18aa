package relaunch

import (
	"bytes"
	"fmt"
	"io/fs"
	"math"
	"runtime"
	"strconv"
	"text/template"
	"time"

	"github.com/alessio/shellescape"

	"github.com/oshokin/desktop-updater/internal/domain/update"
)

const (
	// scriptMode lets only the owner read and execute the script.
	scriptMode fs.FileMode = 0o700
	// helperMode makes the installed helper binary executable.
	helperMode fs.FileMode = 0o755
	// linuxCommLength is how many characters of a name pgrep -x can match on Linux.
	linuxCommLength = 15
)

// Script is the artifact launched to finish the update out of process.
type Script struct {
	// Path is the absolute location of the script or helper binary.
	Path string
	// Text is the rendered shell script; empty for the helper binary.
	Text string
	// Mode is the permission set the artifact is installed with.
	Mode fs.FileMode
	// Argv is how the artifact is launched.
	Argv []string
}

// shellScript waits for the host to exit, copies staging over the install
// root, removes staging, relaunches and deletes itself. Every interpolated
// value passes through q.
//
//nolint:gochecknoglobals // Parsed once; read-only afterwards.
var shellScript = template.Must(template.New("relaunch").
	Option("missingkey=error").
	Funcs(template.FuncMap{"q": shellescape.Quote}).
	Parse(`#!/bin/bash
exec >>{{ q .LogFile }} 2>&1
echo "[{{ q .AttemptID }}] Update script started"
echo "Waiting for {{ q .ProcessName }} to exit"
while pgrep -x {{ q .ProcessName }} >/dev/null 2>&1; do
  sleep {{ .PollSeconds }}
done
if [ -d {{ q .StagingPath }} ]; then
  echo "Copying files from: "{{ q .StagingPath }}
  if cp -R {{ q .StagingContents }} {{ q .InstallRoot }}; then
    echo "Removing update directory"
    rm -rf {{ q .StagingPath }}
  else
    echo "Copy failed, keeping update directory"
  fi
else
  echo "No update directory, nothing to copy"
fi
echo "Relaunching app"
{{ .Relaunch }} &
echo "Cleaning up script"
rm -- "$0"
`))

// scriptData is the template input. Fields rendered without q are produced
// by this package and are already safe.
type scriptData struct {
	AttemptID       string
	LogFile         string
	ProcessName     string
	PollSeconds     string
	StagingPath     string
	StagingContents string
	InstallRoot     string
	Relaunch        string
}

// RenderShell renders the relaunch script for cmd.
func RenderShell(cmd *update.Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", fmt.Errorf("invalid command: %w", err)
	}

	data := scriptData{
		AttemptID:       cmd.AttemptID,
		LogFile:         cmd.LogFile,
		ProcessName:     pgrepName(cmd.Layout.ProcessName),
		PollSeconds:     pollSeconds(cmd.PollInterval),
		StagingPath:     cmd.Layout.StagingPath,
		StagingContents: cmd.Layout.StagingPath + "/.",
		InstallRoot:     cmd.Layout.InstallRoot,
		Relaunch:        shellescape.QuoteCommand(cmd.Relaunch),
	}

	var buf bytes.Buffer
	if err := shellScript.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render script: %w", err)
	}

	return buf.String(), nil
}

// pgrepName truncates name to what the Linux process table stores.
func pgrepName(name string) string {
	if runtime.GOOS == "linux" && len(name) > linuxCommLength {
		return name[:linuxCommLength]
	}

	return name
}

// pollSeconds renders the poll interval in seconds for sleep(1).
func pollSeconds(interval time.Duration) string {
	seconds := math.Max(interval.Seconds(), 0.001)

	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
