package infra

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// OsascriptRunner implements domain.ElevatedRunner by handing one
// joined shell command to osascript's "with administrator privileges",
// which shows the system credential prompt exactly once. A dismissed
// prompt fails the whole batch.
type OsascriptRunner struct {
	logger *zap.Logger
}

// NewOsascriptRunner creates the macOS elevated batch runner.
func NewOsascriptRunner(logger *zap.Logger) domain.ElevatedRunner {
	return &OsascriptRunner{logger: logger}
}

// RunBatch serializes the commands into a single shell invocation and
// executes it elevated. Commands are joined with ";" so one failing
// command does not stop the rest of the batch; the batch as a whole
// either runs or (if the prompt is dismissed) fails.
func (r *OsascriptRunner) RunBatch(commands []domain.ElevatedCommand) error {
	if len(commands) == 0 {
		return nil
	}

	joined := JoinBatch(commands)
	r.logger.Info("requesting elevation", zap.Int("commands", len(commands)))

	script := fmt.Sprintf("do shell script %s with administrator privileges", appleScriptString(joined))
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("elevated batch: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// JoinBatch renders the structured commands as one shell line. Every
// argument is single-quoted so paths containing spaces and quotes
// survive; this is the only place commands become strings.
func JoinBatch(commands []domain.ElevatedCommand) string {
	parts := make([]string, 0, len(commands))
	for _, cmd := range commands {
		quoted := make([]string, 0, len(cmd.Args))
		for _, arg := range cmd.Args {
			quoted = append(quoted, shellQuote(arg))
		}
		parts = append(parts, strings.Join(quoted, " "))
	}
	return strings.Join(parts, " ; ")
}

// shellQuote single-quotes one argument, escaping embedded single
// quotes with the '\'' idiom.
func shellQuote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// appleScriptString renders a string literal for AppleScript source:
// backslashes and double quotes escaped, wrapped in double quotes.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Ensure OsascriptRunner implements domain.ElevatedRunner.
var _ domain.ElevatedRunner = (*OsascriptRunner)(nil)
