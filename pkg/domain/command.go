package domain

// Exit codes reported by command runners for launches that never produced a
// process exit status of their own.
const (
	// ExitBlocked marks commands refused before any process was spawned,
	// and commands whose process could not be launched at all.
	ExitBlocked = -1

	// ExitTimeout marks commands killed after exceeding their deadline.
	// It mirrors the conventional shell timeout status.
	ExitTimeout = 124
)

// CommandResult is the outcome of a single sandboxed command execution.
// ExitCode is never a guess: 0 and positive values come from the process,
// ExitBlocked and ExitTimeout come from the runner itself.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Success reports whether the command ran to completion with a zero status.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CombinedOutput joins stdout and stderr for display and history records.
// Both streams are preserved even on timeout, where they hold the partial
// output produced before the kill.
func (r CommandResult) CombinedOutput() string {
	switch {
	case r.Stdout != "" && r.Stderr != "":
		return r.Stdout + "\n" + r.Stderr
	case r.Stderr != "":
		return r.Stderr
	default:
		return r.Stdout
	}
}
