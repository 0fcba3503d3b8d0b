package core

import "strings"

// Environment names the deployment the assistant runs in. It only decides
// how logs are written.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment maps ENVIRONMENT to a known value, case-insensitively.
// Anything unrecognised is treated as Development.
func ParseEnvironment(v string) Environment {
	switch env := Environment(strings.ToLower(strings.TrimSpace(v))); env {
	case Production, Staging, Testing:
		return env
	default:
		return Development
	}
}

// JSONLogs reports whether logs go out as JSON lines at info level instead
// of the colored console format.
func (e Environment) JSONLogs() bool {
	return e == Production
}
