package textmate

import (
	"fmt"
	"log/slog"
)

// Diagnostics is the side channel errors flow through per spec.md §7:
// nothing a grammar construction or tokenization call does through its
// normal return path ever surfaces UnresolvedInclude or InvalidRegex to
// the caller, but a Diagnostics implementation can still observe them.
type Diagnostics interface {
	// Warnf reports a non-fatal problem tied to a rule id (0 when the
	// problem predates id assignment, e.g. an unresolved include).
	Warnf(ruleID int, format string, args ...any)
}

// discardDiagnostics is the default: diagnostics are dropped.
type discardDiagnostics struct{}

func (discardDiagnostics) Warnf(int, string, ...any) {}

// DiscardDiagnostics is the zero-cost default Diagnostics sink.
var DiscardDiagnostics Diagnostics = discardDiagnostics{}

// SlogDiagnostics adapts a *slog.Logger into a Diagnostics sink, one
// structured WARN record per call.
type SlogDiagnostics struct {
	Logger *slog.Logger
}

func (d SlogDiagnostics) Warnf(ruleID int, format string, args ...any) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(fmt.Sprintf(format, args...), slog.Int("rule_id", ruleID))
}
