package pipeline

import "log/slog"

// Builtin returns every built-in guard in registration order.
func Builtin() []Guard {
	return []Guard{
		DangerousPath(),
		SelfProtection(),
		RefusalHalt(),
		CircuitBreaker(),
		StartupGate(),
		VerificationGate(),
		ResearchGate(),
		PlanRequired(),
		SensitiveTarget(),
		EditAttempts(),
		Patterns(),
	}
}

// Default returns a pipeline over the built-in guards.
func Default(logger *slog.Logger) *Pipeline {
	return New(logger, Builtin()...)
}
