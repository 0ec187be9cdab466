// Package pipeline runs the ordered guard chain that decides whether a
// proposed agent action is allowed, warned about, or blocked.
//
// Guards never write state. Each returns a Decision carrying deferred
// Effects; the pipeline chooses which effects survive and the caller
// commits them under the section locks with Commit.
//
// # Threat Model
//
// The guards address the ways an autonomous coding agent goes wrong:
//
// T1 - Destructive Reach: The agent writes to system paths, reads
// credentials, or runs commands that destroy more than the project (rm -rf
// on the home directory, mkfs, dd onto a device). Mitigations: dangerous_path
// blocks edits under system prefixes, every access to credential stores and
// key material, and destructive command shapes.
//
// T2 - Policy Tampering: The agent edits gatekeeper's signed state, its
// secret or its policy file, or invokes the operator commands itself.
// Mitigations: section documents are HMAC-signed and a document that fails
// verification reads as its default; dangerous_path protects the state
// directory, the secret and the project policy; self_protection blocks
// `gk reset|unblock|skip|approve-plan|session` and GATEKEEPER_* assignments
// in shell commands.
//
// T3 - Retry Loops: The agent keeps retrying a failing action. Mitigations:
// the circuit breaker trips on consecutive failures or on one repeated error
// signature and then blocks everything except read-only actions; repeated
// blocks of one type escalate from informational to a halt that only the
// operator lifts.
//
// T4 - Editing Blind: The agent edits before it has looked at the project
// or the problem. Mitigations: the startup, verification and research gates
// require evidence per category before the first edit; plan_required waits
// for an operator-approved plan.
//
// T5 - Gate Gaming: The agent satisfies a gate without doing the work:
// empty queries, categories completed within seconds of each other, several
// categories completed at one instant, or a success recorded right after a
// failure streak. Mitigations: trivial evidence never counts, and gaming
// findings are a hard block that resets the gate.
//
// T6 - Thrashing: The agent edits again and again without verifying.
// Mitigations: edit_attempts warns on the last edit before the limit and
// forces a replan on the limit; a passing verify command clears the count.
//
// T7 - Unreviewed Sensitive Changes: CI workflows, build files and signing
// configuration change without a second look. Mitigations: the first edit of
// a sensitive target is blocked and the retry of that same target passes
// once.
//
// # Design Principles
//
// Fail closed on high severity: a safety or halt guard that errors or
// panics blocks. Low severity guards fail open.
//
// Fail open on malformed input: an envelope that cannot be parsed is allowed
// and logged.
//
// Every block names its guard, its block type, a reason and a fix.
package pipeline
