// Package authflow is a headless authentication flow SDK. It resolves whether
// an email or phone identifier belongs to an existing account and routes the
// caller through login, registration or password recovery against a
// pluggable [Backend].
//
// The package is designed for concurrent use: a [Flow] built with
// [Builder.Build] holds no per-traversal state. Every step method takes the
// [FlowContext] returned by the previous step and returns a [Transition]
// naming the next step, so a presentation layer (CLI, HTTP handler, mobile
// bridge) drives the flow without duplicating routing rules.
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Flow], [Builder], [Config], the
// [Backend] contract and value types. Audit dispatch lives under internal/.
// Backend implementations live in sub-packages (mock, live) which import
// authflow, never the reverse.
//
// # What this package must NOT do
//
//   - Branch on which backend is active.
//   - Return errors from step methods. Failures are reported as a Transition
//     that stays on the current step with a Message.
//   - Retry backend calls or impose a timeout on them, except the startup
//     session check.
package authflow
