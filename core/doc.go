// Package core defines the shared vocabulary of the AgentSwarm runtime:
// messages and their payloads, proposed actions, tasks and task responses,
// node/task status enums, the error taxonomy, and the Agent and Handler
// contracts every other package builds on.
//
// The package is intentionally free of orchestration logic. Components such
// as the router, the join coordinator or the execution engines depend on
// core; core depends on nothing but the standard library and the uuid
// generator.
package core
