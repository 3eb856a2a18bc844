// Package agent contains first-class agent implementations for building
// swarm nodes in AgentSwarm. The package focuses on three concerns:
//
//  1. Shared identity plumbing (BaseAgent)
//  2. Deterministic scripted agents for workflows and tests (FuncAgent)
//  3. Model-centric conversational / tool-calling agent (ModelAgent)
//
// Design principles:
//   - Minimal hidden global state; explicit wiring via the swarm binding
//   - Agents decide, the runtime routes: an agent returns a Decision and
//     never talks to the router directly
//   - Extensibility: embed BaseAgent and implement Execute
//
// The package intentionally keeps persistence, model specifics and tool
// registry abstractions in their respective packages to avoid cyclic deps.
package agent
