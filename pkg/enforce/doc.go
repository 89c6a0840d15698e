// Package enforce implements the rule-evaluation engine that decides
// whether an agent intent is allowed.
//
// # Pipeline
//
// Each Enforce call runs a fixed pipeline with no cross-call state:
//
//  1. Validate the intent; a missing routing layer or an unresolved
//     intent vector blocks immediately.
//  2. Query the enabled rules for the intent's layer; an enforcement
//     point with zero rules blocks rather than default-allowing.
//  3. Evaluate rules in priority order (descending, rule id as the stable
//     tie-break). Each rule's vector is resolved through the tiered store
//     with the enforcement-path lookup, which marks the cache entry
//     evaluated; a lookup miss makes that rule contribute a Block.
//  4. The first rule that fails to match short-circuits the call with an
//     overall Block. Short-circuiting is both a latency optimization and
//     a conservative security property: nothing evaluated after a Block
//     could change the outcome.
//  5. If every rule matches, the decision is Allow and the reported
//     per-slot similarities are the arithmetic mean across all evaluated
//     rules.
//
// Every malformed input or internal failure collapses to a Block with a
// machine-readable reason; the engine never fails open and never returns
// an error to its caller.
package enforce
