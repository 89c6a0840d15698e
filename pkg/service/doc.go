// Package service exposes the enforcement core's request/response
// operations to callers: Enforce, InstallRules, RemoveAgentRules,
// RemovePolicy, RefreshRules, and GetRuleStats.
//
// InstallRules has replace-on-install semantics: an agent's prior rules
// are removed before the new set is written, so repeated installs never
// accumulate stale rules. A persistence failure fails the whole call and
// unwinds the rules installed so far, leaving no partial set behind.
//
// RemovePolicy validates ownership before removing and distinguishes
// not-found, forbidden, and removed outcomes, so a caller can never
// delete another agent's rule.
package service
