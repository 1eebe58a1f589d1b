// Package resources implements the Protocol and Trial operations behind the
// REST routes: listing, fetching, creating, updating, deleting, citation
// export and the schema description.
//
// Every operation loads the target record before consulting the policy, so a
// missing record is always reported as <kind>_not_found. Guest trial
// submissions receive a claim token that grants edit rights until it
// expires.
package resources
