// Package harness runs conformance scenarios against the query resolution
// engine.
//
// A scenario is a YAML file holding one request and the expected outcome:
//
//	name: things_by_name
//	description: Equality filter on a string property
//	request:
//	  entity_type: Things
//	  query:
//	    filter: {fn: eq, args: [{path: Name}, {string: Lamp}]}
//	expect:
//	  url: "$filter=Name%20eq%20'Lamp'&$orderby=Id%20asc"
//	  sql: SELECT id, name, description, properties FROM things WHERE name = ? ORDER BY id ASC LIMIT 100
//	  args: [Lamp]
//
// Scenarios that seed entities, or expect a count or entities, run against a
// fresh in-memory store. All others only resolve the request.
//
// Expected entities are a subset match: every listed key must be present
// with an equal value, extra keys are ignored. Expected errors name a
// qerr.Kind, e.g. UNKNOWN_PATH.
//
// Query ids come from testutil.SequentialIDs so snapshots are reproducible.
// RunWithGolden compares a scenario's Snapshot with
// testdata/golden/<name>.golden; regenerate with
//
//	go test ./internal/harness -update
package harness
