// Package harness runs binding scenarios written in YAML.
//
// A scenario drives entities and views through a fresh in-memory store and
// records every step and every event of the entities and views it binds.
// The trace is compared against golden files; assertions check the final
// state.
//
// # Scenario Format
//
//	name: shelf_membership
//	description: "Books join and leave a shelf"
//	namespaces:
//	  ex: http://example.org/
//	specs:
//	  - views.cue
//	steps:
//	  - execute: 'INSERT DATA { ex:dune ex:title "Dune" . }'
//	  - entity: ex:dune
//	    as: dune
//	  - view: { name: Shelf }
//	    as: shelf
//	  - add: { target: shelf, members: [dune] }
//	  - set: { target: dune, key: ex:title, value: "Dune Messiah" }
//	  - remove: { target: shelf, members: [dune] }
//	assertions:
//	  - type: attribute
//	    target: dune
//	    key: ex:title
//	    value: "Dune Messiah"
//	  - type: membership
//	    target: shelf
//	    members: []
//	  - type: query_count
//	    query: "SELECT ?b WHERE { ?b ex:title ?t }"
//	    count: 1
//	  - type: event_count
//	    target: shelf
//	    event: add
//	    count: 1
//
// Steps: execute, entity, new_entity, set, unset, view, add, remove,
// destroy. Members and targets name aliases bound with "as"; a member that
// is not an alias is a URI or CURIE, and a map is a new entity.
//
// # Trace
//
// Each trace line is "seq kind name [target] [args...]". Steps are logged
// before they run; events are logged as the binding emits them. Events
// emitted while an entity or view is first bound happen before it has an
// alias and are not recorded. URIs are shrunk to CURIEs and references
// print as <curie>:
//
//	4 step add shelf ex:dune
//	5 event change:ex:holds shelf ex:shelf <ex:dune>
//	6 event change shelf ex:shelf
//	7 event add shelf ex:dune ex:shelf
//
// Listener ids come from testutil.SequentialIDs and the store is private
// to the run, so traces are identical across runs.
package harness
