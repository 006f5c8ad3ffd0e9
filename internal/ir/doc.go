// Package ir provides the attribute value model shared by every layer of linked.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the value model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed union: Null, String, Int, Float, Bool, Time, Ref, List
//   - Attribute keys and Ref values are canonical URIs, never CURIEs
//   - A List never contains another List
//   - List equality is set equality (triple objects have no order)
//   - Time values are UTC with second precision (xsd:dateTime round-trip)
package ir
