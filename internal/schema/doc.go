// Package schema compiles a business view into the lookup structures the
// rest of the pipeline works from: a fully-qualified column whitelist, an
// indexed join graph, measure-to-table resolution, and calendar rules.
//
// The Context is built once per view and is immutable afterwards; requests
// share it by explicit injection. The join graph is an adjacency index over
// an arena of table descriptors, so path search never chases pointers back
// into the owning view.
package schema
