// Package plan turns a structured intent plus a schema context into the
// named SQL queries the executor runs.
//
// A plan carries up to five queries: the current-period aggregate, the
// baseline aggregate, a time-series feed for anomaly detection, and a
// current/baseline breakdown pair for root-cause attribution. Generation is
// deterministic: the same intent and view always render byte-identical SQL,
// which is what makes golden-file testing of plans possible.
//
// String values from the intent are escaped by doubling embedded quotes.
// They originate from the structured intent, never from raw free text; the
// validator package independently re-checks every rendered query before
// anything executes.
package plan
