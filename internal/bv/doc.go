// Package bv defines the business view: a declarative description of the
// relational schema that analytical questions are asked against.
//
// A BusinessView names the physical tables and columns, the join
// relationships between them, the measures (aggregate expressions) that can
// be asked for, the dimensions available for filtering and breakdown, the
// time dimension, and the calendar rules that govern baseline arithmetic.
//
// Views are authored as CUE files and loaded with Load or LoadDir. Once
// loaded a BusinessView is immutable: the rest of the pipeline only reads
// from it, and the derived schema.Context can be built once and shared
// across requests.
package bv
