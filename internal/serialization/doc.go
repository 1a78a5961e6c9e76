// Package serialization saves and loads graphs in the native .sdg format.
//
// A .sdg file is a fixed header followed by a protobuf-wire body:
//
//	Format Structure:
//	  [4 bytes: Magic "SDGF"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Body Size (uint64 LE)]
//	  [32 bytes: SHA-256 of the body]
//	  [12 bytes: reserved, zero]
//	  [Body: graph record, protowire encoded]
//
// The body lists leaf variables and ops in creation order, so a reader can
// replay them through the graph API and get the same variable ids, names,
// and inferred types. Op output types are not stored; they are inferred again
// on load. Variable and constant values are stored in C order using the
// host's little-endian byte layout.
//
// Example usage:
//
//	if err := serialization.Save("model.sdg", g); err != nil {
//	    log.Fatal(err)
//	}
//
//	g2, err := serialization.Load("model.sdg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Gradient graphs are derived state and are never written; load the forward
// graph and call GradGraph again.
package serialization
