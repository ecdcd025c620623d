// Package scenario loads named seed documents from disk and applies them.
//
// A scenario file holds one seed document:
//
//	name: order-with-delivery
//	description: order paid by PIX
//	graph:
//	  - entityType: order
//	    operation: create
//	    relations: ...
//
// Files ending in .yaml, .yml or .json are accepted. A directory is loaded
// into a Catalog; names must be unique across it. The configuration selects
// which scenarios run and in which order; each one is applied in its own
// transaction.
package scenario
