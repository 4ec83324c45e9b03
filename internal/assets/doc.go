// Package assets holds the bookkeeping side of asset management: classifying and
// resolving references (Resolver), ordered duplicate-free lists (List), and named
// collections of references (Collections).
package assets
