// Package textutil provides text processing utilities shared by title
// matching and storage.
//
// The primary use cases are:
//   - Case folding with Unicode normalization for edit-distance comparisons
//   - ASCII romanization of titles written with accented or non-Latin letters
//   - Sanitizing namespace and file tokens for safe filesystem use
package textutil
