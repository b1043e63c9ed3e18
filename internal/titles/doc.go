// Package titles derives search candidates from a parsed release title and
// scores catalog entries against them by edit distance.
package titles
