// Package preflight provides readiness checks for the catalog endpoint and
// the filesystem paths animelink writes to.
//
// The CLI "config validate" command runs RunAll and reports each Result.
// Directory checks always run; the catalog probe is skipped in offline mode.
package preflight
