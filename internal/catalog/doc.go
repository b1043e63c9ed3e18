// Package catalog queries the anime catalog through the rate-limited gateway
// and the response cache.
//
// SearchCompound is the batch entry point used by the resolver: it packs many
// title candidates into a single aliased GraphQL document per chunk, keeps the
// closest match per release group, and hydrates the winners with a full
// by-id query.
package catalog
