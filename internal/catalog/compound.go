package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"animelink/internal/gateway"
	"animelink/internal/logging"
	"animelink/internal/titles"
	"animelink/internal/ttlcache"
)

type compoundPage struct {
	Media []*Media `json:"media"`
}

// buildCompoundQuery aliases one Page lookup per candidate. An adult
// candidate reuses the previous candidate's search variable.
func buildCompoundQuery(cands []titles.Candidate) (string, map[string]any) {
	vars := make(map[string]any, len(cands))
	decls := make([]string, 0, len(cands))
	frags := make([]string, 0, len(cands))
	for i, cand := range cands {
		ref := i
		if cand.IsAdult && i != 0 {
			ref = i - 1
		} else {
			name := "v" + strconv.Itoa(i)
			vars[name] = cand.Title
			decls = append(decls, "$"+name+": String")
		}
		filter := fmt.Sprintf("type: ANIME, search: $v%d, status_in: [RELEASING, FINISHED], isAdult: %t", ref, cand.IsAdult)
		if cand.Year > 0 {
			filter += fmt.Sprintf(", seasonYear: %d", cand.Year)
		}
		frags = append(frags, fmt.Sprintf("v%d: Page(perPage: 10) { media(%s) { ...med } }", i, filter))
	}
	query := fmt.Sprintf("query(%s) { %s } ", strings.Join(decls, ", "), strings.Join(frags, " ")) + compoundFragment
	return query, vars
}

func compoundKey(cands []titles.Candidate) string {
	parts := make([]string, 0, len(cands))
	for _, cand := range cands {
		parts = append(parts, fmt.Sprintf("%s|%d|%t", cand.Title, cand.Year, cand.IsAdult))
	}
	return strings.Join(parts, "\n")
}

// SearchCompound resolves candidates in batched aliased queries and returns
// the hydrated winner per group key. Within a group the first candidate
// with any result wins; among its results the best title score wins. A
// failed batch is reported in the joined error while the other batches
// still contribute.
func (c *Client) SearchCompound(ctx context.Context, cands []titles.Candidate) (map[string]*Media, error) {
	logger := logging.WithContext(ctx, c.logger)
	winners := make(map[string]int)
	var errs []error
	for start := 0; start < len(cands); start += c.batchSize {
		chunk := cands[start:min(start+c.batchSize, len(cands))]
		found, err := c.searchChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(logger, "compound search batch failed", "compound_batch_failed",
				logging.Int("candidates", len(chunk)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check catalog connectivity and token"),
				logging.String(logging.FieldImpact, "titles in this batch are reported as unresolved"),
			)
			errs = append(errs, err)
			continue
		}
		for key, id := range found {
			if prev, ok := winners[key]; ok {
				logger.Debug("group already resolved", logging.String(logging.FieldGroupKey, key),
					logging.Int("kept", prev), logging.Int("ignored", id))
				continue
			}
			winners[key] = id
		}
	}

	out, err := c.hydrate(ctx, winners)
	if err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

func (c *Client) searchChunk(ctx context.Context, chunk []titles.Candidate) (map[string]int, error) {
	query, vars := buildCompoundQuery(chunk)
	raw, err := c.cached(ctx, ttlcache.Compound, compoundKey(chunk),
		fetchData(c.queries, gateway.Request{Query: query, Variables: vars}), c.expiry(searchExpiry))
	if err != nil {
		return nil, fmt.Errorf("compound search: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var pages map[string]*compoundPage
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("decode compound search: %w", err)
	}
	found := make(map[string]int)
	for i, cand := range chunk {
		if _, ok := found[cand.GroupKey]; ok {
			continue
		}
		page := pages["v"+strconv.Itoa(i)]
		if page == nil || len(page.Media) == 0 {
			continue
		}
		media := make([]*Media, 0, len(page.Media))
		for _, m := range page.Media {
			if m != nil {
				media = append(media, m)
			}
		}
		if best, _, ok := titles.Best(media, cand.Title); ok {
			found[cand.GroupKey] = best.ID
		}
	}
	return found, nil
}

// hydrate replaces the compound stubs with full records.
func (c *Client) hydrate(ctx context.Context, winners map[string]int) (map[string]*Media, error) {
	out := make(map[string]*Media, len(winners))
	if len(winners) == 0 {
		return out, nil
	}
	ids := make([]int, 0, len(winners))
	seen := make(map[int]struct{}, len(winners))
	for _, id := range winners {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	byID := make(map[int]*Media, len(ids))
	var errs []error
	for start := 0; start < len(ids); start += hydrateBatchSize {
		batch := ids[start:min(start+hydrateBatchSize, len(ids))]
		page, err := c.SearchByIDs(ctx, IDFilter{ID: batch, Page: 1, PerPage: len(batch)})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range page.Media {
			byID[m.ID] = m
		}
	}
	for key, id := range winners {
		if m, ok := byID[id]; ok {
			out[key] = m
		}
	}
	return out, errors.Join(errs...)
}
