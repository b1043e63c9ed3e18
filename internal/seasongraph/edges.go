package seasongraph

import (
	"slices"

	"animelink/internal/catalog"
)

var (
	seriesFormats   = []string{catalog.FormatTV, catalog.FormatTVShort}
	extendedFormats = []string{catalog.FormatTV, catalog.FormatTVShort, catalog.FormatOVA}
)

// FindEdge returns the first edge of relation whose target has one of
// formats. Formats default to TV and TV_SHORT. A SEQUEL search that finds
// nothing is retried with OVA allowed.
func FindEdge(media *catalog.Media, relation string, formats ...string) *catalog.RelationEdge {
	if len(formats) == 0 {
		formats = seriesFormats
	}
	if edge := findEdge(media, relation, formats); edge != nil {
		return edge
	}
	if relation == catalog.RelationSequel && !slices.Equal(formats, extendedFormats) {
		return findEdge(media, relation, extendedFormats)
	}
	return nil
}

func findEdge(media *catalog.Media, relation string, formats []string) *catalog.RelationEdge {
	edges := media.Edges()
	for i := range edges {
		if edges[i].RelationType == relation && slices.Contains(formats, edges[i].Node.Format) {
			return &edges[i]
		}
	}
	return nil
}

// RootCandidate returns the entry a walk toward the franchise root should
// start from: the PREQUEL target, or for OVA and ONA entries the PARENT
// target. Nil when media has neither.
func RootCandidate(media *catalog.Media) *catalog.RelationNode {
	if edge := FindEdge(media, catalog.RelationPrequel); edge != nil {
		return &edge.Node
	}
	if media == nil || (media.Format != catalog.FormatOVA && media.Format != catalog.FormatONA) {
		return nil
	}
	if edge := FindEdge(media, catalog.RelationParent); edge != nil {
		return &edge.Node
	}
	return nil
}
