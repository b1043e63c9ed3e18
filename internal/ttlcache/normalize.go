package ttlcache

import "encoding/json"

type mediaRef struct {
	ID int `json:"id"`
}

// normalizePayload replaces Page.media records or a top-level Media record
// with ids and returns the extracted records keyed by id. Payloads of any
// other shape, or with a record lacking an id, are returned unchanged.
func normalizePayload(data json.RawMessage) (json.RawMessage, map[int]json.RawMessage) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return data, nil
	}
	if rawPage, ok := top["Page"]; ok {
		var page map[string]json.RawMessage
		if err := json.Unmarshal(rawPage, &page); err != nil {
			return data, nil
		}
		rawMedia, ok := page["media"]
		if !ok {
			return data, nil
		}
		var records []json.RawMessage
		if err := json.Unmarshal(rawMedia, &records); err != nil {
			return data, nil
		}
		ids := make([]int, 0, len(records))
		extracted := make(map[int]json.RawMessage, len(records))
		for _, rec := range records {
			var ref mediaRef
			if err := json.Unmarshal(rec, &ref); err != nil || ref.ID == 0 {
				return data, nil
			}
			ids = append(ids, ref.ID)
			extracted[ref.ID] = rec
		}
		if page["media"], ok = marshalRaw(ids); !ok {
			return data, nil
		}
		if top["Page"], ok = marshalRaw(page); !ok {
			return data, nil
		}
		out, ok := marshalRaw(top)
		if !ok {
			return data, nil
		}
		return out, extracted
	}
	if rawMedia, ok := top["Media"]; ok {
		var ref mediaRef
		if err := json.Unmarshal(rawMedia, &ref); err != nil || ref.ID == 0 {
			return data, nil
		}
		if top["Media"], ok = marshalRaw(ref.ID); !ok {
			return data, nil
		}
		out, ok := marshalRaw(top)
		if !ok {
			return data, nil
		}
		return out, map[int]json.RawMessage{ref.ID: rawMedia}
	}
	return data, nil
}

// denormalizePayload reverses normalizePayload using lookup. Ids missing
// from the identity store become null.
func denormalizePayload(data json.RawMessage, lookup func(int) (json.RawMessage, bool)) json.RawMessage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return data
	}
	resolve := func(id int) json.RawMessage {
		if rec, ok := lookup(id); ok {
			return rec
		}
		return json.RawMessage("null")
	}
	if rawPage, ok := top["Page"]; ok {
		var page map[string]json.RawMessage
		if err := json.Unmarshal(rawPage, &page); err != nil {
			return data
		}
		var ids []int
		if err := json.Unmarshal(page["media"], &ids); err != nil {
			return data
		}
		records := make([]json.RawMessage, 0, len(ids))
		for _, id := range ids {
			records = append(records, resolve(id))
		}
		if page["media"], ok = marshalRaw(records); !ok {
			return data
		}
		if top["Page"], ok = marshalRaw(page); !ok {
			return data
		}
		out, ok := marshalRaw(top)
		if !ok {
			return data
		}
		return out
	}
	if rawMedia, ok := top["Media"]; ok {
		var id int
		if err := json.Unmarshal(rawMedia, &id); err != nil {
			return data
		}
		top["Media"] = resolve(id)
		out, ok := marshalRaw(top)
		if !ok {
			return data
		}
		return out
	}
	return data
}

func marshalRaw(v any) (json.RawMessage, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return b, true
}
