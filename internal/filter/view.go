package filter

import "github.com/sadopc/netwatch/internal/record"

// newView builds the object exposed to expressions as `r`.
func newView(r record.Record) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"source":       string(r.Source),
		"name":         r.Name,
		"url":          r.URL,
		"method":       r.Method,
		"status":       int(r.Status),
		"type":         r.Type,
		"subType":      r.SubType,
		"contentType":  r.ContentType(),
		"size":         r.Size,
		"time":         r.Time.Milliseconds(),
		"done":         r.Done,
		"hasErr":       r.HasErr,
		"error":        r.Err,
		"requestBody":  r.RequestBody,
		"responseBody": r.ResponseBody,
		"reqHeaders":   headers(r.ReqHeaders),
		"resHeaders":   headers(r.ResHeaders),
	}
}

func headers(h map[string]string) map[string]any {
	out := make(map[string]any, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
