package har

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sadopc/netwatch/internal/record"
)

// HAR represents the HAR 1.2 format for export.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog is the top-level log object.
type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

// HARCreator identifies the tool that created the HAR.
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HAREntry represents a single request/response pair.
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Timings         HARTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`
}

// HARRequest is the request portion of an entry.
type HARRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []HARHeader  `json:"headers"`
	QueryString []HARQuery   `json:"queryString"`
	PostData    *HARPostData `json:"postData,omitempty"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

// HARResponse is the response portion of an entry.
type HARResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []HARHeader `json:"headers"`
	Content     HARContent  `json:"content"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

// HARHeader is a name/value pair for headers.
type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARQuery is a name/value pair for query string parameters.
type HARQuery struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARPostData is the body of a request.
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARContent is the body of a response.
type HARContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARTimings holds timing info for an entry. Captured records only know the
// total, which is reported as wait time.
type HARTimings struct {
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	SSL     float64 `json:"ssl"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// Export creates a HAR 1.2 document from captured records. In-flight records
// are exported with status 0 and a comment.
func Export(records []record.Record, creatorVersion string) ([]byte, error) {
	entries := make([]HAREntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, buildEntry(r))
	}

	har := HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: HARCreator{Name: "netwatch", Version: creatorVersion},
			Entries: entries,
		},
	}
	return json.MarshalIndent(har, "", "  ")
}

func buildEntry(r record.Record) HAREntry {
	total := float64(r.Time.Milliseconds())
	e := HAREntry{
		StartedDateTime: r.StartTime.UTC().Format(time.RFC3339Nano),
		Time:            total,
		Request:         buildHARRequest(r),
		Response:        buildHARResponse(r),
		Timings: HARTimings{
			DNS:     -1,
			Connect: -1,
			SSL:     -1,
			Wait:    total,
		},
	}
	switch {
	case !r.Done:
		e.Comment = "in flight"
	case r.Err != "":
		e.Comment = r.Err
	}
	return e
}

func buildHARRequest(r record.Record) HARRequest {
	harReq := HARRequest{
		Method:      r.Method,
		URL:         r.URL,
		HTTPVersion: "HTTP/1.1",
		Headers:     sortedHeaders(r.ReqHeaders),
		QueryString: []HARQuery{},
		HeadersSize: -1,
		BodySize:    len(r.RequestBody),
	}

	if u, err := url.Parse(r.URL); err == nil {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range q[k] {
				harReq.QueryString = append(harReq.QueryString, HARQuery{Name: k, Value: v})
			}
		}
	}

	if r.RequestBody != "" {
		mimeType := "text/plain"
		for k, v := range r.ReqHeaders {
			if http.CanonicalHeaderKey(k) == "Content-Type" {
				mimeType = v
			}
		}
		harReq.PostData = &HARPostData{MimeType: mimeType, Text: r.RequestBody}
	}
	return harReq
}

func buildHARResponse(r record.Record) HARResponse {
	statusText := ""
	if r.Status.Numeric() {
		statusText = http.StatusText(int(r.Status))
	}
	return HARResponse{
		Status:      int(r.Status),
		StatusText:  statusText,
		HTTPVersion: "HTTP/1.1",
		Headers:     sortedHeaders(r.ResHeaders),
		HeadersSize: -1,
		BodySize:    int(r.Size),
		Content: HARContent{
			Size:     int(r.Size),
			MimeType: r.ContentType(),
			Text:     r.ResponseBody,
		},
	}
}

func sortedHeaders(h map[string]string) []HARHeader {
	out := make([]HARHeader, 0, len(h))
	for k, v := range h {
		out = append(out, HARHeader{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
