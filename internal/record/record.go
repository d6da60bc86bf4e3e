// Package record defines the lifecycle state of one captured request and the
// merge rules applied as lifecycle events arrive.
package record

import (
	"encoding/json"
	"maps"
	"strconv"
	"time"
)

// Source identifies which request API produced a record.
type Source string

const (
	SourceXHR       Source = "xhr"
	SourceTransport Source = "transport"
)

// Status is the response status of a record. The zero value means no numeric
// status has been received yet.
type Status int

// StatusPending is the status of a record whose headers have not arrived.
const StatusPending Status = 0

// Numeric reports whether s carries a real HTTP status code.
func (s Status) Numeric() bool {
	return s > 0
}

// OK reports whether s is in the 2xx range.
func (s Status) OK() bool {
	return s >= 200 && s < 300
}

func (s Status) String() string {
	if !s.Numeric() {
		return "pending"
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON encodes a pending status as the string "pending" and numeric
// statuses as numbers.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Numeric() {
		return []byte(`"pending"`), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == `"pending"` || string(data) == "null" {
		*s = StatusPending
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*s = Status(n)
	return nil
}

// Record is the lifecycle state for one request.
type Record struct {
	ID           string
	Source       Source
	Name         string
	URL          string
	Method       string
	Status       Status
	Type         string
	SubType      string
	Size         int64
	RequestBody  string
	ReqHeaders   map[string]string
	ResHeaders   map[string]string
	ResponseBody string
	StartTime    time.Time
	Time         time.Duration
	DisplayTime  string
	Done         bool
	HasErr       bool
	Err          string
}

// Defaults fills the zero fields of init with the default record shape.
// StartTime falls back to now.
func Defaults(init Record, now time.Time) Record {
	r := init
	if r.Method == "" {
		r.Method = "GET"
	}
	if r.Type == "" {
		r.Type = "unknown"
	}
	if r.SubType == "" {
		r.SubType = "unknown"
	}
	if r.StartTime.IsZero() {
		r.StartTime = now
	}
	if r.Name == "" && r.URL != "" {
		r.Name = NameFromURL(r.URL)
	}
	r.ReqHeaders = cloneHeaders(r.ReqHeaders)
	r.ResHeaders = cloneHeaders(r.ResHeaders)
	r.Done = false
	r.HasErr = false
	return r
}

// Apply merges p into r. Status only moves forward, Done is never cleared,
// and Time is recomputed as the distance from StartTime to the event
// timestamp, overwriting any earlier value.
func (r *Record) Apply(p Patch, now time.Time) {
	if p.Status != nil && p.Status.Numeric() && !r.Done {
		r.Status = *p.Status
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.SubType != nil {
		r.SubType = *p.SubType
	}
	if p.Size != nil && *p.Size >= 0 {
		r.Size = *p.Size
	}
	if len(p.ResHeaders) > 0 && !r.Done {
		if r.ResHeaders == nil {
			r.ResHeaders = make(map[string]string, len(p.ResHeaders))
		}
		maps.Copy(r.ResHeaders, p.ResHeaders)
	}
	if p.ResponseBody != nil {
		r.ResponseBody = *p.ResponseBody
	}
	if p.Err != "" {
		r.Err = p.Err
	}
	if p.Done {
		r.Done = true
	}

	at := p.At
	if at.IsZero() {
		at = now
	}
	r.Time = at.Sub(r.StartTime)
	if r.Time < 0 {
		r.Time = 0
	}
	r.DisplayTime = FormatDuration(r.Time)
	r.HasErr = r.Done && !r.Status.OK()
}

// Clone returns a deep copy whose header maps are not shared with r.
func (r Record) Clone() Record {
	r.ReqHeaders = cloneHeaders(r.ReqHeaders)
	r.ResHeaders = cloneHeaders(r.ResHeaders)
	return r
}

// StatusText is the status column shown to users.
func (r Record) StatusText() string {
	if r.Done && !r.Status.Numeric() {
		return "error"
	}
	return r.Status.String()
}

// ContentType joins Type and SubType, or returns "" when unknown.
func (r Record) ContentType() string {
	if r.Type == "unknown" || r.Type == "" {
		return ""
	}
	return r.Type + "/" + r.SubType
}

type recordJSON struct {
	ID           string            `json:"id"`
	Source       Source            `json:"source"`
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Status       Status            `json:"status"`
	Type         string            `json:"type"`
	SubType      string            `json:"subType"`
	Size         int64             `json:"size"`
	RequestBody  string            `json:"requestBody"`
	ReqHeaders   map[string]string `json:"reqHeaders"`
	ResHeaders   map[string]string `json:"resHeaders"`
	ResponseBody string            `json:"responseBody"`
	StartTime    int64             `json:"startTime"`
	Time         int64             `json:"time"`
	DisplayTime  string            `json:"displayTime"`
	Done         bool              `json:"done"`
	HasErr       bool              `json:"hasErr"`
	Err          string            `json:"error,omitempty"`
}

// MarshalJSON encodes StartTime as epoch milliseconds and Time as integer
// milliseconds.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:           r.ID,
		Source:       r.Source,
		Name:         r.Name,
		URL:          r.URL,
		Method:       r.Method,
		Status:       r.Status,
		Type:         r.Type,
		SubType:      r.SubType,
		Size:         r.Size,
		RequestBody:  r.RequestBody,
		ReqHeaders:   r.ReqHeaders,
		ResHeaders:   r.ResHeaders,
		ResponseBody: r.ResponseBody,
		StartTime:    r.StartTime.UnixMilli(),
		Time:         r.Time.Milliseconds(),
		DisplayTime:  r.DisplayTime,
		Done:         r.Done,
		HasErr:       r.HasErr,
		Err:          r.Err,
	})
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Record{
		ID:           j.ID,
		Source:       j.Source,
		Name:         j.Name,
		URL:          j.URL,
		Method:       j.Method,
		Status:       j.Status,
		Type:         j.Type,
		SubType:      j.SubType,
		Size:         j.Size,
		RequestBody:  j.RequestBody,
		ReqHeaders:   j.ReqHeaders,
		ResHeaders:   j.ResHeaders,
		ResponseBody: j.ResponseBody,
		StartTime:    time.UnixMilli(j.StartTime),
		Time:         time.Duration(j.Time) * time.Millisecond,
		DisplayTime:  j.DisplayTime,
		Done:         j.Done,
		HasErr:       j.HasErr,
		Err:          j.Err,
	}
	return nil
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return maps.Clone(h)
}
