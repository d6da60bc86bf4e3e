package record

import "time"

// Patch is a partial update published by an adapter. Nil fields leave the
// record unchanged.
type Patch struct {
	Status       *Status
	Type         *string
	SubType      *string
	Size         *int64
	ResHeaders   map[string]string
	ResponseBody *string
	Err          string
	Done         bool

	// At is the raw timestamp of the event that produced the patch.
	At time.Time
}

// WithStatus sets the status field.
func (p Patch) WithStatus(code int) Patch {
	s := Status(code)
	p.Status = &s
	return p
}

// WithContentType sets Type and SubType from a Content-Type header value.
func (p Patch) WithContentType(contentType string) Patch {
	typ, sub := SplitContentType(contentType)
	p.Type = &typ
	p.SubType = &sub
	return p
}

// WithSize sets the size field.
func (p Patch) WithSize(n int64) Patch {
	p.Size = &n
	return p
}

// WithResponseBody sets the response body field.
func (p Patch) WithResponseBody(body string) Patch {
	p.ResponseBody = &body
	return p
}

// Listener receives the two lifecycle events adapters publish. OnSend always
// precedes OnUpdate for a given id.
type Listener interface {
	OnSend(id string, initial Record)
	OnUpdate(id string, p Patch)
}
