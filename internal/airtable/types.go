package airtable

// Well-known field names in the papers table.
const (
	FieldPDF              = "PDF"
	FieldDOIURL           = "DOI/URL"
	FieldSourceURL        = "Source URL"
	FieldStudyShortName   = "Study Short Name"
	FieldProcessingStatus = "Processing Status"
	FieldError            = "Error"
)

// Processing Status values written back to records.
const (
	StatusProcessing = "Processing"
	StatusComplete   = "Complete"
	StatusFailed     = "Failed"
)

// Record is a single Airtable row. Fields holds the raw decoded cell
// values; attachment and string cells have typed accessors.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// StringField returns the named field as a string, or "" when the field
// is absent or not a string.
func (r *Record) StringField(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Attachment is one entry in an Airtable attachment field.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Attachments returns the named field decoded as an attachment list.
// Airtable delivers attachment cells as arrays of objects; entries
// without a url are dropped.
func (r *Record) Attachments(name string) []Attachment {
	raw, ok := r.Fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var att Attachment
		att.URL, _ = m["url"].(string)
		att.Filename, _ = m["filename"].(string)
		if att.URL != "" {
			out = append(out, att)
		}
	}
	return out
}

// recordsPage is one page of a list response.
type recordsPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}
