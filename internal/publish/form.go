package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringList accepts either a JSON string or an array of strings. The
// sidebar sends a bare string when only one option is selected.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*l = arr
	return nil
}

// FlexInt accepts a JSON number, a numeric string, or an empty string
// (zero).
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("expected integer, got %q", s)
		}
		*n = FlexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = FlexInt(v)
	return nil
}

// SourceForm is one source entry from the sidebar. Entries keyed "new_*"
// are new sources.
type SourceForm struct {
	Name              string `json:"name"`
	Affiliation       string `json:"affiliation"`
	Race              string `json:"race"`
	Ethnicity         string `json:"ethnicity"`
	Age               string `json:"age"`
	Gender            string `json:"gender"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	Zip               string `json:"zip"`
	SexualOrientation string `json:"sexual_orientation"`
	Role              string `json:"role"`
}

// Form is the publish/preview form submitted for a document.
type Form struct {
	ArticleID        FlexInt               `json:"article-id"`
	Slug             string                `json:"article-slug"`
	Headline         string                `json:"article-headline"`
	Locale           string                `json:"article-locale"`
	CategoryID       FlexInt               `json:"article-category"`
	Tags             StringList            `json:"article-tags"`
	Authors          StringList            `json:"article-authors"`
	CustomByline     string                `json:"article-custom-byline"`
	SearchTitle      string                `json:"article-search-title"`
	SearchDesc       string                `json:"article-search-description"`
	TwitterTitle     string                `json:"article-twitter-title"`
	TwitterDesc      string                `json:"article-twitter-description"`
	FacebookTitle    string                `json:"article-facebook-title"`
	FacebookDesc     string                `json:"article-facebook-description"`
	FirstPublishedAt string                `json:"first-published-at"`
	CreatedByEmail   string                `json:"created_by_email"`
	DocumentID       string                `json:"document-id"`
	DocumentURL      string                `json:"document-url"`
	Sources          map[string]SourceForm `json:"sources"`
}

// ParseForm decodes a form from JSON.
func ParseForm(data []byte) (Form, error) {
	var f Form
	if err := json.Unmarshal(data, &f); err != nil {
		return Form{}, fmt.Errorf("invalid form: %w", err)
	}
	return f, nil
}

// authorIDs converts the selected authors to numeric IDs.
func (f Form) authorIDs() ([]int, error) {
	ids := make([]int, 0, len(f.Authors))
	for _, a := range f.Authors {
		id, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, fmt.Errorf("invalid author id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
