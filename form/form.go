package form

import (
	"iter"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Data struct {
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
	Type     string `json:"type,omitempty"`
	Charset  string `json:"charset,omitempty"`
	Value    string `json:"value,omitempty"`
	// File is whatever the upload handler returned for the file part. Nil for text fields.
	File any `json:"file,omitempty"`
}

// IsFile tells whether the entry came from a file part.
func (d Data) IsFile() bool {
	return d.File != nil
}

// Form is an ordered list of entries. Names aren't unique.
type Form []Data

// Name returns the first Data matching the name.
func (f Form) Name(name string) (Data, bool) {
	for data := range f.Names(name) {
		return data, true
	}

	return Data{}, false
}

// Names returns an iterator over all Data matching the name.
func (f Form) Names(name string) iter.Seq[Data] {
	return func(yield func(Data) bool) {
		for _, entry := range f {
			if entry.Name == name {
				if !yield(entry) {
					break
				}
			}
		}
	}
}

// Values returns text values of all entries matching the name.
func (f Form) Values(name string) (values []string) {
	for data := range f.Names(name) {
		if !data.IsFile() {
			values = append(values, data.Value)
		}
	}

	return values
}

// File returns the first Data matching the filename.
func (f Form) File(name string) (Data, bool) {
	for data := range f.Files(name) {
		return data, true
	}

	return Data{}, false
}

// Files returns an iterator over all Data matching the filename.
func (f Form) Files(name string) iter.Seq[Data] {
	return func(yield func(Data) bool) {
		for _, entry := range f {
			if entry.IsFile() && entry.Filename == name {
				if !yield(entry) {
					break
				}
			}
		}
	}
}

// JSON serializes the form as an array of entries. Files are serialized as they were
// returned by the upload handler.
func (f Form) JSON() ([]byte, error) {
	if f == nil {
		f = Form{}
	}

	return json.Marshal(f)
}
