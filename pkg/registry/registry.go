// Package registry maps component names from config to their constructors.
// Each factory receives its raw JSON options and decodes them strictly.
package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"labpivot/pkg/contract"
	lfs "labpivot/plugins/lister/filesystem"
	spdf "labpivot/plugins/source/pdf"
	stxt "labpivot/plugins/source/text"
	wcsv "labpivot/plugins/writer/csv"
	wpg "labpivot/plugins/writer/postgres"
	wxlsx "labpivot/plugins/writer/xlsx"
)

// strictUnmarshal rejects unknown fields; empty raw keeps the zero options.
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewLister builds a lister from its raw options.
type NewLister func(raw json.RawMessage) (contract.Lister, error)

// NewSource builds a text source from its raw options.
type NewSource func(raw json.RawMessage) (contract.TextSource, error)

// NewWriter builds a table writer from its raw options.
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Lister factories.
var Lister = map[string]NewLister{
	// fs: local directories
	"fs": func(raw json.RawMessage) (contract.Lister, error) {
		var opts lfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return lfs.New(&opts), nil
	},
}

// Source factories.
var Source = map[string]NewSource{
	// pdf: text layer of PDF reports
	"pdf": func(raw json.RawMessage) (contract.TextSource, error) {
		var opts spdf.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return spdf.New(&opts), nil
	},
	// text: reports already converted to text
	"text": func(raw json.RawMessage) (contract.TextSource, error) {
		var opts stxt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return stxt.New(&opts)
	},
}

// Writer factories.
var Writer = map[string]NewWriter{
	"csv": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wcsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wcsv.New(&opts)
	},
	"xlsx": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wxlsx.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wxlsx.New(&opts)
	},
	"postgres": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wpg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wpg.New(&opts)
	},
}

// Names returns the sorted keys of a factory map, for help and error text.
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
