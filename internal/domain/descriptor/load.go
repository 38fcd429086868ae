package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

const querySchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name":             {"type": "string", "minLength": 1},
    "index":            {"type": "string", "minLength": 1},
    "shape":            {"type": "string", "minLength": 1},
    "result":           {"type": "string", "minLength": 1},
    "fields":           {"type": "array", "items": {"type": "string"}},
    "case_insensitive": {"type": "boolean"},
    "range":            {"type": "array", "items": {"type": "string"}},
    "ignore":           {"type": "array", "items": {"type": "string"}},
    "nested": {
      "type": "object",
      "required": ["path"],
      "properties": {
        "path":   {"type": "string", "minLength": 1},
        "params": {"type": "array", "items": {"type": "string"}}
      }
    },
    "sort": {
      "type": "object",
      "properties": {
        "default": {"type": "string"},
        "fields":  {"type": "object", "additionalProperties": {"type": "string"}}
      }
    },
    "page": {
      "type": "object",
      "properties": {
        "default_size": {"type": "integer", "minimum": 1},
        "max_size":     {"type": "integer", "minimum": 1}
      }
    },
    "search": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field", "match"],
        "properties": {
          "field": {"type": "string", "minLength": 1},
          "match": {"type": "string"}
        }
      }
    },
    "highlight": {
      "type": "object",
      "properties": {
        "pre_tag":       {"type": "string"},
        "post_tag":      {"type": "string"},
        "fragment_size": {"type": "integer", "minimum": 1},
        "fields":        {"type": "array", "items": {"type": "string"}}
      }
    },
    "members": {"type": "array", "minItems": 1, "items": {"type": "string"}}
  },
  "oneOf": [
    {"required": ["members"]},
    {"required": ["index", "shape", "result"]}
  ]
}`

var compiledSchema = mustSchema(querySchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("descriptor schema: %v", err))
	}
	return s
}

type file struct {
	Queries []yaml.Node `yaml:"queries"`
}

// Load reads every descriptor file. Missing files are skipped.
// A query that fails validation is reported in errs and left out of queries;
// the remaining queries still load.
func Load(paths ...string) (queries []Query, errs []error) {
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("read descriptor %s: %w", p, err))
			continue
		}
		qs, fileErrs := Parse(data)
		for _, e := range fileErrs {
			errs = append(errs, fmt.Errorf("%s: %w", p, e))
		}
		queries = append(queries, qs...)
	}
	return queries, errs
}

// Parse decodes and validates the queries of one descriptor document.
func Parse(data []byte) (queries []Query, errs []error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, []error{fmt.Errorf("parse descriptor: %w", err)}
	}
	for i := range f.Queries {
		q, err := decodeQuery(&f.Queries[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("query #%d: %w", i, err))
			continue
		}
		queries = append(queries, q)
	}
	return queries, errs
}

func decodeQuery(node *yaml.Node) (Query, error) {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return Query{}, fmt.Errorf("decode: %w", err)
	}
	res, err := compiledSchema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return Query{}, fmt.Errorf("validate: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		name, _ := raw["name"].(string)
		return Query{}, fmt.Errorf("%s: %s: %w", name, strings.Join(msgs, "; "), domain.ErrInvalidDescriptor)
	}

	var q Query
	if err := node.Decode(&q); err != nil {
		return Query{}, fmt.Errorf("decode %s: %w", raw["name"], err)
	}
	return q, nil
}
