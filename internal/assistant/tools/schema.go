package tools

import (
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// SchemaVersion changes whenever a tool or parameter is added, removed or
// changes shape.
const SchemaVersion = "2026-03-01"

// Descriptor is the public description of one tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Descriptors lists the catalog with JSON schemas derived from the params
// structs.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, Descriptor{
			Name:        spec.name,
			Description: spec.description,
			Parameters:  schemaFor(spec.new()),
		})
	}
	return out
}

// Declarations returns the catalog as model function declarations.
func Declarations() []*genai.FunctionDeclaration {
	descs := Descriptors()
	out := make([]*genai.FunctionDeclaration, 0, len(descs))
	for _, d := range descs {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Parameters,
		})
	}
	return out
}

func schemaFor(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	props := make(map[string]any, t.NumField())
	required := []string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}

		kind := jsonType(f.Type.Kind())
		prop := map[string]any{"type": kind}
		if desc := f.Tag.Get("desc"); desc != "" {
			prop["description"] = desc
		}
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			key, param, _ := strings.Cut(rule, "=")
			switch key {
			case "required":
				required = append(required, name)
			case "oneof":
				prop["enum"] = strings.Fields(param)
			case "uuid":
				prop["format"] = "uuid"
			case "min", "max":
				n, err := strconv.Atoi(param)
				if err != nil {
					continue
				}
				prop[boundKeyword(key, kind)] = n
			}
		}
		props[name] = prop
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return "string"
	}
}

func boundKeyword(rule, kind string) string {
	if kind == "string" {
		if rule == "min" {
			return "minLength"
		}
		return "maxLength"
	}
	if rule == "min" {
		return "minimum"
	}
	return "maximum"
}
