// Package feed fetches the raw measurement document and validates its shape.
package feed

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"CapIot.powerfeed/internal/models"
)

// RawSample is a feed sample before normalization. Value is either a float64
// or a string (possibly with a decimal comma).
type RawSample struct {
	Time  string
	Value any
}

// RawSeries is a feed series before normalization.
type RawSeries struct {
	Unit   string
	Values []RawSample
}

// Document is a structurally valid feed document.
type Document struct {
	Temperature RawSeries
	Power       RawSeries
}

// Source produces a feed document. Transport problems are reported as
// *models.FetchError, shape problems as *models.ParseError.
type Source interface {
	Fetch(ctx context.Context) (*Document, error)
}

// Parse decodes a YAML feed document and checks every field the pipeline
// reads. Nothing is defaulted: a missing or mistyped field is a ParseError.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &models.ParseError{Reason: "invalid YAML", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &models.ParseError{Reason: "empty document"}
	}
	top := resolve(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, &models.ParseError{Reason: "document root must be a mapping"}
	}

	doc := &Document{}
	var err error
	if doc.Temperature, err = parseSeries(top, "temperature"); err != nil {
		return nil, err
	}
	if doc.Power, err = parseSeries(top, "power"); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseSeries(parent *yaml.Node, key string) (RawSeries, error) {
	node, err := requireKey(parent, key, key)
	if err != nil {
		return RawSeries{}, err
	}
	if node.Kind != yaml.MappingNode {
		return RawSeries{}, &models.ParseError{Path: key, Reason: "must be a mapping"}
	}

	var series RawSeries
	if unit := lookup(node, "unit"); unit != nil {
		if unit.Kind != yaml.ScalarNode {
			return RawSeries{}, &models.ParseError{Path: key + ".unit", Reason: "must be a string"}
		}
		series.Unit = unit.Value
	}

	values, err := requireKey(node, "values", key+".values")
	if err != nil {
		return RawSeries{}, err
	}
	if values.Kind != yaml.SequenceNode {
		return RawSeries{}, &models.ParseError{Path: key + ".values", Reason: "must be a list"}
	}

	series.Values = make([]RawSample, 0, len(values.Content))
	for i, item := range values.Content {
		path := fmt.Sprintf("%s.values[%d]", key, i)
		sample, err := parseSample(resolve(item), path)
		if err != nil {
			return RawSeries{}, err
		}
		series.Values = append(series.Values, sample)
	}
	return series, nil
}

func parseSample(node *yaml.Node, path string) (RawSample, error) {
	if node.Kind != yaml.MappingNode {
		return RawSample{}, &models.ParseError{Path: path, Reason: "must be a mapping"}
	}

	timeNode, err := requireKey(node, "time", path+".time")
	if err != nil {
		return RawSample{}, err
	}
	if timeNode.Kind != yaml.ScalarNode || timeNode.Tag == "!!null" {
		return RawSample{}, &models.ParseError{Path: path + ".time", Reason: "must be a string"}
	}

	valueNode, err := requireKey(node, "value", path+".value")
	if err != nil {
		return RawSample{}, err
	}
	value, err := scalarValue(valueNode, path+".value")
	if err != nil {
		return RawSample{}, err
	}
	return RawSample{Time: timeNode.Value, Value: value}, nil
}

// scalarValue keeps the value in the form the feed used: numbers become
// float64, strings stay strings for the normalizer.
func scalarValue(node *yaml.Node, path string) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, &models.ParseError{Path: path, Reason: "must be a number or a string"}
	}
	switch node.Tag {
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, &models.ParseError{Path: path, Reason: "unreadable number", Err: err}
		}
		return f, nil
	case "!!str":
		return node.Value, nil
	case "!!null":
		return nil, &models.ParseError{Path: path, Reason: "is missing"}
	default:
		return nil, &models.ParseError{Path: path, Reason: "must be a number or a string, got " + strconv.Quote(node.Tag)}
	}
}

func requireKey(parent *yaml.Node, key, path string) (*yaml.Node, error) {
	node := lookup(parent, key)
	if node == nil {
		return nil, &models.ParseError{Path: path, Reason: "is missing"}
	}
	return node, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolve(mapping.Content[i+1])
		}
	}
	return nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
