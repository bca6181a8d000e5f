package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"webstats/internal/timeframe"
)

// QueryRequest is the public contract of the engine. It decodes from JSON
// (HTTP API) and YAML (wsctl query files).
type QueryRequest struct {
	// Filters maps a filter name to its operators; several operators on one
	// filter are combined with AND.
	Filters     map[string]map[string]any `json:"filters,omitempty" yaml:"filters,omitempty"`
	GroupBy     GroupByList               `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	Projection  []string                  `json:"projection,omitempty" yaml:"projection,omitempty"`
	Attribution Attribution               `json:"attribution,omitempty" yaml:"attribution,omitempty"`
	DateRange   *DateRange                `json:"date_range,omitempty" yaml:"date_range,omitempty"`
	Order       []OrderTerm               `json:"order,omitempty" yaml:"order,omitempty"`
	Limit       int                       `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset      int                       `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// DateRange selects the time window either by preset or by explicit bounds.
type DateRange struct {
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`
	From   string `json:"from,omitempty" yaml:"from,omitempty"`
	To     string `json:"to,omitempty" yaml:"to,omitempty"`
	Tz     string `json:"tz,omitempty" yaml:"tz,omitempty"`
}

func (d *DateRange) params() timeframe.TimeFrameParserParams {
	if d == nil {
		return timeframe.TimeFrameParserParams{}
	}
	return timeframe.TimeFrameParserParams{
		Preset:   d.Preset,
		FromDate: d.From,
		ToDate:   d.To,
		Tz:       d.Tz,
	}
}

// GroupByList accepts either a single name or a list of names.
type GroupByList []string

func (g *GroupByList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*g = nil
		} else {
			*g = GroupByList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("group_by must be a string or a list of strings")
	}
	*g = list
	return nil
}

func (g *GroupByList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*g = nil
		} else {
			*g = GroupByList{value.Value}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*g = list
		return nil
	}
	return fmt.Errorf("group_by must be a string or a list of strings")
}

// DecodeRequestJSON decodes a request keeping numbers as json.Number so
// integer filter values survive without float rounding.
func DecodeRequestJSON(data []byte) (*QueryRequest, error) {
	var req QueryRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, &InvalidRequestError{Field: "body", Reason: err.Error()}
	}
	return &req, nil
}

// DecodeRequestYAML decodes a YAML query file. Unquoted dates stay strings
// so they are read exactly as the same request sent as JSON.
func DecodeRequestYAML(data []byte) (*QueryRequest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidRequestError{Field: "body", Reason: err.Error()}
	}
	var req QueryRequest
	if doc.Kind == 0 {
		return &req, nil
	}
	timestampsAsStrings(&doc)
	if err := doc.Decode(&req); err != nil {
		return nil, &InvalidRequestError{Field: "body", Reason: err.Error()}
	}
	return &req, nil
}

func timestampsAsStrings(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
	}
	for _, child := range n.Content {
		timestampsAsStrings(child)
	}
}
