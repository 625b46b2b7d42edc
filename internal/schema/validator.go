// Package schema validates structured documents crossing service boundaries
// against JSON Schemas: the credibility scorer's model response and outbound
// interview events.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const assessmentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["credibility_score", "credibility_level", "recommendation"],
  "properties": {
    "credibility_score": {"type": "number", "minimum": 0, "maximum": 100},
    "credibility_level": {"type": "string", "minLength": 1},
    "inconsistencies_found": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["area"],
        "properties": {
          "area": {"type": "string", "minLength": 1},
          "form_answer": {"type": "string"},
          "interview_answer": {"type": "string"},
          "severity": {"type": "string"},
          "explanation": {"type": "string"}
        }
      }
    },
    "consistency_areas": {"type": "array", "items": {"type": "string"}},
    "red_flags": {"type": "array", "items": {"type": "string"}},
    "recommendation": {"type": "string", "minLength": 1},
    "bottom_line_summary": {"type": "string"}
  }
}`

const turnEventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["eventType", "sessionId", "candidateId", "turn", "stage"],
  "properties": {
    "eventType": {"type": "string", "minLength": 1},
    "sessionId": {"type": "string", "minLength": 1},
    "candidateId": {"type": "string", "minLength": 1},
    "turn": {"type": "integer", "minimum": 0},
    "stage": {"type": "string", "minLength": 1},
    "inconsistencyCount": {"type": "integer", "minimum": 0}
  }
}`

// Validator holds compiled schemas for the documents the service validates.
type Validator struct {
	assessment *jsonschema.Schema
	turnEvent  *jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	assessment, err := compile("assessment.json", assessmentSchema)
	if err != nil {
		return nil, err
	}
	turnEvent, err := compile("turn_event.json", turnEventSchema)
	if err != nil {
		return nil, err
	}
	return &Validator{assessment: assessment, turnEvent: turnEvent}, nil
}

func compile(name, raw string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return sch, nil
}

// ValidateAssessment checks a decoded scorer response document.
func (v *Validator) ValidateAssessment(doc any) error {
	return v.validate(v.assessment, doc)
}

// ValidateTurnEvent checks an outbound turn event before publishing.
func (v *Validator) ValidateTurnEvent(event any) error {
	return v.validate(v.turnEvent, event)
}

// validate round-trips the value through JSON so struct inputs validate the
// same way decoded documents do.
func (v *Validator) validate(sch *jsonschema.Schema, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("reparse for validation: %w", err)
	}
	return sch.Validate(inst)
}
