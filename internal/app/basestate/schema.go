package basestate

import "github.com/santhosh-tekuri/jsonschema/v5"

const stateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "cells": {
      "type": "array",
      "maxItems": 16,
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "x": {"type": "number"},
          "y": {"type": "number"}
        }
      }
    },
    "placements": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["buildingId", "tier"],
        "properties": {
          "buildingId": {"type": "string", "minLength": 1},
          "tier": {"type": "integer", "minimum": 1, "maximum": 4}
        }
      }
    },
    "buildingVisuals": {"type": "object"},
    "buildQueue": {
      "type": "object",
      "properties": {
        "active": {"type": ["object", "null"]},
        "queued": {"type": ["array", "null"], "maxItems": 1}
      }
    },
    "mechanicsState": {"type": "object"}
  }
}`

// StateValidator is satisfied by *jsonschema.Schema.
type StateValidator interface {
	Validate(v interface{}) error
}

func NewSchema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("base_state.schema.json", stateSchema)
}
