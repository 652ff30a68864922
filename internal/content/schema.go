package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload is returned when formatted blocks do not match the
// published content schema.
var ErrInvalidPayload = errors.New("invalid content payload")

const payloadSchemaURL = "docpub://content-blocks.json"

// payloadSchema describes the block sequence the content API stores.
const payloadSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type"],
    "properties": {
      "type": {"enum": ["text", "blockquote", "list", "image", "mainImage", "embed", "hr"]},
      "style": {"type": "string"},
      "link": {"type": "string"},
      "listType": {"type": "string"},
      "items": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["nestingLevel", "children"],
          "properties": {
            "nestingLevel": {"type": "integer", "minimum": 0},
            "children": {"type": "array", "items": {"$ref": "#/$defs/text"}}
          }
        }
      },
      "children": {
        "type": "array",
        "items": {"oneOf": [{"$ref": "#/$defs/text"}, {"$ref": "#/$defs/image"}]}
      }
    },
    "allOf": [
      {
        "if": {"properties": {"type": {"const": "list"}}},
        "then": {"required": ["listType", "items"]}
      },
      {
        "if": {"properties": {"type": {"const": "embed"}}},
        "then": {"required": ["link"]}
      },
      {
        "if": {"properties": {"type": {"enum": ["image", "mainImage"]}}},
        "then": {"required": ["children"]}
      }
    ]
  },
  "$defs": {
    "text": {
      "type": "object",
      "required": ["content", "style"],
      "properties": {
        "content": {"type": "string"},
        "link": {"type": "string"},
        "style": {
          "type": "object",
          "required": ["bold", "italic", "underline"],
          "properties": {
            "bold": {"type": "boolean"},
            "italic": {"type": "boolean"},
            "underline": {"type": "boolean"}
          }
        }
      }
    },
    "image": {
      "type": "object",
      "required": ["imageId", "imageUrl", "width", "height"],
      "properties": {
        "imageId": {"type": "string", "minLength": 1},
        "imageUrl": {"type": "string", "minLength": 1},
        "imageAlt": {"type": "string"},
        "width": {"type": "number"},
        "height": {"type": "number"}
      }
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func schema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(payloadSchemaURL, strings.NewReader(payloadSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("failed to load payload schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile(payloadSchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// ValidatePayload checks formatted blocks against the content schema.
func ValidatePayload(blocks []OutputBlock) error {
	s, err := schema()
	if err != nil {
		return err
	}

	if blocks == nil {
		blocks = []OutputBlock{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode payload for validation: %w", err)
	}

	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
