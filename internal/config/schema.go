package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaDoc is the JSON Schema entropyd's configuration must satisfy,
// checked in addition to the structural Validate() rules in config.go. It
// catches malformed TOML-to-JSON shapes (wrong types, negative sizes);
// the daemon runs it after Loader.Load, which has already run Validate().
const schemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["pool_size_bytes", "control_sockets"],
  "properties": {
    "pool_size_bytes": {"type": "integer", "minimum": 1},
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["serial_id", "chunk_size"],
        "properties": {
          "serial_id": {"type": "string", "minLength": 1},
          "device_path": {"type": "string"},
          "bitrate_bps": {"type": "integer", "minimum": 0},
          "chunk_size": {"type": "integer", "minimum": 1},
          "fold_k": {"type": "integer", "minimum": 0},
          "group_id": {"type": "integer", "minimum": 0},
          "group_buffer_size": {"type": "integer", "minimum": 0},
          "idle_sleep_init_ms": {"type": "integer", "minimum": 0},
          "idle_sleep_max_ms": {"type": "integer", "minimum": 0},
          "suspend_after_ms": {"type": "integer", "minimum": 0},
          "skip_qa": {"type": "boolean"},
          "tpm": {"type": "boolean"}
        }
      }
    },
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "size_bytes"],
        "properties": {
          "id": {"type": "integer", "minimum": 0},
          "size_bytes": {"type": "integer", "minimum": 1}
        }
      }
    },
    "control_sockets": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["address"],
        "properties": {
          "address": {"type": "string", "minLength": 1},
          "group": {"type": "string"},
          "auth_token": {"type": "string"}
        }
      }
    },
    "kernel_feeder": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "low_watermark_bits": {"type": "integer", "minimum": 0},
        "poll_interval_ms": {"type": "integer", "minimum": 0},
        "refill_time_ms": {"type": "integer", "minimum": 0}
      }
    },
    "audit_db_path": {"type": "string"},
    "dbus_notify": {"type": "boolean"},
    "log_level": {"type": "string", "enum": ["debug", "info", "warn", "warning", "error"]},
    "log_format": {"type": "string", "enum": ["text", "json"]}
  }
}`

var compiledSchema *jsonschema.Schema

func compiledConfigSchema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("entropyd-config.json", bytes.NewReader([]byte(schemaDoc))); err != nil {
		return nil, fmt.Errorf("config: add schema resource: %w", err)
	}
	schema, err := compiler.Compile("entropyd-config.json")
	if err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}
	compiledSchema = schema
	return schema, nil
}

// ValidateSchema checks c against entropyd's JSON Schema, catching
// structural problems (missing required fields, wrong types) that
// Validate()'s handwritten rules don't cover directly.
func (c *Config) ValidateSchema() error {
	schema, err := compiledConfigSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal for schema check: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("config: unmarshal for schema check: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("config: schema validation: %w", err)
	}
	return nil
}
