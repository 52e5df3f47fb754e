package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/act.schema.json
var actSchemaJSON string

var (
	actSchemaOnce sync.Once
	actSchema     *jsonschema.Schema
	actSchemaErr  error
)

func compiledActSchema() (*jsonschema.Schema, error) {
	actSchemaOnce.Do(func() {
		actSchema, actSchemaErr = jsonschema.CompileString("act.schema.json", actSchemaJSON)
	})
	return actSchema, actSchemaErr
}

// DecodeAct validates raw against the ACT schema and decodes it.
func DecodeAct(raw []byte) (ActMsg, error) {
	var act ActMsg
	s, err := compiledActSchema()
	if err != nil {
		return act, fmt.Errorf("act schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return act, fmt.Errorf("%s: %w", ErrProtoBadRequest, err)
	}
	if err := s.Validate(doc); err != nil {
		return act, fmt.Errorf("%s: %w", ErrProtoBadRequest, err)
	}
	if err := json.Unmarshal(raw, &act); err != nil {
		return act, fmt.Errorf("%s: %w", ErrProtoBadRequest, err)
	}
	return act, nil
}
