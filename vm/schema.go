package vm

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tolelom/tolledger/core"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// payloadSchemas holds one compiled schema per call type, keyed by the file
// name without extension.
var payloadSchemas = map[core.TxType]*gojsonschema.Schema{}

func init() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("vm: read schemas: %v", err))
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("vm: read schema %s: %v", e.Name(), err))
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("vm: failed to load schema %s: %v", e.Name(), err))
		}
		payloadSchemas[core.TxType(strings.TrimSuffix(e.Name(), ".json"))] = s
	}
}

// checkPayload validates payload against s. An empty or null payload is
// validated as {}. Failures wrap core.ErrInvalidCall.
func checkPayload(s *gojsonschema.Schema, typ core.TxType, payload []byte) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %v", core.ErrInvalidCall, err)
	}
	if !result.Valid() {
		var msg string
		for _, desc := range result.Errors() {
			if msg != "" {
				msg += "; "
			}
			msg += desc.String()
		}
		return fmt.Errorf("%w: %s payload: %s", core.ErrInvalidCall, typ, msg)
	}
	return nil
}
