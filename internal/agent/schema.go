package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// schemaCache memoizes generated schemas per type so repeated calls (one
// per pipeline cycle) don't re-run reflection every time.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]json.RawMessage{}
)

// schemaFor generates a JSON Schema document for T, suitable for
// llmclient.Client.CallStructured's schema argument. Reimplemented
// independently of kadirpekel-hector's functiontool/schema.go (which
// carries an AGPL header this module does not use), but following the
// same Reflector configuration: jsonschema-tag-driven required fields,
// inlined definitions, no top-level $schema/$id.
func schemaFor[T any]() (json.RawMessage, error) {
	key := fmt.Sprintf("%T", *new(T))

	schemaCacheMu.Lock()
	if cached, ok := schemaCache[key]; ok {
		schemaCacheMu.Unlock()
		return cached, nil
	}
	schemaCacheMu.Unlock()

	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal schema for %s: %w", key, err)
	}

	schemaCacheMu.Lock()
	schemaCache[key] = raw
	schemaCacheMu.Unlock()

	return raw, nil
}
