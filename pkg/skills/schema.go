package skills

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema describes Kind as a closed enumeration
func (Kind) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: []any{string(KindFile), string(KindString), string(KindNumber), string(KindBoolean)},
	}
}

// ManifestSchema returns the JSON schema of a skill.json document. Unknown
// properties are allowed so older hosts accept newer manifests.
func ManifestSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Manifest{})
	schema.Title = "llmi skill manifest"
	return schema
}
