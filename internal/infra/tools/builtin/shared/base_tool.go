package shared

import "offload/internal/domain/agent/ports"

// BaseTool carries the static definition and metadata every builtin tool
// exposes. Embed it and implement Execute.
type BaseTool struct {
	def  ports.ToolDefinition
	meta ports.ToolMetadata
}

// NewBaseTool constructs a BaseTool, syncing the name across definition and
// metadata when only one side sets it.
func NewBaseTool(def ports.ToolDefinition, meta ports.ToolMetadata) BaseTool {
	switch {
	case def.Name == "" && meta.Name != "":
		def.Name = meta.Name
	case meta.Name == "" && def.Name != "":
		meta.Name = def.Name
	}
	return BaseTool{def: def, meta: meta}
}

// Definition returns the tool's schema for the LLM.
func (b *BaseTool) Definition() ports.ToolDefinition { return b.def }

// Metadata returns the tool's runtime metadata.
func (b *BaseTool) Metadata() ports.ToolMetadata { return b.meta }
