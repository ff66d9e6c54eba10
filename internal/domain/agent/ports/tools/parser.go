package tools

// ArgumentParser decodes raw tool-call arguments emitted by a model.
type ArgumentParser interface {
	Parse(raw string) (map[string]any, error)
}
