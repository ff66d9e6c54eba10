package scripted

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultClosing = "All scripted work has been handed off."

// Script is the list of turns the agent plays in order. A turn is prose with
// optional <tool_call> blocks.
type Script struct {
	Turns   []string `yaml:"turns"`
	Closing string   `yaml:"closing"`
}

func (s Script) closing() string {
	if strings.TrimSpace(s.Closing) == "" {
		return defaultClosing
	}
	return s.Closing
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(script.Turns) == 0 {
		return Script{}, fmt.Errorf("script %s has no turns", path)
	}
	return script, nil
}

// DemoScript delegates a slow job, a failing job and optionally a crawl, then
// polls once so the first turn ends with work still running.
func DemoScript(crawlURL string) Script {
	var b strings.Builder
	b.WriteString("Handing the slow work to the background.\n")
	b.WriteString(`<tool_call>{"name": "delegate", "args": {"description": "simulate a long build", "kind": "simulate", "args": {"steps": 5, "step_ms": 200, "result": "build finished: 5 steps"}}}</tool_call>` + "\n")
	b.WriteString(`<tool_call>{"name": "delegate", "args": {"description": "simulate a flaky check", "kind": "simulate", "args": {"steps": 4, "step_ms": 100, "fail_at": 3}}}</tool_call>` + "\n")
	if url := strings.TrimSpace(crawlURL); url != "" {
		fmt.Fprintf(&b, `<tool_call>{"name": "delegate", "args": {"description": %q, "kind": "crawl", "args": {"url": %q}}}</tool_call>`+"\n", "crawl "+url, url)
	}
	b.WriteString(`<tool_call>{"name": "task_output", "args": {}}</tool_call>`)
	return Script{
		Turns:   []string{b.String()},
		Closing: "Background results are in. Done.",
	}
}
