package gemini

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verilens/verilens/internal/core/domain"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptTemplates struct {
	Observation struct {
		Task   string `yaml:"task"`
		Output string `yaml:"output"`
	} `yaml:"observation"`
	Forensic struct {
		Task        string `yaml:"task"`
		Calibration string `yaml:"calibration"`
		Output      string `yaml:"output"`
	} `yaml:"forensic"`
	Checklists map[string][]string `yaml:"checklists"`
	Languages  map[string]string   `yaml:"languages"`
}

var templates = mustLoadTemplates()

func mustLoadTemplates() promptTemplates {
	var t promptTemplates
	if err := yaml.Unmarshal(promptsYAML, &t); err != nil {
		panic(fmt.Sprintf("gemini: parse embedded prompts: %v", err))
	}
	return t
}

// buildObservationPrompt produces the pass-1 prompt. The first pass is barred
// from concluding authenticity so it cannot anchor the forensic pass.
func buildObservationPrompt(mediaType domain.MediaType, lang domain.Language) string {
	var b strings.Builder
	b.WriteString(expandMediaType(templates.Observation.Task, mediaType))
	b.WriteString("\n")
	b.WriteString(languageInstruction(lang))
	b.WriteString("\n\n")
	b.WriteString(templates.Observation.Output)
	return b.String()
}

// buildForensicPrompt produces the pass-2 prompt: the pass-1 observations
// verbatim, the per-type checklist, the calibration rule and the response
// schema.
func buildForensicPrompt(mediaType domain.MediaType, observations []string, lang domain.Language) string {
	var b strings.Builder
	b.WriteString(expandMediaType(templates.Forensic.Task, mediaType))
	b.WriteString("\n")
	b.WriteString(languageInstruction(lang))

	b.WriteString("\n\nFirst-pass observations:\n")
	if len(observations) == 0 {
		b.WriteString("(none recorded)\n")
	}
	for i, obs := range observations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, obs)
	}

	b.WriteString("\nForensic checklist for this media type:\n")
	for _, item := range templates.Checklists[string(mediaType)] {
		fmt.Fprintf(&b, "- %s\n", item)
	}

	b.WriteString("\n")
	b.WriteString(templates.Forensic.Calibration)
	b.WriteString("\n\n")
	b.WriteString(templates.Forensic.Output)
	return b.String()
}

func expandMediaType(tpl string, mediaType domain.MediaType) string {
	return strings.ReplaceAll(tpl, "{media_type}", string(mediaType))
}

func languageInstruction(lang domain.Language) string {
	if s, ok := templates.Languages[string(lang)]; ok {
		return s
	}
	return templates.Languages[string(domain.LanguageEnglish)]
}
