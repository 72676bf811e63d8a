package judge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// renderTemplate substitutes {{name}} placeholders literally. Unknown
// placeholders are left in place so template typos are visible in the prompt
// rather than silently erased.
func renderTemplate(tmpl string, vars map[string]string) string {
	replacements := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		replacements = append(replacements, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

// assertionsBlock renders an indexed, numbered list so the model can key its
// reply by index. Argument-scoped assertions carry the argument name.
func assertionsBlock(assertions []BatchAssertion) string {
	var b strings.Builder
	for i, a := range assertions {
		if a.ArgName != "" {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i, a.ArgName, a.Text)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i, a.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// rubricBlock renders the config's criteria with level descriptors, or an
// empty string in binary mode.
func rubricBlock(jc *models.JudgeConfig) string {
	if jc.ScoringMode != models.ScoringRubric || len(jc.Criteria) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Grade against this rubric:\n")
	for _, criterion := range jc.Criteria {
		fmt.Fprintf(&b, "- %s", criterion.Name)
		if criterion.Description != "" {
			fmt.Fprintf(&b, ": %s", criterion.Description)
		}
		b.WriteString("\n")
		levels := make([]int, 0, len(criterion.Levels))
		for level := range criterion.Levels {
			levels = append(levels, level)
		}
		sort.Ints(levels)
		for _, level := range levels {
			fmt.Fprintf(&b, "    %d: %s\n", level, criterion.Levels[level])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
