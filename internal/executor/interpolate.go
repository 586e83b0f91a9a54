package executor

import (
	"regexp"

	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
)

var placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// resolveConfig substitutes {{name}} placeholders in every string-valued
// configuration field with the result of the most recent prior successful
// action whose type produces that variable. Unresolved placeholders stay as
// literal text. Scoped strictly to the results of the current execution.
func resolveConfig(reg *registry.Registry, config map[string]string, prior []types.ActionResult) map[string]string {
	vars := map[string]string{}
	for _, result := range prior {
		if result.Status != types.ResultStatusSuccess {
			continue
		}
		info, err := reg.Describe(registry.KindAction, result.Type)
		if err != nil || info.Produces == "" {
			continue
		}
		// later entries override, so the most recent prior result wins
		vars[info.Produces] = result.Result
	}

	resolved := make(map[string]string, len(config))
	for key, value := range config {
		resolved[key] = placeholderRe.ReplaceAllStringFunc(value, func(match string) string {
			name := placeholderRe.FindStringSubmatch(match)[1]
			if v, ok := vars[name]; ok {
				return v
			}
			return match
		})
	}
	return resolved
}
