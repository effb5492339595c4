package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/ctxlog"
	"github.com/specialistvlad/flowgrid/internal/pintype"
	"github.com/zclconf/go-cty/cty"
)

// Validate checks every registered declaration: pin names are unique, data
// types parse, defaults decode against their types and start nodes have no
// execution inputs.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for typeName, decl := range r.templates {
		seen := make(map[string]struct{}, len(decl.Pins))
		for _, p := range decl.Pins {
			if _, dup := seen[p.Name]; dup {
				errs = append(errs, fmt.Sprintf("node '%s': pin '%s' is declared twice", typeName, p.Name))
			}
			seen[p.Name] = struct{}{}

			if decl.Start && p.Kind == board.Execution && p.Direction == board.Input {
				errs = append(errs, fmt.Sprintf("node '%s': start nodes cannot have execution input '%s'", typeName, p.Name))
			}
			if p.Kind != board.Data {
				continue
			}

			ty, err := pintype.Parse(p.DataType)
			if err != nil {
				errs = append(errs, fmt.Sprintf("node '%s', pin '%s': %v", typeName, p.Name, err))
				continue
			}
			if ty.Equals(cty.DynamicPseudoType) && p.Direction == board.Input {
				logger.Debug("Input pin accepts any type, values will not be checked.", "node", typeName, "pin", p.Name)
			}
			if _, err := pintype.DecodeJSON(p.DefaultValue, ty); err != nil {
				errs = append(errs, fmt.Sprintf("node '%s', pin '%s': default: %v", typeName, p.Name, err))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
