package builder

import (
	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/opgraph"
)

// ResolveKind maps a kind name to the OpKind declared for it. Undeclared
// kinds have unchecked arity.
func ResolveKind(kinds map[string]*config.KindDef, name string) opgraph.OpKind {
	def, ok := kinds[name]
	if !ok {
		return opgraph.Kind(name)
	}
	return opgraph.FixedKind(name, def.Inputs, def.Outputs)
}
