package auth

import (
	"sort"

	"assetplane/backend/pkg/models"
)

// FieldRestriction limits who may read or write a single entity field.
// An empty role list means no role passes (short of admin, which always
// does).
type FieldRestriction struct {
	Field      string `mapstructure:"field"`
	ReadRoles  []Role `mapstructure:"read_roles"`
	WriteRoles []Role `mapstructure:"write_roles"`
}

func roleListed(role Role, roles []Role) bool {
	if role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// MaskObjectForActor returns a copy of the entity with restricted fields
// nulled out when the actor's role is not in the field's allowed-read
// set. Provenance for masked fields is dropped from the copy too, since
// historical values leak through it.
func MaskObjectForActor(entity *models.Entity, actor Actor, restrictions []FieldRestriction) *models.Entity {
	if entity == nil {
		return nil
	}

	masked := *entity
	masked.Fields = make(map[string]any, len(entity.Fields))
	for k, v := range entity.Fields {
		masked.Fields[k] = v
	}
	masked.Provenance = make(map[string][]models.ProvenanceEntry, len(entity.Provenance))
	for k, v := range entity.Provenance {
		masked.Provenance[k] = v
	}

	for _, r := range restrictions {
		if _, ok := masked.Fields[r.Field]; !ok {
			continue
		}
		if roleListed(actor.Role, r.ReadRoles) {
			continue
		}
		masked.Fields[r.Field] = nil
		delete(masked.Provenance, r.Field)
	}
	return &masked
}

// RestrictionsFromMap builds a FieldRestriction list from the flat
// "field: [roles]" form used in configuration. The same roles gate both
// read and write. Output is sorted by field name.
func RestrictionsFromMap(fields map[string][]string) []FieldRestriction {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	out := make([]FieldRestriction, 0, len(names))
	for _, f := range names {
		roles := make([]Role, 0, len(fields[f]))
		for _, r := range fields[f] {
			roles = append(roles, Role(r))
		}
		out = append(out, FieldRestriction{Field: f, ReadRoles: roles, WriteRoles: roles})
	}
	return out
}

// CanWriteField is the symmetric write-side check for a restricted field.
// Unrestricted fields are writable by anyone holding objects:write.
func CanWriteField(actor Actor, field string, restrictions []FieldRestriction) bool {
	if !Can(actor.Role, CapabilityObjectWrite) {
		return false
	}
	for _, r := range restrictions {
		if r.Field == field {
			return roleListed(actor.Role, r.WriteRoles)
		}
	}
	return true
}
