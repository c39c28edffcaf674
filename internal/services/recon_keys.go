package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"assetplane/backend/pkg/models"
)

// keyTiers is the fixed two-tier match key set for one object type:
// high carries near-unique identifiers, fallback carries softer
// attributes.
type keyTiers struct {
	high     []string
	fallback []string
}

var matchKeys = map[models.ObjectType]keyTiers{
	models.ObjectTypeDevice: {
		high:     []string{"serial_number", "asset_tag", "udid", "imei"},
		fallback: []string{"hostname", "name", "model", "region"},
	},
	models.ObjectTypePerson: {
		high:     []string{"worker_id", "email"},
		fallback: []string{"name", "department", "region"},
	},
	models.ObjectTypeAccount: {
		high:     []string{"provider", "username", "external_id"},
		fallback: []string{"email", "display_name"},
	},
	models.ObjectTypeApplication: {
		high:     []string{"app_id", "bundle_id"},
		fallback: []string{"name", "vendor"},
	},
}

var defaultTiers = keyTiers{high: []string{"id"}, fallback: []string{"name"}}

func tiersFor(objectType models.ObjectType) keyTiers {
	if t, ok := matchKeys[objectType]; ok {
		return t
	}
	return defaultTiers
}

// normalizeValue coerces a JSON-shaped value to a trimmed, lower-cased
// string for comparison. Missing and nil values normalize to "".
func normalizeValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case bool:
		s = strconv.FormatBool(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = normalizeValue(item)
		}
		s = strings.Join(parts, ",")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// tierScore computes the normalized overlap ratio for one key tier:
// |matching keys on both sides| / max(populated signal keys, populated
// entity keys), 0 when either side has no populated key in the tier.
func tierScore(tier []string, snapshot, fields map[string]any) (float64, []string) {
	var signalKeys, entityKeys int
	var matched []string
	for _, key := range tier {
		sv := normalizeValue(snapshot[key])
		ev := normalizeValue(fields[key])
		if sv != "" {
			signalKeys++
		}
		if ev != "" {
			entityKeys++
		}
		if sv != "" && sv == ev {
			matched = append(matched, key)
		}
	}
	denom := signalKeys
	if entityKeys > denom {
		denom = entityKeys
	}
	if signalKeys == 0 || entityKeys == 0 {
		return 0, nil
	}
	return float64(len(matched)) / float64(denom), matched
}
