// Package lead turns raw AI contact records into the canonical lead list
// and reconciles confidence-scored contact values.
package lead

import (
	"sort"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

// Normalize filters and orders raw contacts.
//
// A record is kept only when it has a usable name and at least one usable
// role, email or phone. Sentinel values become empty strings. Primary
// targets come first; order inside each partition is the source order.
// Duplicates pass through unchanged.
//
// When a record carries no isPrimaryTarget flag at all, tax decides from
// the role.
func Normalize(raw []model.RawContact, tax Taxonomy) []model.Lead {
	leads := make([]model.Lead, 0, len(raw))
	for _, rc := range raw {
		name := clean(model.Str(rc.Name))
		if name == "" {
			continue
		}
		l := model.Lead{
			Name:  name,
			Role:  clean(model.Str(rc.Role)),
			Email: clean(model.Str(rc.Email)),
			Phone: clean(model.Str(rc.Phone)),
		}
		if l.Role == "" && l.Email == "" && l.Phone == "" {
			continue
		}
		// A missing flag is decided by the taxonomy; an explicit value wins.
		if rc.IsPrimaryTarget != nil {
			l.IsPrimaryTarget = bool(*rc.IsPrimaryTarget)
		} else {
			l.IsPrimaryTarget = tax.Matches(l.Role)
		}
		leads = append(leads, l)
	}

	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].IsPrimaryTarget && !leads[j].IsPrimaryTarget
	})
	return leads
}

// FromLeads converts leads back to raw records with the primary flag set
// explicitly.
func FromLeads(leads []model.Lead) []model.RawContact {
	out := make([]model.RawContact, len(leads))
	for i, l := range leads {
		name, role, email, phone := l.Name, l.Role, l.Email, l.Phone
		primary := model.LooseBool(l.IsPrimaryTarget)
		out[i] = model.RawContact{
			Name:            &name,
			Role:            &role,
			Email:           &email,
			Phone:           &phone,
			IsPrimaryTarget: &primary,
		}
	}
	return out
}

func clean(s string) string {
	if model.IsNotFound(s) {
		return ""
	}
	return strings.TrimSpace(s)
}
