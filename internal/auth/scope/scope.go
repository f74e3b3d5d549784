// Package scope defines the permission scopes carried by API keys.
// Scopes mirror the casbin object/action pairs used for user sessions
// so one authorization vocabulary covers both credential types.
package scope

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
)

var objects = []string{
	authorization.ObjectOrganization,
	authorization.ObjectMember,
	authorization.ObjectAPIKey,
	authorization.ObjectAuditLog,
	authorization.ObjectDocument,
	authorization.ObjectJournal,
	authorization.ObjectInvoice,
	authorization.ObjectAccount,
	authorization.ObjectLead,
	authorization.ObjectQuote,
	authorization.ObjectScreening,
	authorization.ObjectHSCode,
	authorization.ObjectDEB,
	authorization.ObjectDashboard,
}

var actions = []string{
	authorization.ActionRead,
	authorization.ActionWrite,
	authorization.ActionDelete,
	authorization.ActionAdmin,
}

var known = buildKnown()

func buildKnown() map[string]struct{} {
	out := make(map[string]struct{}, len(objects)*len(actions))
	for _, obj := range objects {
		for _, act := range actions {
			out[obj+":"+act] = struct{}{}
		}
	}
	return out
}

// FromAuthz converts a casbin object/action pair to its scope form.
func FromAuthz(object, action string) string {
	return object + ":" + action
}

// Has reports whether scopes grants the required scope. A "<object>:admin"
// scope implies every action on that object.
func Has(scopes []string, required string) bool {
	object, _, ok := strings.Cut(required, ":")
	if !ok {
		return false
	}
	adminScope := object + ":" + authorization.ActionAdmin
	for _, s := range scopes {
		if s == required || s == adminScope {
			return true
		}
	}
	return false
}

// Normalize lowercases, trims and deduplicates the requested scopes,
// preserving a stable order for storage and display.
func Normalize(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate rejects any scope outside the known object:action grid.
func Validate(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	for _, s := range scopes {
		if _, ok := known[s]; !ok {
			return fmt.Errorf("unknown scope %q", s)
		}
	}
	return nil
}

// All returns every valid scope, sorted.
func All() []string {
	out := make([]string, 0, len(known))
	for s := range known {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
