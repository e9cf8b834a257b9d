package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// OrgID is the tenant isolation boundary. Upstream systems hand us org
// identifiers in mixed shapes (integers from legacy modules, UUID strings from
// newer ones), so OrgID is always the normalized string form and comparisons
// must go through NormalizeOrgID.
type OrgID string

// NormalizeOrgID converts any supported identifier shape into comparable form.
// Integers render in decimal; UUID-shaped strings normalize to lowercase
// canonical UUID text; other strings are trimmed and kept as-is.
func NormalizeOrgID(v any) OrgID {
	switch t := v.(type) {
	case OrgID:
		return normalizeString(string(t))
	case string:
		return normalizeString(t)
	case int:
		return OrgID(strconv.Itoa(t))
	case int64:
		return OrgID(strconv.FormatInt(t, 10))
	case uint64:
		return OrgID(strconv.FormatUint(t, 10))
	case float64:
		// JSON numbers decode as float64; org ids are integral.
		return OrgID(strconv.FormatInt(int64(t), 10))
	case json.Number:
		return normalizeString(t.String())
	case uuid.UUID:
		return OrgID(t.String())
	case fmt.Stringer:
		return normalizeString(t.String())
	default:
		return normalizeString(fmt.Sprintf("%v", v))
	}
}

func normalizeString(s string) OrgID {
	s = strings.TrimSpace(s)
	// Only the canonical 8-4-4-4-12 layout is treated as UUID-shaped; shorter
	// opaque ids pass through untouched.
	if len(s) == 36 {
		if u, err := uuid.Parse(s); err == nil {
			return OrgID(u.String())
		}
	}
	return OrgID(s)
}

// Actor is the identity performing an operation. It is supplied by the
// authentication layer and read-only inside the core.
type Actor struct {
	ID    string `json:"id"`
	OrgID OrgID  `json:"org_id"`
	Role  string `json:"role"`
	Email string `json:"email"`
}
