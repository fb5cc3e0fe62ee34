package dto

import (
	"encoding/json"
	"fmt"

	"github.com/qs3c/nextaction_server/internal/model"
)

const unlimitedLiteral = "UNLIMITED"

// Remaining is the number of admissions left today. Unlimited plans encode
// as the string "UNLIMITED", everything else as a number.
type Remaining struct {
	Unlimited bool
	Count     int
}

func UnlimitedRemaining() Remaining { return Remaining{Unlimited: true} }

func LimitedRemaining(n int) Remaining {
	if n < 0 {
		n = 0
	}
	return Remaining{Count: n}
}

// Exhausted reports whether no admissions are left.
func (r Remaining) Exhausted() bool {
	return !r.Unlimited && r.Count <= 0
}

func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return json.Marshal(unlimitedLiteral)
	}
	return json.Marshal(r.Count)
}

func (r *Remaining) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != unlimitedLiteral {
			return fmt.Errorf("invalid remaining value %q", s)
		}
		*r = UnlimitedRemaining()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = LimitedRemaining(n)
	return nil
}

// EntitlementStatus is the response of GET /billing/status.
type EntitlementStatus struct {
	Plan       model.Plan `json:"plan"`
	UsageCount int        `json:"usageCount"`
	Remaining  Remaining  `json:"remaining"`
	Limit      int        `json:"limit"`
}

// SessionURLResponse carries a hosted billing page URL.
type SessionURLResponse struct {
	URL string `json:"url"`
}
