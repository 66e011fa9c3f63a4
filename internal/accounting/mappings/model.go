package mappings

import (
	"fmt"
	"strings"
	"time"
)

// Module groups the ledger's own mapping keys in account_mappings.
const Module = "LEDGER"

// Role names an account the auto-posting rules need.
type Role string

const (
	RoleReceivable   Role = "receivable"
	RoleSalesRevenue Role = "sales_revenue"
	RoleInventory    Role = "inventory"
	RoleCOGS         Role = "cogs"
	RolePayable      Role = "payable"
	RoleCash         Role = "cash"
	RoleSuspense     Role = "suspense"
)

// DefaultCodes are the chart codes used when no override exists.
var DefaultCodes = map[Role]string{
	RoleReceivable:   "1200",
	RoleSalesRevenue: "4000",
	RoleInventory:    "1300",
	RoleCOGS:         "5000",
	RolePayable:      "2100",
	RoleCash:         "1000",
	RoleSuspense:     "9999",
}

// Roles lists every role in a stable order.
var Roles = []Role{RoleReceivable, RoleSalesRevenue, RoleInventory, RoleCOGS, RolePayable, RoleCash, RoleSuspense}

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MissingPolicy decides what auto-posting does when an account is absent.
type MissingPolicy string

const (
	// PolicySkip logs and drops the posting.
	PolicySkip MissingPolicy = "skip"
	// PolicyError fails the event so it can be retried.
	PolicyError MissingPolicy = "error"
	// PolicySuspense books the amount to the suspense account.
	PolicySuspense MissingPolicy = "suspense"
)

// ParsePolicy accepts skip, error or suspense; blank means skip.
func ParsePolicy(raw string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyError, PolicySuspense:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing account policy %q", raw)
	}
}
