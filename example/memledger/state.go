package memledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/blockberries/ledger/types"
)

// account is the node-side record of an account.
type account struct {
	id          types.AccountID
	quorum      uint32
	signatories []types.PublicKey
	roles       []types.RoleID
	// details maps writer -> key -> value.
	details map[types.AccountID]map[string]string
	// balances are kept in minor units of each asset's precision.
	balances map[types.AssetID]sdkmath.Int
	// grants maps grantee -> permissions this account granted to it.
	grants map[types.AccountID]map[types.GrantablePermission]bool
}

func newAccount(id types.AccountID, key types.PublicKey, role types.RoleID) *account {
	return &account{
		id:          id,
		quorum:      1,
		signatories: []types.PublicKey{key},
		roles:       []types.RoleID{role},
		details:     make(map[types.AccountID]map[string]string),
		balances:    make(map[types.AssetID]sdkmath.Int),
		grants:      make(map[types.AccountID]map[types.GrantablePermission]bool),
	}
}

func (a *account) clone() *account {
	c := &account{
		id:          a.id,
		quorum:      a.quorum,
		signatories: append([]types.PublicKey(nil), a.signatories...),
		roles:       append([]types.RoleID(nil), a.roles...),
		details:     make(map[types.AccountID]map[string]string, len(a.details)),
		balances:    make(map[types.AssetID]sdkmath.Int, len(a.balances)),
		grants:      make(map[types.AccountID]map[types.GrantablePermission]bool, len(a.grants)),
	}
	for w, kv := range a.details {
		c.details[w] = make(map[string]string, len(kv))
		for k, v := range kv {
			c.details[w][k] = v
		}
	}
	for id, v := range a.balances {
		c.balances[id] = v
	}
	for g, perms := range a.grants {
		c.grants[g] = make(map[types.GrantablePermission]bool, len(perms))
		for p := range perms {
			c.grants[g][p] = true
		}
	}
	return c
}

func (a *account) hasSignatory(key types.PublicKey) bool {
	for _, k := range a.signatories {
		if k == key {
			return true
		}
	}
	return false
}

func (a *account) hasRole(r types.RoleID) bool {
	for _, have := range a.roles {
		if have == r {
			return true
		}
	}
	return false
}

func (a *account) granted(grantee types.AccountID, p types.GrantablePermission) bool {
	return a.grants[grantee][p]
}

// detailJSON renders details filtered by writer and key. Empty filters
// match everything. encoding/json sorts map keys, so output is stable.
func (a *account) detailJSON(writer types.AccountID, key string) string {
	out := make(map[types.AccountID]map[string]string)
	for w, kv := range a.details {
		if writer != "" && w != writer {
			continue
		}
		for k, v := range kv {
			if key != "" && k != key {
				continue
			}
			if out[w] == nil {
				out[w] = make(map[string]string)
			}
			out[w][k] = v
		}
	}
	data, _ := json.Marshal(out) // map[string]map[string]string always encodes
	return string(data)
}

// state is the whole world state of the node. Commands run against a
// clone and the clone replaces the current state only on success.
type state struct {
	domains  map[types.DomainID]types.RoleID
	roles    map[types.RoleID]map[types.RolePermission]bool
	assets   map[types.AssetID]types.Asset
	accounts map[types.AccountID]*account
}

func newState() *state {
	return &state{
		domains:  make(map[types.DomainID]types.RoleID),
		roles:    make(map[types.RoleID]map[types.RolePermission]bool),
		assets:   make(map[types.AssetID]types.Asset),
		accounts: make(map[types.AccountID]*account),
	}
}

func (s *state) clone() *state {
	c := &state{
		domains:  make(map[types.DomainID]types.RoleID, len(s.domains)),
		roles:    make(map[types.RoleID]map[types.RolePermission]bool, len(s.roles)),
		assets:   make(map[types.AssetID]types.Asset, len(s.assets)),
		accounts: make(map[types.AccountID]*account, len(s.accounts)),
	}
	for d, r := range s.domains {
		c.domains[d] = r
	}
	for r, perms := range s.roles {
		c.roles[r] = make(map[types.RolePermission]bool, len(perms))
		for p := range perms {
			c.roles[r][p] = true
		}
	}
	for id, a := range s.assets {
		c.assets[id] = a
	}
	for id, a := range s.accounts {
		c.accounts[id] = a.clone()
	}
	return c
}

func (s *state) can(id types.AccountID, p types.RolePermission) bool {
	a, ok := s.accounts[id]
	if !ok {
		return false
	}
	for _, r := range a.roles {
		if s.roles[r][p] {
			return true
		}
	}
	return false
}

func (s *state) permissionsOf(id types.AccountID) map[types.RolePermission]bool {
	out := make(map[types.RolePermission]bool)
	if a, ok := s.accounts[id]; ok {
		for _, r := range a.roles {
			for p := range s.roles[r] {
				out[p] = true
			}
		}
	}
	return out
}

func (s *state) sortedRoles() []types.RoleID {
	out := make([]types.RoleID, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedPermissions(perms map[types.RolePermission]bool) []types.RolePermission {
	out := make([]types.RolePermission, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// parseAmount converts a decimal amount into minor units at precision.
// Signs, exponents and more fractional digits than precision are refused.
func parseAmount(a types.Amount, precision uint32) (sdkmath.Int, error) {
	s := string(a)
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return sdkmath.Int{}, fmt.Errorf("malformed amount %q", s)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return sdkmath.Int{}, fmt.Errorf("malformed amount %q", s)
	}
	if uint32(len(frac)) > precision {
		return sdkmath.Int{}, fmt.Errorf("amount %q has more than %d decimal places", s, precision)
	}
	frac += strings.Repeat("0", int(precision)-len(frac))
	v, ok := sdkmath.NewIntFromString(whole + frac)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("malformed amount %q", s)
	}
	return v, nil
}

// formatAmount renders minor units with exactly precision decimals.
func formatAmount(v sdkmath.Int, precision uint32) types.Amount {
	s := v.String()
	p := int(precision)
	if p == 0 {
		return types.Amount(s)
	}
	if len(s) <= p {
		s = strings.Repeat("0", p-len(s)+1) + s
	}
	return types.Amount(s[:len(s)-p] + "." + s[len(s)-p:])
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
