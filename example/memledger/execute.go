package memledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/blockberries/ledger/types"
)

// Command error codes reported in STATEFUL_VALIDATION_FAILED events.
const (
	CodeInternal            uint32 = 1
	CodeNoPermission        uint32 = 2
	CodeNotFound            uint32 = 3
	CodeAlreadyExists       uint32 = 4
	CodeInvalidAmount       uint32 = 5
	CodeInsufficientBalance uint32 = 6
	CodeDetailMismatch      uint32 = 7
	CodeInvalidQuorum       uint32 = 8
)

// cmdError is a stateful validation failure of one command.
type cmdError struct {
	code   uint32
	reason string
}

func (e *cmdError) Error() string { return fmt.Sprintf("%s (code %d)", e.reason, e.code) }

func fail(code uint32, format string, args ...any) *cmdError {
	return &cmdError{code: code, reason: fmt.Sprintf(format, args...)}
}

func noPermission(creator types.AccountID, what string) *cmdError {
	return fail(CodeNoPermission, "%s has no permission to %s", creator, what)
}

// execute applies cmd on behalf of creator, mutating s.
func execute(s *state, creator types.AccountID, cmd types.Command) *cmdError {
	switch c := cmd.(type) {
	case types.CreateDomain:
		return createDomain(s, creator, c)
	case types.CreateAsset:
		return createAsset(s, creator, c)
	case types.AddAssetQuantity:
		return addAssetQuantity(s, creator, c)
	case types.SubtractAssetQuantity:
		return subtractAssetQuantity(s, creator, c)
	case types.CreateAccount:
		return createAccount(s, creator, c)
	case types.TransferAsset:
		return transferAsset(s, creator, c)
	case types.GrantPermission:
		return grantPermission(s, creator, c)
	case types.RevokePermission:
		return revokePermission(s, creator, c)
	case types.SetAccountDetail:
		return setAccountDetail(s, creator, c.AccountID, c.Key, c.Value)
	case types.CompareAndSetAccountDetail:
		return compareAndSetAccountDetail(s, creator, c)
	case types.AddSignatory:
		return addSignatory(s, creator, c)
	case types.RemoveSignatory:
		return removeSignatory(s, creator, c)
	case types.SetAccountQuorum:
		return setAccountQuorum(s, creator, c)
	case types.CreateRole:
		return createRole(s, creator, c)
	case types.AppendRole:
		return appendRole(s, creator, c)
	case types.DetachRole:
		return detachRole(s, creator, c)
	default:
		return fail(CodeInternal, "unsupported command %T", cmd)
	}
}

// ---------------------------------------------------------------------------
// Domains, assets, accounts
// ---------------------------------------------------------------------------

func createDomain(s *state, creator types.AccountID, c types.CreateDomain) *cmdError {
	if !s.can(creator, types.CanCreateDomain) {
		return noPermission(creator, "create domains")
	}
	if _, ok := s.domains[c.DomainID]; ok {
		return fail(CodeAlreadyExists, "domain %s already exists", c.DomainID)
	}
	if _, ok := s.roles[c.DefaultRole]; !ok {
		return fail(CodeNotFound, "role %s does not exist", c.DefaultRole)
	}
	s.domains[c.DomainID] = c.DefaultRole
	return nil
}

func createAsset(s *state, creator types.AccountID, c types.CreateAsset) *cmdError {
	if !s.can(creator, types.CanCreateAsset) {
		return noPermission(creator, "create assets")
	}
	if _, ok := s.domains[c.DomainID]; !ok {
		return fail(CodeNotFound, "domain %s does not exist", c.DomainID)
	}
	id := types.NewAssetID(c.AssetName, c.DomainID)
	if _, ok := s.assets[id]; ok {
		return fail(CodeAlreadyExists, "asset %s already exists", id)
	}
	s.assets[id] = types.Asset{AssetID: id, DomainID: c.DomainID, Precision: c.Precision}
	return nil
}

func createAccount(s *state, creator types.AccountID, c types.CreateAccount) *cmdError {
	if !s.can(creator, types.CanCreateAccount) {
		return noPermission(creator, "create accounts")
	}
	role, ok := s.domains[c.DomainID]
	if !ok {
		return fail(CodeNotFound, "domain %s does not exist", c.DomainID)
	}
	id := types.NewAccountID(c.AccountName, c.DomainID)
	if _, ok := s.accounts[id]; ok {
		return fail(CodeAlreadyExists, "account %s already exists", id)
	}
	s.accounts[id] = newAccount(id, c.PublicKey, role)
	return nil
}

// ---------------------------------------------------------------------------
// Balances
// ---------------------------------------------------------------------------

func (s *state) lookupAmount(id types.AssetID, amount types.Amount) (sdkmath.Int, *cmdError) {
	asset, ok := s.assets[id]
	if !ok {
		return sdkmath.Int{}, fail(CodeNotFound, "asset %s does not exist", id)
	}
	v, err := parseAmount(amount, asset.Precision)
	if err != nil {
		return sdkmath.Int{}, fail(CodeInvalidAmount, "%v", err)
	}
	if !v.IsPositive() {
		return sdkmath.Int{}, fail(CodeInvalidAmount, "amount must be positive")
	}
	return v, nil
}

func balance(a *account, id types.AssetID) sdkmath.Int {
	if v, ok := a.balances[id]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func addAssetQuantity(s *state, creator types.AccountID, c types.AddAssetQuantity) *cmdError {
	if !s.can(creator, types.CanAddAssetQty) {
		return noPermission(creator, "add asset quantity")
	}
	v, cerr := s.lookupAmount(c.AssetID, c.Amount)
	if cerr != nil {
		return cerr
	}
	a := s.accounts[creator]
	a.balances[c.AssetID] = balance(a, c.AssetID).Add(v)
	return nil
}

func subtractAssetQuantity(s *state, creator types.AccountID, c types.SubtractAssetQuantity) *cmdError {
	if !s.can(creator, types.CanSubtractAssetQty) {
		return noPermission(creator, "subtract asset quantity")
	}
	v, cerr := s.lookupAmount(c.AssetID, c.Amount)
	if cerr != nil {
		return cerr
	}
	a := s.accounts[creator]
	have := balance(a, c.AssetID)
	if have.LT(v) {
		return fail(CodeInsufficientBalance, "not enough balance")
	}
	a.balances[c.AssetID] = have.Sub(v)
	return nil
}

func transferAsset(s *state, creator types.AccountID, c types.TransferAsset) *cmdError {
	src, ok := s.accounts[c.SrcAccountID]
	if !ok {
		return fail(CodeNotFound, "source account %s does not exist", c.SrcAccountID)
	}
	dest, ok := s.accounts[c.DestAccountID]
	if !ok {
		return fail(CodeNotFound, "destination account %s does not exist", c.DestAccountID)
	}
	if c.SrcAccountID == creator {
		if !s.can(creator, types.CanTransfer) {
			return noPermission(creator, "transfer assets")
		}
	} else if !src.granted(creator, types.CanTransferMyAssets) {
		return noPermission(creator, "transfer assets of "+string(c.SrcAccountID))
	}
	if !s.can(c.DestAccountID, types.CanReceive) {
		return noPermission(c.DestAccountID, "receive assets")
	}
	if c.SrcAccountID == c.DestAccountID {
		return fail(CodeInvalidAmount, "source and destination are the same account")
	}
	v, cerr := s.lookupAmount(c.AssetID, c.Amount)
	if cerr != nil {
		return cerr
	}
	have := balance(src, c.AssetID)
	if have.LT(v) {
		return fail(CodeInsufficientBalance, "not enough balance")
	}
	src.balances[c.AssetID] = have.Sub(v)
	dest.balances[c.AssetID] = balance(dest, c.AssetID).Add(v)
	return nil
}

// ---------------------------------------------------------------------------
// Grants and details
// ---------------------------------------------------------------------------

func grantPermission(s *state, creator types.AccountID, c types.GrantPermission) *cmdError {
	if !c.Permission.Valid() {
		return fail(CodeNotFound, "unknown grantable permission %d", c.Permission)
	}
	if !s.can(creator, c.Permission.GrantRequirement()) {
		return noPermission(creator, "grant "+c.Permission.String())
	}
	if _, ok := s.accounts[c.AccountID]; !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	a := s.accounts[creator]
	if a.granted(c.AccountID, c.Permission) {
		return fail(CodeAlreadyExists, "%s already granted to %s", c.Permission, c.AccountID)
	}
	if a.grants[c.AccountID] == nil {
		a.grants[c.AccountID] = make(map[types.GrantablePermission]bool)
	}
	a.grants[c.AccountID][c.Permission] = true
	return nil
}

func revokePermission(s *state, creator types.AccountID, c types.RevokePermission) *cmdError {
	a := s.accounts[creator]
	if !a.granted(c.AccountID, c.Permission) {
		return fail(CodeNotFound, "%s was never granted to %s", c.Permission, c.AccountID)
	}
	delete(a.grants[c.AccountID], c.Permission)
	if len(a.grants[c.AccountID]) == 0 {
		delete(a.grants, c.AccountID)
	}
	return nil
}

// mayWriteDetail: an account may always write its own details; writing
// someone else's needs can_set_detail or their can_set_my_account_detail
// grant.
func mayWriteDetail(s *state, creator types.AccountID, target *account) bool {
	if target.id == creator {
		return true
	}
	return s.can(creator, types.CanSetDetail) || target.granted(creator, types.CanSetMyAccountDetail)
}

func setAccountDetail(s *state, creator, target types.AccountID, key, value string) *cmdError {
	a, ok := s.accounts[target]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", target)
	}
	if !mayWriteDetail(s, creator, a) {
		return noPermission(creator, "set details of "+string(target))
	}
	if a.details[creator] == nil {
		a.details[creator] = make(map[string]string)
	}
	a.details[creator][key] = value
	return nil
}

func compareAndSetAccountDetail(s *state, creator types.AccountID, c types.CompareAndSetAccountDetail) *cmdError {
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	if !mayWriteDetail(s, creator, a) {
		return noPermission(creator, "set details of "+string(c.AccountID))
	}
	cur, exists := a.details[creator][c.Key]
	switch {
	case c.OldValue == nil && exists:
		return fail(CodeDetailMismatch, "detail %q already set", c.Key)
	case c.OldValue != nil && (!exists || cur != *c.OldValue):
		return fail(CodeDetailMismatch, "detail %q does not hold the expected value", c.Key)
	}
	return setAccountDetail(s, creator, c.AccountID, c.Key, c.Value)
}

// ---------------------------------------------------------------------------
// Signatories and quorum
// ---------------------------------------------------------------------------

// mayManage checks the role permission for acting on one's own account
// or the grant for acting on someone else's.
func mayManage(s *state, creator types.AccountID, target *account, own types.RolePermission, grant types.GrantablePermission) bool {
	if target.id == creator {
		return s.can(creator, own)
	}
	return target.granted(creator, grant)
}

func addSignatory(s *state, creator types.AccountID, c types.AddSignatory) *cmdError {
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	if !mayManage(s, creator, a, types.CanAddSignatory, types.CanAddMySignatory) {
		return noPermission(creator, "add signatories to "+string(c.AccountID))
	}
	if a.hasSignatory(c.PublicKey) {
		return fail(CodeAlreadyExists, "signatory %s already present", c.PublicKey)
	}
	a.signatories = append(a.signatories, c.PublicKey)
	return nil
}

func removeSignatory(s *state, creator types.AccountID, c types.RemoveSignatory) *cmdError {
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	if !mayManage(s, creator, a, types.CanRemoveSignatory, types.CanRemoveMySignatory) {
		return noPermission(creator, "remove signatories of "+string(c.AccountID))
	}
	idx := -1
	for i, k := range a.signatories {
		if k == c.PublicKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fail(CodeNotFound, "signatory %s not present", c.PublicKey)
	}
	if uint32(len(a.signatories)-1) < a.quorum {
		return fail(CodeInvalidQuorum, "removing %s would leave fewer signatories than quorum %d", c.PublicKey, a.quorum)
	}
	a.signatories = append(a.signatories[:idx], a.signatories[idx+1:]...)
	return nil
}

func setAccountQuorum(s *state, creator types.AccountID, c types.SetAccountQuorum) *cmdError {
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	if !mayManage(s, creator, a, types.CanSetQuorum, types.CanSetMyQuorum) {
		return noPermission(creator, "set quorum of "+string(c.AccountID))
	}
	if c.Quorum == 0 || c.Quorum > uint32(len(a.signatories)) {
		return fail(CodeInvalidQuorum, "quorum %d outside 1..%d", c.Quorum, len(a.signatories))
	}
	a.quorum = c.Quorum
	return nil
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func createRole(s *state, creator types.AccountID, c types.CreateRole) *cmdError {
	if !s.can(creator, types.CanCreateRole) {
		return noPermission(creator, "create roles")
	}
	if _, ok := s.roles[c.RoleName]; ok {
		return fail(CodeAlreadyExists, "role %s already exists", c.RoleName)
	}
	have := s.permissionsOf(creator)
	perms := make(map[types.RolePermission]bool, len(c.Permissions))
	for _, p := range c.Permissions {
		if !p.Valid() {
			return fail(CodeNotFound, "unknown role permission %d", p)
		}
		if !have[p] {
			return noPermission(creator, "hand out "+p.String())
		}
		perms[p] = true
	}
	s.roles[c.RoleName] = perms
	return nil
}

func appendRole(s *state, creator types.AccountID, c types.AppendRole) *cmdError {
	if !s.can(creator, types.CanAppendRole) {
		return noPermission(creator, "append roles")
	}
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	perms, ok := s.roles[c.RoleName]
	if !ok {
		return fail(CodeNotFound, "role %s does not exist", c.RoleName)
	}
	have := s.permissionsOf(creator)
	for p := range perms {
		if !have[p] {
			return noPermission(creator, "hand out "+p.String())
		}
	}
	if a.hasRole(c.RoleName) {
		return fail(CodeAlreadyExists, "%s already has role %s", c.AccountID, c.RoleName)
	}
	a.roles = append(a.roles, c.RoleName)
	return nil
}

func detachRole(s *state, creator types.AccountID, c types.DetachRole) *cmdError {
	if !s.can(creator, types.CanDetachRole) {
		return noPermission(creator, "detach roles")
	}
	a, ok := s.accounts[c.AccountID]
	if !ok {
		return fail(CodeNotFound, "account %s does not exist", c.AccountID)
	}
	for i, r := range a.roles {
		if r == c.RoleName {
			a.roles = append(a.roles[:i], a.roles[i+1:]...)
			return nil
		}
	}
	return fail(CodeNotFound, "%s does not have role %s", c.AccountID, c.RoleName)
}
