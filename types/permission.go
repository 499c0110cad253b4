package types

import "fmt"

// GrantablePermission is a permission one account hands to another over
// its own resources.
type GrantablePermission uint8

const (
	CanAddMySignatory GrantablePermission = iota + 1
	CanRemoveMySignatory
	CanSetMyQuorum
	CanSetMyAccountDetail
	CanTransferMyAssets
)

var grantableNames = map[GrantablePermission]string{
	CanAddMySignatory:     "can_add_my_signatory",
	CanRemoveMySignatory:  "can_remove_my_signatory",
	CanSetMyQuorum:        "can_set_my_quorum",
	CanSetMyAccountDetail: "can_set_my_account_detail",
	CanTransferMyAssets:   "can_transfer_my_assets",
}

func (p GrantablePermission) String() string {
	if name, ok := grantableNames[p]; ok {
		return name
	}
	return fmt.Sprintf("grantable(%d)", uint8(p))
}

// Valid reports whether p is a known grantable permission.
func (p GrantablePermission) Valid() bool {
	_, ok := grantableNames[p]
	return ok
}

// RolePermission is a permission attached to a role.
type RolePermission uint8

const (
	CanCreateDomain RolePermission = iota + 1
	CanCreateAsset
	CanCreateAccount
	CanCreateRole
	CanAppendRole
	CanDetachRole
	CanAddAssetQty
	CanSubtractAssetQty
	CanTransfer
	CanReceive
	CanSetDetail
	CanGetMyAccount
	CanGetAllAccounts
	CanGetMySignatories
	CanGetMyAccAst
	CanGetAllAccAst
	CanGetMyAccDetail
	CanGetAllAccDetail
	CanGetMyAccTxs
	CanGetAllAccTxs
	CanGetMyAccAstTxs
	CanGetAllAccAstTxs
	CanGetMyTxs
	CanReadAssets
	CanGetRoles
	CanAddSignatory
	CanRemoveSignatory
	CanSetQuorum
	CanGrantCanAddMySignatory
	CanGrantCanRemoveMySignatory
	CanGrantCanSetMyQuorum
	CanGrantCanSetMyAccountDetail
	CanGrantCanTransferMyAssets
)

var roleNames = map[RolePermission]string{
	CanCreateDomain:               "can_create_domain",
	CanCreateAsset:                "can_create_asset",
	CanCreateAccount:              "can_create_account",
	CanCreateRole:                 "can_create_role",
	CanAppendRole:                 "can_append_role",
	CanDetachRole:                 "can_detach_role",
	CanAddAssetQty:                "can_add_asset_qty",
	CanSubtractAssetQty:           "can_subtract_asset_qty",
	CanTransfer:                   "can_transfer",
	CanReceive:                    "can_receive",
	CanSetDetail:                  "can_set_detail",
	CanGetMyAccount:               "can_get_my_account",
	CanGetAllAccounts:             "can_get_all_accounts",
	CanGetMySignatories:           "can_get_my_signatories",
	CanGetMyAccAst:                "can_get_my_acc_ast",
	CanGetAllAccAst:               "can_get_all_acc_ast",
	CanGetMyAccDetail:             "can_get_my_acc_detail",
	CanGetAllAccDetail:            "can_get_all_acc_detail",
	CanGetMyAccTxs:                "can_get_my_acc_txs",
	CanGetAllAccTxs:               "can_get_all_acc_txs",
	CanGetMyAccAstTxs:             "can_get_my_acc_ast_txs",
	CanGetAllAccAstTxs:            "can_get_all_acc_ast_txs",
	CanGetMyTxs:                   "can_get_my_txs",
	CanReadAssets:                 "can_read_assets",
	CanGetRoles:                   "can_get_roles",
	CanAddSignatory:               "can_add_signatory",
	CanRemoveSignatory:            "can_remove_signatory",
	CanSetQuorum:                  "can_set_quorum",
	CanGrantCanAddMySignatory:     "can_grant_can_add_my_signatory",
	CanGrantCanRemoveMySignatory:  "can_grant_can_remove_my_signatory",
	CanGrantCanSetMyQuorum:        "can_grant_can_set_my_quorum",
	CanGrantCanSetMyAccountDetail: "can_grant_can_set_my_account_detail",
	CanGrantCanTransferMyAssets:   "can_grant_can_transfer_my_assets",
}

func (p RolePermission) String() string {
	if name, ok := roleNames[p]; ok {
		return name
	}
	return fmt.Sprintf("role_permission(%d)", uint8(p))
}

// Valid reports whether p is a known role permission.
func (p RolePermission) Valid() bool {
	_, ok := roleNames[p]
	return ok
}

// GrantRequirement returns the role permission an account needs in
// order to grant p to someone else.
func (p GrantablePermission) GrantRequirement() RolePermission {
	switch p {
	case CanAddMySignatory:
		return CanGrantCanAddMySignatory
	case CanRemoveMySignatory:
		return CanGrantCanRemoveMySignatory
	case CanSetMyQuorum:
		return CanGrantCanSetMyQuorum
	case CanSetMyAccountDetail:
		return CanGrantCanSetMyAccountDetail
	case CanTransferMyAssets:
		return CanGrantCanTransferMyAssets
	default:
		return 0
	}
}

// AllRolePermissions lists every known role permission in declaration
// order.
func AllRolePermissions() []RolePermission {
	out := make([]RolePermission, 0, len(roleNames))
	for p := CanCreateDomain; p <= CanGrantCanTransferMyAssets; p++ {
		out = append(out, p)
	}
	return out
}
