package types

import "fmt"

// CommandKind tags the variant held by a CommandWire.
type CommandKind uint8

const (
	KindCreateDomain CommandKind = iota + 1
	KindCreateAsset
	KindAddAssetQuantity
	KindSubtractAssetQuantity
	KindCreateAccount
	KindTransferAsset
	KindGrantPermission
	KindRevokePermission
	KindSetAccountDetail
	KindCompareAndSetAccountDetail
	KindAddSignatory
	KindRemoveSignatory
	KindSetAccountQuorum
	KindCreateRole
	KindAppendRole
	KindDetachRole
)

// CommandWire is the tagged-union wire form of a Command. Kind is always
// set; exactly one pointer field matching Kind is non-nil.
type CommandWire struct {
	Kind                       CommandKind                 `cramberry:"1"`
	CreateDomain               *CreateDomain               `cramberry:"2"`
	CreateAsset                *CreateAsset                `cramberry:"3"`
	AddAssetQuantity           *AddAssetQuantity           `cramberry:"4"`
	SubtractAssetQuantity      *SubtractAssetQuantity      `cramberry:"5"`
	CreateAccount              *CreateAccount              `cramberry:"6"`
	TransferAsset              *TransferAsset              `cramberry:"7"`
	GrantPermission            *GrantPermission            `cramberry:"8"`
	RevokePermission           *RevokePermission           `cramberry:"9"`
	SetAccountDetail           *SetAccountDetail           `cramberry:"10"`
	CompareAndSetAccountDetail *CompareAndSetAccountDetail `cramberry:"11"`
	AddSignatory               *AddSignatory               `cramberry:"12"`
	RemoveSignatory            *RemoveSignatory            `cramberry:"13"`
	SetAccountQuorum           *SetAccountQuorum           `cramberry:"14"`
	CreateRole                 *CreateRole                 `cramberry:"15"`
	AppendRole                 *AppendRole                 `cramberry:"16"`
	DetachRole                 *DetachRole                 `cramberry:"17"`
}

// WrapCommand converts a Command into its wire form. It panics on a nil
// or unknown command: both are programming errors that must never reach
// the encoder.
func WrapCommand(c Command) CommandWire {
	switch c := c.(type) {
	case CreateDomain:
		return CommandWire{Kind: KindCreateDomain, CreateDomain: &c}
	case CreateAsset:
		return CommandWire{Kind: KindCreateAsset, CreateAsset: &c}
	case AddAssetQuantity:
		return CommandWire{Kind: KindAddAssetQuantity, AddAssetQuantity: &c}
	case SubtractAssetQuantity:
		return CommandWire{Kind: KindSubtractAssetQuantity, SubtractAssetQuantity: &c}
	case CreateAccount:
		return CommandWire{Kind: KindCreateAccount, CreateAccount: &c}
	case TransferAsset:
		return CommandWire{Kind: KindTransferAsset, TransferAsset: &c}
	case GrantPermission:
		return CommandWire{Kind: KindGrantPermission, GrantPermission: &c}
	case RevokePermission:
		return CommandWire{Kind: KindRevokePermission, RevokePermission: &c}
	case SetAccountDetail:
		return CommandWire{Kind: KindSetAccountDetail, SetAccountDetail: &c}
	case CompareAndSetAccountDetail:
		return CommandWire{Kind: KindCompareAndSetAccountDetail, CompareAndSetAccountDetail: &c}
	case AddSignatory:
		return CommandWire{Kind: KindAddSignatory, AddSignatory: &c}
	case RemoveSignatory:
		return CommandWire{Kind: KindRemoveSignatory, RemoveSignatory: &c}
	case SetAccountQuorum:
		return CommandWire{Kind: KindSetAccountQuorum, SetAccountQuorum: &c}
	case CreateRole:
		return CommandWire{Kind: KindCreateRole, CreateRole: &c}
	case AppendRole:
		return CommandWire{Kind: KindAppendRole, AppendRole: &c}
	case DetachRole:
		return CommandWire{Kind: KindDetachRole, DetachRole: &c}
	default:
		panic(fmt.Sprintf("types: cannot encode command %T", c))
	}
}

// Command unwraps the variant selected by Kind. A missing body decodes
// as the variant's zero value.
func (w CommandWire) Command() (Command, error) {
	var c Command
	switch w.Kind {
	case KindCreateDomain:
		c = deref(w.CreateDomain)
	case KindCreateAsset:
		c = deref(w.CreateAsset)
	case KindAddAssetQuantity:
		c = deref(w.AddAssetQuantity)
	case KindSubtractAssetQuantity:
		c = deref(w.SubtractAssetQuantity)
	case KindCreateAccount:
		c = deref(w.CreateAccount)
	case KindTransferAsset:
		c = deref(w.TransferAsset)
	case KindGrantPermission:
		c = deref(w.GrantPermission)
	case KindRevokePermission:
		c = deref(w.RevokePermission)
	case KindSetAccountDetail:
		c = deref(w.SetAccountDetail)
	case KindCompareAndSetAccountDetail:
		c = deref(w.CompareAndSetAccountDetail)
	case KindAddSignatory:
		c = deref(w.AddSignatory)
	case KindRemoveSignatory:
		c = deref(w.RemoveSignatory)
	case KindSetAccountQuorum:
		c = deref(w.SetAccountQuorum)
	case KindCreateRole:
		c = deref(w.CreateRole)
	case KindAppendRole:
		c = deref(w.AppendRole)
	case KindDetachRole:
		c = deref(w.DetachRole)
	default:
		return nil, fmt.Errorf("types: unknown command kind %d", w.Kind)
	}
	return c, nil
}

// QueryKindTag tags the variant held by a QueryWire.
type QueryKindTag uint8

const (
	KindGetAccount QueryKindTag = iota + 1
	KindGetSignatories
	KindGetAssetInfo
	KindGetAccountAssets
	KindGetAccountAssetTransactions
	KindGetAccountTransactions
	KindGetTransactions
	KindGetAccountDetail
	KindGetRoles
	KindGetRolePermissions
)

// QueryWire is the tagged-union wire form of a QueryKind. Variants
// without fields (GetRoles) are identified by Kind alone.
type QueryWire struct {
	Kind                        QueryKindTag                 `cramberry:"1"`
	GetAccount                  *GetAccount                  `cramberry:"2"`
	GetSignatories              *GetSignatories              `cramberry:"3"`
	GetAssetInfo                *GetAssetInfo                `cramberry:"4"`
	GetAccountAssets            *GetAccountAssets            `cramberry:"5"`
	GetAccountAssetTransactions *GetAccountAssetTransactions `cramberry:"6"`
	GetAccountTransactions      *GetAccountTransactions      `cramberry:"7"`
	GetTransactions             *GetTransactions             `cramberry:"8"`
	GetAccountDetail            *GetAccountDetail            `cramberry:"9"`
	GetRolePermissions          *GetRolePermissions          `cramberry:"10"`
}

// WrapQuery converts a QueryKind into its wire form. It panics on a nil
// or unknown query.
func WrapQuery(q QueryKind) QueryWire {
	switch q := q.(type) {
	case GetAccount:
		return QueryWire{Kind: KindGetAccount, GetAccount: &q}
	case GetSignatories:
		return QueryWire{Kind: KindGetSignatories, GetSignatories: &q}
	case GetAssetInfo:
		return QueryWire{Kind: KindGetAssetInfo, GetAssetInfo: &q}
	case GetAccountAssets:
		return QueryWire{Kind: KindGetAccountAssets, GetAccountAssets: &q}
	case GetAccountAssetTransactions:
		return QueryWire{Kind: KindGetAccountAssetTransactions, GetAccountAssetTransactions: &q}
	case GetAccountTransactions:
		return QueryWire{Kind: KindGetAccountTransactions, GetAccountTransactions: &q}
	case GetTransactions:
		return QueryWire{Kind: KindGetTransactions, GetTransactions: &q}
	case GetAccountDetail:
		return QueryWire{Kind: KindGetAccountDetail, GetAccountDetail: &q}
	case GetRoles:
		return QueryWire{Kind: KindGetRoles}
	case GetRolePermissions:
		return QueryWire{Kind: KindGetRolePermissions, GetRolePermissions: &q}
	default:
		panic(fmt.Sprintf("types: cannot encode query %T", q))
	}
}

// Query unwraps the variant selected by Kind. A missing body decodes
// as the variant's zero value.
func (w QueryWire) Query() (QueryKind, error) {
	var q QueryKind
	switch w.Kind {
	case KindGetAccount:
		q = deref(w.GetAccount)
	case KindGetSignatories:
		q = deref(w.GetSignatories)
	case KindGetAssetInfo:
		q = deref(w.GetAssetInfo)
	case KindGetAccountAssets:
		q = deref(w.GetAccountAssets)
	case KindGetAccountAssetTransactions:
		q = deref(w.GetAccountAssetTransactions)
	case KindGetAccountTransactions:
		q = deref(w.GetAccountTransactions)
	case KindGetTransactions:
		q = deref(w.GetTransactions)
	case KindGetAccountDetail:
		q = deref(w.GetAccountDetail)
	case KindGetRoles:
		q = GetRoles{}
	case KindGetRolePermissions:
		q = deref(w.GetRolePermissions)
	default:
		return nil, fmt.Errorf("types: unknown query kind %d", w.Kind)
	}
	return q, nil
}

// deref returns the zero value for a nil body: the codec omits a
// pointer to an all-zero struct, and Kind alone selects the variant.
func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
