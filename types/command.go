package types

// Command is one operation of a transaction. The set of implementations
// is closed; the ledger executes a transaction's commands in order.
type Command interface {
	// CommandName returns the catalog name, e.g. "TransferAsset".
	CommandName() string
	command()
}

// CreateDomain creates a domain whose new accounts get DefaultRole.
type CreateDomain struct {
	DomainID    DomainID `cramberry:"1"`
	DefaultRole RoleID   `cramberry:"2"`
}

// CreateAsset creates AssetName#DomainID with a fixed decimal precision.
type CreateAsset struct {
	AssetName string   `cramberry:"1"`
	DomainID  DomainID `cramberry:"2"`
	Precision uint32   `cramberry:"3"`
}

// AddAssetQuantity mints Amount of AssetID to the creator's account.
type AddAssetQuantity struct {
	AssetID AssetID `cramberry:"1"`
	Amount  Amount  `cramberry:"2"`
}

// SubtractAssetQuantity burns Amount of AssetID from the creator's account.
type SubtractAssetQuantity struct {
	AssetID AssetID `cramberry:"1"`
	Amount  Amount  `cramberry:"2"`
}

// CreateAccount creates AccountName@DomainID with one signatory.
type CreateAccount struct {
	AccountName string    `cramberry:"1"`
	DomainID    DomainID  `cramberry:"2"`
	PublicKey   PublicKey `cramberry:"3"`
}

// TransferAsset moves Amount of AssetID between two accounts.
type TransferAsset struct {
	SrcAccountID  AccountID `cramberry:"1"`
	DestAccountID AccountID `cramberry:"2"`
	AssetID       AssetID   `cramberry:"3"`
	Description   string    `cramberry:"4"`
	Amount        Amount    `cramberry:"5"`
}

// GrantPermission lets AccountID act on the creator's resources.
type GrantPermission struct {
	AccountID  AccountID           `cramberry:"1"`
	Permission GrantablePermission `cramberry:"2"`
}

// RevokePermission undoes a previous GrantPermission.
type RevokePermission struct {
	AccountID  AccountID           `cramberry:"1"`
	Permission GrantablePermission `cramberry:"2"`
}

// SetAccountDetail writes Key=Value into AccountID's detail storage
// under the creator's namespace.
type SetAccountDetail struct {
	AccountID AccountID `cramberry:"1"`
	Key       string    `cramberry:"2"`
	Value     string    `cramberry:"3"`
}

// CompareAndSetAccountDetail writes Key=Value only if the current value
// equals OldValue. A nil OldValue requires the key to be absent.
type CompareAndSetAccountDetail struct {
	AccountID AccountID `cramberry:"1"`
	Key       string    `cramberry:"2"`
	Value     string    `cramberry:"3"`
	OldValue  *string   `cramberry:"4"`
}

// AddSignatory adds a key to AccountID's signatories.
type AddSignatory struct {
	AccountID AccountID `cramberry:"1"`
	PublicKey PublicKey `cramberry:"2"`
}

// RemoveSignatory removes a key from AccountID's signatories.
type RemoveSignatory struct {
	AccountID AccountID `cramberry:"1"`
	PublicKey PublicKey `cramberry:"2"`
}

// SetAccountQuorum sets how many signatures AccountID's transactions need.
type SetAccountQuorum struct {
	AccountID AccountID `cramberry:"1"`
	Quorum    uint32    `cramberry:"2"`
}

// CreateRole defines a role with a set of permissions.
type CreateRole struct {
	RoleName    RoleID           `cramberry:"1"`
	Permissions []RolePermission `cramberry:"2"`
}

// AppendRole attaches RoleName to AccountID.
type AppendRole struct {
	AccountID AccountID `cramberry:"1"`
	RoleName  RoleID    `cramberry:"2"`
}

// DetachRole removes RoleName from AccountID.
type DetachRole struct {
	AccountID AccountID `cramberry:"1"`
	RoleName  RoleID    `cramberry:"2"`
}

func (CreateDomain) CommandName() string               { return "CreateDomain" }
func (CreateAsset) CommandName() string                { return "CreateAsset" }
func (AddAssetQuantity) CommandName() string           { return "AddAssetQuantity" }
func (SubtractAssetQuantity) CommandName() string      { return "SubtractAssetQuantity" }
func (CreateAccount) CommandName() string              { return "CreateAccount" }
func (TransferAsset) CommandName() string              { return "TransferAsset" }
func (GrantPermission) CommandName() string            { return "GrantPermission" }
func (RevokePermission) CommandName() string           { return "RevokePermission" }
func (SetAccountDetail) CommandName() string           { return "SetAccountDetail" }
func (CompareAndSetAccountDetail) CommandName() string { return "CompareAndSetAccountDetail" }
func (AddSignatory) CommandName() string               { return "AddSignatory" }
func (RemoveSignatory) CommandName() string            { return "RemoveSignatory" }
func (SetAccountQuorum) CommandName() string           { return "SetAccountQuorum" }
func (CreateRole) CommandName() string                 { return "CreateRole" }
func (AppendRole) CommandName() string                 { return "AppendRole" }
func (DetachRole) CommandName() string                 { return "DetachRole" }

func (CreateDomain) command()               {}
func (CreateAsset) command()                {}
func (AddAssetQuantity) command()           {}
func (SubtractAssetQuantity) command()      {}
func (CreateAccount) command()              {}
func (TransferAsset) command()              {}
func (GrantPermission) command()            {}
func (RevokePermission) command()           {}
func (SetAccountDetail) command()           {}
func (CompareAndSetAccountDetail) command() {}
func (AddSignatory) command()               {}
func (RemoveSignatory) command()            {}
func (SetAccountQuorum) command()           {}
func (CreateRole) command()                 {}
func (AppendRole) command()                 {}
func (DetachRole) command()                 {}
