package types

// QueryKind is the body of a query. The set of implementations is closed.
type QueryKind interface {
	// QueryName returns the catalog name, e.g. "GetAccountAssets".
	QueryName() string
	queryKind()
}

// Pagination bounds a transaction listing. FirstTxHash, when set,
// starts the page at that transaction.
type Pagination struct {
	PageSize    uint32 `cramberry:"1"`
	FirstTxHash *Hash  `cramberry:"2"`
}

// GetAccount returns an account's domain, quorum, roles and details.
type GetAccount struct {
	AccountID AccountID `cramberry:"1"`
}

// GetSignatories returns the public keys that may sign for an account.
type GetSignatories struct {
	AccountID AccountID `cramberry:"1"`
}

// GetAssetInfo returns an asset's domain and precision.
type GetAssetInfo struct {
	AssetID AssetID `cramberry:"1"`
}

// GetAccountAssets returns an account's balances.
type GetAccountAssets struct {
	AccountID  AccountID `cramberry:"1"`
	PageSize   uint32    `cramberry:"2"`
	FirstAsset *AssetID  `cramberry:"3"`
}

// GetAccountAssetTransactions pages through the transactions that
// touched AssetID on AccountID.
type GetAccountAssetTransactions struct {
	AccountID  AccountID  `cramberry:"1"`
	AssetID    AssetID    `cramberry:"2"`
	Pagination Pagination `cramberry:"3"`
}

// GetAccountTransactions pages through transactions created by AccountID.
type GetAccountTransactions struct {
	AccountID  AccountID  `cramberry:"1"`
	Pagination Pagination `cramberry:"2"`
}

// GetTransactions fetches committed transactions by hash.
type GetTransactions struct {
	TxHashes []Hash `cramberry:"1"`
}

// GetAccountDetail reads detail storage. Empty Key or Writer widen the
// selection to all keys or all writers.
type GetAccountDetail struct {
	AccountID AccountID `cramberry:"1"`
	Key       string    `cramberry:"2"`
	Writer    AccountID `cramberry:"3"`
}

// GetRoles lists all roles.
type GetRoles struct{}

// GetRolePermissions lists the permissions of RoleID.
type GetRolePermissions struct {
	RoleID RoleID `cramberry:"1"`
}

func (GetAccount) QueryName() string                  { return "GetAccount" }
func (GetSignatories) QueryName() string              { return "GetSignatories" }
func (GetAssetInfo) QueryName() string                { return "GetAssetInfo" }
func (GetAccountAssets) QueryName() string            { return "GetAccountAssets" }
func (GetAccountAssetTransactions) QueryName() string { return "GetAccountAssetTransactions" }
func (GetAccountTransactions) QueryName() string      { return "GetAccountTransactions" }
func (GetTransactions) QueryName() string             { return "GetTransactions" }
func (GetAccountDetail) QueryName() string            { return "GetAccountDetail" }
func (GetRoles) QueryName() string                    { return "GetRoles" }
func (GetRolePermissions) QueryName() string          { return "GetRolePermissions" }

func (GetAccount) queryKind()                  {}
func (GetSignatories) queryKind()              {}
func (GetAssetInfo) queryKind()                {}
func (GetAccountAssets) queryKind()            {}
func (GetAccountAssetTransactions) queryKind() {}
func (GetAccountTransactions) queryKind()      {}
func (GetTransactions) queryKind()             {}
func (GetAccountDetail) queryKind()            {}
func (GetRoles) queryKind()                    {}
func (GetRolePermissions) queryKind()          {}
