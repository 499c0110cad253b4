package types

import (
	"encoding/json"
	"fmt"
)

// ResponseKind tags the variant held by a QueryResponse.
type ResponseKind uint8

const (
	ResponseAccount ResponseKind = iota + 1
	ResponseSignatories
	ResponseAsset
	ResponseAccountAssets
	ResponseTransactions
	ResponseTransactionsPage
	ResponseAccountDetail
	ResponseRoles
	ResponseRolePermissions
	ResponseError
)

// Account is the ledger's view of an account.
type Account struct {
	AccountID AccountID `cramberry:"1"`
	DomainID  DomainID  `cramberry:"2"`
	Quorum    uint32    `cramberry:"3"`
	JSONData  string    `cramberry:"4"`
}

// AccountResponse answers GetAccount.
type AccountResponse struct {
	Account Account  `cramberry:"1"`
	Roles   []RoleID `cramberry:"2"`
}

// SignatoriesResponse answers GetSignatories.
type SignatoriesResponse struct {
	Keys []PublicKey `cramberry:"1"`
}

// Asset describes an asset definition.
type Asset struct {
	AssetID   AssetID  `cramberry:"1"`
	DomainID  DomainID `cramberry:"2"`
	Precision uint32   `cramberry:"3"`
}

// AssetResponse answers GetAssetInfo.
type AssetResponse struct {
	Asset Asset `cramberry:"1"`
}

// AccountAsset is one balance line.
type AccountAsset struct {
	AssetID   AssetID   `cramberry:"1"`
	AccountID AccountID `cramberry:"2"`
	Balance   Amount    `cramberry:"3"`
}

// AccountAssetsResponse answers GetAccountAssets.
type AccountAssetsResponse struct {
	Assets      []AccountAsset `cramberry:"1"`
	TotalNumber uint32         `cramberry:"2"`
	NextAssetID *AssetID       `cramberry:"3"`
}

// TransactionsResponse answers GetTransactions.
type TransactionsResponse struct {
	Transactions []TransactionWire `cramberry:"1"`
}

// TransactionsPageResponse answers the paginated transaction queries.
type TransactionsPageResponse struct {
	Transactions        []TransactionWire `cramberry:"1"`
	AllTransactionsSize uint32            `cramberry:"2"`
	NextTxHash          *Hash             `cramberry:"3"`
}

// AccountDetailResponse answers GetAccountDetail. Detail is a JSON
// object keyed by writer, then by key.
type AccountDetailResponse struct {
	Detail string `cramberry:"1"`
}

// Entries decodes Detail into writer -> key -> value.
func (r AccountDetailResponse) Entries() (map[AccountID]map[string]string, error) {
	out := make(map[AccountID]map[string]string)
	if r.Detail == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Detail), &out); err != nil {
		return nil, fmt.Errorf("decode account detail: %w", err)
	}
	return out, nil
}

// RolesResponse answers GetRoles.
type RolesResponse struct {
	Roles []RoleID `cramberry:"1"`
}

// RolePermissionsResponse answers GetRolePermissions.
type RolePermissionsResponse struct {
	Permissions []RolePermission `cramberry:"1"`
}

// ErrorReason classifies a query error response.
type ErrorReason uint8

const (
	ErrorStatelessInvalid ErrorReason = iota + 1
	ErrorStatefulInvalid
	ErrorNoAccount
	ErrorNoAccountAssets
	ErrorNoAccountDetail
	ErrorNoSignatories
	ErrorNotSupported
	ErrorNoAsset
	ErrorNoRoles
)

func (r ErrorReason) String() string {
	switch r {
	case ErrorStatelessInvalid:
		return "STATELESS_INVALID"
	case ErrorStatefulInvalid:
		return "STATEFUL_INVALID"
	case ErrorNoAccount:
		return "NO_ACCOUNT"
	case ErrorNoAccountAssets:
		return "NO_ACCOUNT_ASSETS"
	case ErrorNoAccountDetail:
		return "NO_ACCOUNT_DETAIL"
	case ErrorNoSignatories:
		return "NO_SIGNATORIES"
	case ErrorNotSupported:
		return "NOT_SUPPORTED"
	case ErrorNoAsset:
		return "NO_ASSET"
	case ErrorNoRoles:
		return "NO_ROLES"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// ErrorResponse is returned instead of data when the ledger refuses a query.
type ErrorResponse struct {
	Reason    ErrorReason `cramberry:"1"`
	Message   string      `cramberry:"2"`
	ErrorCode uint32      `cramberry:"3"`
}

// QueryResponse is the tagged-union answer to a query. Kind selects the
// populated field.
type QueryResponse struct {
	Kind             ResponseKind              `cramberry:"1"`
	QueryHash        Hash                      `cramberry:"2"`
	Account          *AccountResponse          `cramberry:"3"`
	Signatories      *SignatoriesResponse      `cramberry:"4"`
	Asset            *AssetResponse            `cramberry:"5"`
	AccountAssets    *AccountAssetsResponse    `cramberry:"6"`
	Transactions     *TransactionsResponse     `cramberry:"7"`
	TransactionsPage *TransactionsPageResponse `cramberry:"8"`
	AccountDetail    *AccountDetailResponse    `cramberry:"9"`
	Roles            *RolesResponse            `cramberry:"10"`
	RolePermissions  *RolePermissionsResponse  `cramberry:"11"`
	Error            *ErrorResponse            `cramberry:"12"`
}

// IsError reports whether the ledger answered with an error.
func (r QueryResponse) IsError() bool {
	return r.Kind == ResponseError
}

// Normalize allocates the zero body selected by Kind when it is missing.
// The codec omits a pointer to an all-zero struct, so an empty answer
// (no roles, no transactions) arrives without a body.
func (r *QueryResponse) Normalize() {
	switch r.Kind {
	case ResponseAccount:
		fill(&r.Account)
	case ResponseSignatories:
		fill(&r.Signatories)
	case ResponseAsset:
		fill(&r.Asset)
	case ResponseAccountAssets:
		fill(&r.AccountAssets)
	case ResponseTransactions:
		fill(&r.Transactions)
	case ResponseTransactionsPage:
		fill(&r.TransactionsPage)
	case ResponseAccountDetail:
		fill(&r.AccountDetail)
	case ResponseRoles:
		fill(&r.Roles)
	case ResponseRolePermissions:
		fill(&r.RolePermissions)
	case ResponseError:
		fill(&r.Error)
	}
}

func fill[T any](p **T) {
	if *p == nil {
		*p = new(T)
	}
}

// ErrorDetail returns the error body, or a synthesized one when Kind is
// ResponseError but the body is missing.
func (r QueryResponse) ErrorDetail() ErrorResponse {
	if r.Error != nil {
		return *r.Error
	}
	return ErrorResponse{Message: "error response without body"}
}

// NewErrorResponse builds an error answer for the query with hash qh.
func NewErrorResponse(qh Hash, reason ErrorReason, code uint32, msg string) QueryResponse {
	return QueryResponse{
		Kind:      ResponseError,
		QueryHash: qh,
		Error:     &ErrorResponse{Reason: reason, Message: msg, ErrorCode: code},
	}
}
