package memledger

import (
	"sort"

	"github.com/blockberries/ledger/types"
)

// DefaultPageSize applies to paginated queries that leave PageSize zero.
const DefaultPageSize = 100

// Query error codes reported in error responses.
const (
	QueryCodeNoPermission uint32 = 2
	QueryCodeBadPage      uint32 = 4
)

// answer runs a validated query against s.
func (n *Node) answer(s *state, qh types.Hash, creator types.AccountID, q types.QueryKind) types.QueryResponse {
	// mine picks the "my" or "all" permission depending on the target.
	mine := func(target types.AccountID, my, all types.RolePermission) bool {
		if target == creator && s.can(creator, my) {
			return true
		}
		return s.can(creator, all)
	}
	denied := func() types.QueryResponse {
		return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, QueryCodeNoPermission,
			string(creator)+" may not run "+q.QueryName())
	}

	switch q := q.(type) {
	case types.GetAccount:
		if !mine(q.AccountID, types.CanGetMyAccount, types.CanGetAllAccounts) {
			return denied()
		}
		a, ok := s.accounts[q.AccountID]
		if !ok {
			return types.NewErrorResponse(qh, types.ErrorNoAccount, 0, "no account "+string(q.AccountID))
		}
		return types.QueryResponse{Kind: types.ResponseAccount, QueryHash: qh, Account: &types.AccountResponse{
			Account: types.Account{
				AccountID: a.id,
				DomainID:  a.id.Domain(),
				Quorum:    a.quorum,
				JSONData:  a.detailJSON("", ""),
			},
			Roles: append([]types.RoleID(nil), a.roles...),
		}}

	case types.GetSignatories:
		if !mine(q.AccountID, types.CanGetMySignatories, types.CanGetAllAccounts) {
			return denied()
		}
		a, ok := s.accounts[q.AccountID]
		if !ok || len(a.signatories) == 0 {
			return types.NewErrorResponse(qh, types.ErrorNoSignatories, 0, "no signatories for "+string(q.AccountID))
		}
		return types.QueryResponse{Kind: types.ResponseSignatories, QueryHash: qh, Signatories: &types.SignatoriesResponse{
			Keys: append([]types.PublicKey(nil), a.signatories...),
		}}

	case types.GetAssetInfo:
		if !s.can(creator, types.CanReadAssets) {
			return denied()
		}
		asset, ok := s.assets[q.AssetID]
		if !ok {
			return types.NewErrorResponse(qh, types.ErrorNoAsset, 0, "no asset "+string(q.AssetID))
		}
		return types.QueryResponse{Kind: types.ResponseAsset, QueryHash: qh, Asset: &types.AssetResponse{Asset: asset}}

	case types.GetAccountAssets:
		if !mine(q.AccountID, types.CanGetMyAccAst, types.CanGetAllAccAst) {
			return denied()
		}
		a, ok := s.accounts[q.AccountID]
		if !ok {
			return types.NewErrorResponse(qh, types.ErrorNoAccountAssets, 0, "no account "+string(q.AccountID))
		}
		return n.accountAssets(s, qh, a, q)

	case types.GetAccountDetail:
		if !mine(q.AccountID, types.CanGetMyAccDetail, types.CanGetAllAccDetail) {
			return denied()
		}
		a, ok := s.accounts[q.AccountID]
		if !ok {
			return types.NewErrorResponse(qh, types.ErrorNoAccountDetail, 0, "no account "+string(q.AccountID))
		}
		return types.QueryResponse{Kind: types.ResponseAccountDetail, QueryHash: qh, AccountDetail: &types.AccountDetailResponse{
			Detail: a.detailJSON(q.Writer, q.Key),
		}}

	case types.GetAccountTransactions:
		if !mine(q.AccountID, types.CanGetMyAccTxs, types.CanGetAllAccTxs) {
			return denied()
		}
		return n.page(qh, q.Pagination, func(tx types.Transaction) bool {
			return tx.Payload.Creator == q.AccountID
		})

	case types.GetAccountAssetTransactions:
		if !mine(q.AccountID, types.CanGetMyAccAstTxs, types.CanGetAllAccAstTxs) {
			return denied()
		}
		return n.page(qh, q.Pagination, func(tx types.Transaction) bool {
			return touches(tx, q.AccountID, q.AssetID)
		})

	case types.GetTransactions:
		out := make([]types.TransactionWire, 0, len(q.TxHashes))
		for _, h := range q.TxHashes {
			idx, ok := n.txIndex[h]
			if !ok {
				return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, QueryCodeBadPage, "unknown transaction "+h.String())
			}
			tx := n.committed[idx]
			if tx.Payload.Creator != creator && !s.can(creator, types.CanGetAllAccTxs) {
				return denied()
			}
			if tx.Payload.Creator == creator && !s.can(creator, types.CanGetMyTxs) {
				return denied()
			}
			out = append(out, tx.Wire())
		}
		return types.QueryResponse{Kind: types.ResponseTransactions, QueryHash: qh, Transactions: &types.TransactionsResponse{Transactions: out}}

	case types.GetRoles:
		if !s.can(creator, types.CanGetRoles) {
			return denied()
		}
		roles := s.sortedRoles()
		if len(roles) == 0 {
			return types.NewErrorResponse(qh, types.ErrorNoRoles, 0, "no roles")
		}
		return types.QueryResponse{Kind: types.ResponseRoles, QueryHash: qh, Roles: &types.RolesResponse{Roles: roles}}

	case types.GetRolePermissions:
		if !s.can(creator, types.CanGetRoles) {
			return denied()
		}
		perms, ok := s.roles[q.RoleID]
		if !ok {
			return types.NewErrorResponse(qh, types.ErrorNoRoles, 0, "no role "+string(q.RoleID))
		}
		return types.QueryResponse{Kind: types.ResponseRolePermissions, QueryHash: qh, RolePermissions: &types.RolePermissionsResponse{
			Permissions: sortedPermissions(perms),
		}}

	default:
		return types.NewErrorResponse(qh, types.ErrorNotSupported, 0, "unsupported query "+q.QueryName())
	}
}

func (n *Node) accountAssets(s *state, qh types.Hash, a *account, q types.GetAccountAssets) types.QueryResponse {
	ids := make([]types.AssetID, 0, len(a.balances))
	for id := range a.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	if q.FirstAsset != nil {
		start = -1
		for i, id := range ids {
			if id == *q.FirstAsset {
				start = i
				break
			}
		}
		if start < 0 {
			return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, QueryCodeBadPage, "first asset "+string(*q.FirstAsset)+" not held")
		}
	}
	end := len(ids)
	if q.PageSize > 0 && start+int(q.PageSize) < end {
		end = start + int(q.PageSize)
	}

	resp := &types.AccountAssetsResponse{TotalNumber: uint32(len(ids))}
	for _, id := range ids[start:end] {
		resp.Assets = append(resp.Assets, types.AccountAsset{
			AssetID:   id,
			AccountID: a.id,
			Balance:   formatAmount(a.balances[id], s.assets[id].Precision),
		})
	}
	if end < len(ids) {
		next := ids[end]
		resp.NextAssetID = &next
	}
	return types.QueryResponse{Kind: types.ResponseAccountAssets, QueryHash: qh, AccountAssets: resp}
}

// page lists committed transactions matching keep, in commit order.
func (n *Node) page(qh types.Hash, p types.Pagination, keep func(types.Transaction) bool) types.QueryResponse {
	var matched []types.Transaction
	for _, tx := range n.committed {
		if keep(tx) {
			matched = append(matched, tx)
		}
	}

	start := 0
	if p.FirstTxHash != nil {
		start = -1
		for i, tx := range matched {
			if tx.Hash() == *p.FirstTxHash {
				start = i
				break
			}
		}
		if start < 0 {
			return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, QueryCodeBadPage, "first transaction "+p.FirstTxHash.String()+" not in result set")
		}
	}
	size := int(p.PageSize)
	if size == 0 {
		size = DefaultPageSize
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	resp := &types.TransactionsPageResponse{AllTransactionsSize: uint32(len(matched))}
	for _, tx := range matched[start:end] {
		resp.Transactions = append(resp.Transactions, tx.Wire())
	}
	if end < len(matched) {
		next := matched[end].Hash()
		resp.NextTxHash = &next
	}
	return types.QueryResponse{Kind: types.ResponseTransactionsPage, QueryHash: qh, TransactionsPage: resp}
}

// touches reports whether tx moved asset in or out of acct.
func touches(tx types.Transaction, acct types.AccountID, asset types.AssetID) bool {
	for _, c := range tx.Payload.Commands {
		switch c := c.(type) {
		case types.TransferAsset:
			if c.AssetID == asset && (c.SrcAccountID == acct || c.DestAccountID == acct) {
				return true
			}
		case types.AddAssetQuantity:
			if c.AssetID == asset && tx.Payload.Creator == acct {
				return true
			}
		case types.SubtractAssetQuantity:
			if c.AssetID == asset && tx.Payload.Creator == acct {
				return true
			}
		}
	}
	return false
}
