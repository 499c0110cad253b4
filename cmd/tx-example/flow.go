package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/actor"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/types"
)

const (
	exampleDomain types.DomainID = "domain"
	exampleAsset  types.AssetID  = "coin#domain"
	defaultRole   types.RoleID   = "user"
)

// flow runs the example steps in order. Each step needs the previous
// ones to have committed.
type flow struct {
	admin     *actor.Actor
	user      *actor.Actor
	conn      ledger.Node
	actorOpts []actor.Option
	out       io.Writer
}

func (f *flow) run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"create domain and asset", f.createDomainAndAsset},
		{"add coin to admin", f.addCoinToAdmin},
		{"create account", f.createAccount},
		{"transfer coin from admin to user", f.transferToUser},
		{"transfer coin from user back to admin", f.transferBack},
		{"user grants admin can_set_my_account_detail", f.grantDetailPermission},
		{"admin sets detail on user", f.setAge},
		{"queries", f.queries},
	}
	for _, s := range steps {
		fmt.Fprintf(f.out, "--- %s\n", s.name)
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	fmt.Fprintln(f.out, "done")
	return nil
}

func (f *flow) execute(ctx context.Context, a *actor.Actor, cmds ...types.Command) error {
	out, err := a.Execute(ctx, cmds...)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.out, "%s %s\n", out.Hash, out.Status)
	return nil
}

func (f *flow) createDomainAndAsset(ctx context.Context) error {
	return f.execute(ctx, f.admin,
		types.CreateDomain{DomainID: exampleDomain, DefaultRole: defaultRole},
		types.CreateAsset{AssetName: "coin", DomainID: exampleDomain, Precision: 2},
	)
}

func (f *flow) addCoinToAdmin(ctx context.Context) error {
	return f.execute(ctx, f.admin, types.AddAssetQuantity{AssetID: exampleAsset, Amount: "1000.00"})
}

func (f *flow) createAccount(ctx context.Context) error {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	name := "userone" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if err := f.execute(ctx, f.admin, types.CreateAccount{AccountName: name, DomainID: exampleDomain, PublicKey: key.PublicKey()}); err != nil {
		return err
	}
	f.user, err = actor.New(types.NewAccountID(name, exampleDomain), key, f.conn, f.actorOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.out, "created %s\n", f.user.ID())
	return nil
}

func (f *flow) transferToUser(ctx context.Context) error {
	return f.execute(ctx, f.admin, types.TransferAsset{
		SrcAccountID:  f.admin.ID(),
		DestAccountID: f.user.ID(),
		AssetID:       exampleAsset,
		Description:   "init top up",
		Amount:        "2.00",
	})
}

func (f *flow) transferBack(ctx context.Context) error {
	return f.execute(ctx, f.user, types.TransferAsset{
		SrcAccountID:  f.user.ID(),
		DestAccountID: f.admin.ID(),
		AssetID:       exampleAsset,
		Description:   "get back",
		Amount:        "1.10",
	})
}

func (f *flow) grantDetailPermission(ctx context.Context) error {
	return f.execute(ctx, f.user, types.GrantPermission{
		AccountID:  f.admin.ID(),
		Permission: types.CanSetMyAccountDetail,
	})
}

func (f *flow) setAge(ctx context.Context) error {
	return f.execute(ctx, f.admin, types.SetAccountDetail{AccountID: f.user.ID(), Key: "age", Value: "18"})
}

func (f *flow) queries(ctx context.Context) error {
	page := types.Pagination{PageSize: 10}

	info, err := f.admin.Query(ctx, types.GetAssetInfo{AssetID: exampleAsset})
	if err != nil {
		return err
	}
	fmt.Fprintf(f.out, "asset %s: domain %s, precision %d\n",
		info.Asset.Asset.AssetID, info.Asset.Asset.DomainID, info.Asset.Asset.Precision)

	assets, err := f.admin.Query(ctx, types.GetAccountAssets{AccountID: f.user.ID()})
	if err != nil {
		return err
	}
	for _, a := range assets.AccountAssets.Assets {
		fmt.Fprintf(f.out, "balance %s of %s: %s\n", a.AssetID, a.AccountID, a.Balance)
	}

	detail, err := f.admin.Query(ctx, types.GetAccountDetail{AccountID: f.user.ID()})
	if err != nil {
		return err
	}
	fmt.Fprintf(f.out, "detail of %s: %s\n", f.user.ID(), detail.AccountDetail.Detail)

	txs, err := f.admin.Query(ctx, types.GetAccountTransactions{AccountID: f.user.ID(), Pagination: page})
	if err != nil {
		return err
	}
	f.printPage("transactions of "+string(f.user.ID()), txs.TransactionsPage)

	assetTxs, err := f.admin.Query(ctx, types.GetAccountAssetTransactions{
		AccountID: f.user.ID(), AssetID: exampleAsset, Pagination: page,
	})
	if err != nil {
		return err
	}
	f.printPage(string(exampleAsset)+" transactions of "+string(f.user.ID()), assetTxs.TransactionsPage)
	return nil
}

func (f *flow) printPage(title string, p *types.TransactionsPageResponse) {
	fmt.Fprintf(f.out, "%s: %d of %d\n", title, len(p.Transactions), p.AllTransactionsSize)
	for _, w := range p.Transactions {
		tx, err := w.Transaction()
		if err != nil {
			fmt.Fprintf(f.out, "  undecodable transaction: %v\n", err)
			continue
		}
		names := make([]string, len(tx.Payload.Commands))
		for i, c := range tx.Payload.Commands {
			names[i] = c.CommandName()
		}
		fmt.Fprintf(f.out, "  %s by %s: %s\n", tx.Hash(), tx.Payload.Creator, strings.Join(names, ", "))
	}
}
