package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	userID   string
	mnemonic string

	walletCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "create a brand new wallet for a user",
		Long: "this command lets you create a new wallet for the given user " +
			"with a freshly generated mnemonic, printed once for backup",
		RunE: walletCreate,
	}
	walletRestoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "restore a wallet from an existing mnemonic",
		Long: "this command lets you restore the wallet of the given user " +
			"from its mnemonic, re-deriving the same accounts on every chain",
		RunE: walletRestore,
	}
	walletShowCmd = &cobra.Command{
		Use:   "show",
		Short: "get info about a user's wallet",
		Long: "this command returns info about the wallet of the given user, " +
			"its accounts and their addresses",
		RunE: walletShow,
	}
	walletBalanceCmd = &cobra.Command{
		Use:   "balance",
		Short: "get the native balances of a user's wallet",
		Long: "this command returns the native balance of every account of " +
			"the given user's wallet, one entry per supported chain",
		RunE: walletBalance,
	}
	walletExportCmd = &cobra.Command{
		Use:   "export",
		Short: "re-export the mnemonic of a user's wallet",
		Long: "this command prints the mnemonic of the given user's wallet " +
			"for backup purposes, the export is audited in the daemon logs",
		RunE: walletExport,
	}
	walletDeactivateCmd = &cobra.Command{
		Use:   "deactivate",
		Short: "soft-delete a user's wallet",
		Long: "this command deactivates the wallet of the given user, its " +
			"record and sealed mnemonic are retained",
		RunE: walletDeactivate,
	}
	walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "interact with harbor wallets",
		Long: "this command lets you create, restore, inspect and deactivate " +
			"user wallets stored in the local datadir",
	}
)

func init() {
	for _, cmd := range []*cobra.Command{
		walletCreateCmd, walletRestoreCmd, walletShowCmd, walletBalanceCmd,
		walletExportCmd, walletDeactivateCmd,
	} {
		cmd.Flags().StringVar(&userID, "user", "", "id of the wallet owner")
		cmd.MarkFlagRequired("user")
	}
	walletRestoreCmd.Flags().StringVar(
		&mnemonic, "mnemonic", "", "space separated word list as wallet seed",
	)
	walletRestoreCmd.MarkFlagRequired("mnemonic")

	walletCmd.AddCommand(
		walletCreateCmd, walletRestoreCmd, walletShowCmd, walletBalanceCmd,
		walletExportCmd, walletDeactivateCmd,
	)
}

func walletCreate(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	words, info, err := appCfg.WalletService().CreateWallet(
		context.Background(), userID,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(info)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	fmt.Println("")
	fmt.Println("write down the mnemonic below, it is shown only once:")
	fmt.Println(strings.Join(words, " "))
	return nil
}

func walletRestore(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := appCfg.WalletService().RestoreWallet(
		context.Background(), userID, strings.Fields(mnemonic),
	)
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(info)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	return nil
}

func walletShow(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := appCfg.WalletService().GetWallet(context.Background(), userID)
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(info)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	return nil
}

func walletBalance(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	balances, err := appCfg.WalletService().GetBalances(
		context.Background(), userID,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(balances)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	return nil
}

func walletExport(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	words, err := appCfg.WalletService().ExportMnemonic(
		context.Background(), userID,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(strings.Join(words, " "))
	return nil
}

func walletDeactivate(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := appCfg.WalletService().DeactivateWallet(
		context.Background(), userID,
	); err != nil {
		printErr(err)
		return nil
	}

	fmt.Println("wallet deactivated")
	return nil
}
