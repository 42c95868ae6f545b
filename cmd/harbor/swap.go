package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	swapID string

	swapStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "get the status of a swap execution",
		Long: "this command returns the full record of the given swap " +
			"execution, including its quote, transaction ids and failure info",
		RunE: swapStatus,
	}
	swapHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "get the swap history of a user's wallet",
		Long: "this command returns every swap execution ever recorded for " +
			"the given user's wallet, terminal ones included",
		RunE: swapHistory,
	}
	swapCmd = &cobra.Command{
		Use:   "swap",
		Short: "inspect harbor swap executions",
		Long: "this command lets you inspect the swap executions stored in " +
			"the local datadir",
	}
)

func init() {
	swapStatusCmd.Flags().StringVar(&userID, "user", "", "id of the wallet owner")
	swapStatusCmd.Flags().StringVar(&swapID, "id", "", "id of the swap execution")
	swapStatusCmd.MarkFlagRequired("user")
	swapStatusCmd.MarkFlagRequired("id")

	swapHistoryCmd.Flags().StringVar(&userID, "user", "", "id of the wallet owner")
	swapHistoryCmd.MarkFlagRequired("user")

	swapCmd.AddCommand(swapStatusCmd, swapHistoryCmd)
}

func swapStatus(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := appCfg.SwapService().GetSwap(
		context.Background(), userID, swapID,
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

func swapHistory(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	history, err := appCfg.SwapService().GetSwapHistory(
		context.Background(), userID,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(history)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	return nil
}
