package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/money"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const balanceTimeout = 10 * time.Second

func runBalance(ctx context.Context, out io.Writer, target string, token string, userID string, limit int32) error {
	if target == "" {
		target = defaultGRPCTarget
	}
	if strings.HasPrefix(target, ":") {
		target = "127.0.0.1" + target
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("grpc dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	requestCtx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()
	client := grpcserver.NewClient(conn, grpcserver.WithToken(token))
	balance, err := client.GetBalance(requestCtx, &grpcserver.GetBalanceRequest{UserID: userID})
	if err != nil {
		return err
	}
	transactions, err := client.ListTransactions(requestCtx, &grpcserver.ListTransactionsRequest{UserID: userID, Limit: limit})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s balance %s\n", balance.UserID, money.FormatNaira(balance.Balance))
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "CREATED\tKIND\tAMOUNT\tBALANCE\tREFERENCE")
	for _, entry := range transactions.Entries {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\n", time.Unix(entry.CreatedAtUnix, 0).UTC().Format(time.RFC3339), entry.Kind, entry.Amount, entry.BalanceAfter, entry.Reference)
	}
	return writer.Flush()
}
