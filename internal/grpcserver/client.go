package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls WalletService using the JSON codec.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) ClientOption {
	return func(client *Client) {
		client.token = token
	}
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface, options ...ClientOption) *Client {
	client := &Client{conn: conn}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client
}

func (client *Client) GetBalance(ctx context.Context, request *GetBalanceRequest) (*BalanceResponse, error) {
	response := new(BalanceResponse)
	if err := client.invoke(ctx, methodGetBalance, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (client *Client) FundWallet(ctx context.Context, request *FundWalletRequest) (*FundWalletResponse, error) {
	response := new(FundWalletResponse)
	if err := client.invoke(ctx, methodFundWallet, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (client *Client) DebitWallet(ctx context.Context, request *DebitWalletRequest) (*DebitWalletResponse, error) {
	response := new(DebitWalletResponse)
	if err := client.invoke(ctx, methodDebitWallet, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (client *Client) ListTransactions(ctx context.Context, request *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	response := new(ListTransactionsResponse)
	if err := client.invoke(ctx, methodListTransactions, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (client *Client) invoke(ctx context.Context, method string, request any, response any) error {
	if client.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, metadataAuthorization, bearerPrefix+client.token)
	}
	return client.conn.Invoke(ctx, fullMethod(method), request, response, grpc.CallContentSubtype(CodecName))
}
