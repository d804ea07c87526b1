// Package grpcserver exposes wallet operations to operators over gRPC.
// Messages are plain structs carried by a JSON codec.
package grpcserver

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "ninwallet.wallet.v1.WalletService"

	methodGetBalance       = "GetBalance"
	methodFundWallet       = "FundWallet"
	methodDebitWallet      = "DebitWallet"
	methodListTransactions = "ListTransactions"

	errorInsufficientBalance = "insufficient_balance"
	errorInvalidUserID       = "invalid_user_id"
	errorInvalidAmount       = "invalid_amount"
	errorInvalidReference    = "invalid_reference"
	errorInvalidServiceLabel = "invalid_service_label"
	errorInvalidListLimit    = "invalid_list_limit"
	errorPlatform            = "platform_error"
)

// WalletService is the wallet API served over gRPC.
type WalletService interface {
	GetBalance(ctx context.Context, userID ledger.UserID) (ledger.Amount, error)
	FundWallet(ctx context.Context, userID ledger.UserID, amount ledger.PositiveAmount, reference ledger.Reference) (ledger.FundingResult, error)
	DebitWallet(ctx context.Context, userID ledger.UserID, amount ledger.PositiveAmount, label ledger.ServiceLabel) (ledger.DebitResult, error)
	GetTransactions(ctx context.Context, userID ledger.UserID, limit int) ([]ledger.Entry, error)
}

// WalletServiceServer is the handler contract registered with ServiceDesc.
type WalletServiceServer interface {
	GetBalance(ctx context.Context, request *GetBalanceRequest) (*BalanceResponse, error)
	FundWallet(ctx context.Context, request *FundWalletRequest) (*FundWalletResponse, error)
	DebitWallet(ctx context.Context, request *DebitWalletRequest) (*DebitWalletResponse, error)
	ListTransactions(ctx context.Context, request *ListTransactionsRequest) (*ListTransactionsResponse, error)
}

// Server adapts a WalletService to WalletServiceServer.
type Server struct {
	wallet WalletService
	logger *zap.Logger
}

// NewServer constructs a gRPC handler for the wallet service.
func NewServer(wallet WalletService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{wallet: wallet, logger: logger}
}

func (server *Server) GetBalance(ctx context.Context, request *GetBalanceRequest) (*BalanceResponse, error) {
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	balance, err := server.wallet.GetBalance(ctx, userID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	return &BalanceResponse{UserID: userID.String(), Balance: balance.Int64()}, nil
}

func (server *Server) FundWallet(ctx context.Context, request *FundWalletRequest) (*FundWalletResponse, error) {
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	amount, err := ledger.NewPositiveAmount(request.Amount)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	reference, err := ledger.NewReference(request.Reference)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	result, err := server.wallet.FundWallet(ctx, userID, amount, reference)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	balance, err := server.wallet.GetBalance(ctx, userID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	return &FundWalletResponse{
		Amount:           result.Amount.Int64(),
		AlreadyProcessed: result.AlreadyProcessed,
		Balance:          balance.Int64(),
	}, nil
}

func (server *Server) DebitWallet(ctx context.Context, request *DebitWalletRequest) (*DebitWalletResponse, error) {
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	amount, err := ledger.NewPositiveAmount(request.Amount)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	label, err := ledger.NewServiceLabel(request.ServiceLabel)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	result, err := server.wallet.DebitWallet(ctx, userID, amount, label)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	balance, err := server.wallet.GetBalance(ctx, userID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	return &DebitWalletResponse{
		EntryID: result.EntryID.String(),
		Debited: result.Debited.Int64(),
		Balance: balance.Int64(),
	}, nil
}

func (server *Server) ListTransactions(ctx context.Context, request *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	entries, err := server.wallet.GetTransactions(ctx, userID, int(request.Limit))
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	response := &ListTransactionsResponse{Entries: make([]Entry, 0, len(entries))}
	for _, entry := range entries {
		wireEntry := Entry{
			EntryID:       entry.EntryID().String(),
			Kind:          entry.Kind().String(),
			Amount:        entry.Amount().Int64(),
			MetadataJSON:  entry.MetadataJSON().String(),
			BalanceAfter:  entry.BalanceAfter().Int64(),
			CreatedAtUnix: entry.CreatedAt().Unix(),
		}
		if reference, ok := entry.Reference(); ok {
			wireEntry.Reference = reference.String()
		}
		response.Entries = append(response.Entries, wireEntry)
	}
	return response, nil
}

func (server *Server) mapToGRPCError(source error) error {
	switch {
	case errors.Is(source, ledger.ErrInvalidUserID):
		return status.Error(codes.InvalidArgument, errorInvalidUserID)
	case errors.Is(source, ledger.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, errorInvalidAmount)
	case errors.Is(source, ledger.ErrInvalidReference):
		return status.Error(codes.InvalidArgument, errorInvalidReference)
	case errors.Is(source, ledger.ErrInvalidServiceLabel):
		return status.Error(codes.InvalidArgument, errorInvalidServiceLabel)
	case errors.Is(source, ledger.ErrInvalidListLimit):
		return status.Error(codes.InvalidArgument, errorInvalidListLimit)
	case errors.Is(source, ledger.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, errorInsufficientBalance)
	}
	server.logger.Error("wallet rpc failed", zap.Error(source))
	return status.Error(codes.Internal, errorPlatform)
}

// ServiceDesc describes WalletService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WalletServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodGetBalance, Handler: getBalanceHandler},
		{MethodName: methodFundWallet, Handler: fundWalletHandler},
		{MethodName: methodDebitWallet, Handler: debitWalletHandler},
		{MethodName: methodListTransactions, Handler: listTransactionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ninwallet/wallet/v1/wallet",
}

// RegisterWalletServiceServer registers implementation with registrar.
func RegisterWalletServiceServer(registrar grpc.ServiceRegistrar, implementation WalletServiceServer) {
	registrar.RegisterService(&ServiceDesc, implementation)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func getBalanceHandler(implementation any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(GetBalanceRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return implementation.(WalletServiceServer).GetBalance(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: implementation, FullMethod: fullMethod(methodGetBalance)}
	handler := func(ctx context.Context, request any) (any, error) {
		return implementation.(WalletServiceServer).GetBalance(ctx, request.(*GetBalanceRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func fundWalletHandler(implementation any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(FundWalletRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return implementation.(WalletServiceServer).FundWallet(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: implementation, FullMethod: fullMethod(methodFundWallet)}
	handler := func(ctx context.Context, request any) (any, error) {
		return implementation.(WalletServiceServer).FundWallet(ctx, request.(*FundWalletRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func debitWalletHandler(implementation any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(DebitWalletRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return implementation.(WalletServiceServer).DebitWallet(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: implementation, FullMethod: fullMethod(methodDebitWallet)}
	handler := func(ctx context.Context, request any) (any, error) {
		return implementation.(WalletServiceServer).DebitWallet(ctx, request.(*DebitWalletRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func listTransactionsHandler(implementation any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(ListTransactionsRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return implementation.(WalletServiceServer).ListTransactions(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: implementation, FullMethod: fullMethod(methodListTransactions)}
	handler := func(ctx context.Context, request any) (any, error) {
		return implementation.(WalletServiceServer).ListTransactions(ctx, request.(*ListTransactionsRequest))
	}
	return interceptor(ctx, request, info, handler)
}
