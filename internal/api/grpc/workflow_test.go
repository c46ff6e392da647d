package grpc_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	apigrpc "equiptrack-backend/internal/api/grpc"
	"equiptrack-backend/internal/api/grpc/interceptor"
	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository/memory"
	"equiptrack-backend/internal/security"
	"equiptrack-backend/internal/service"
)

type testServer struct {
	conn   *grpc.ClientConn
	tokens security.TokenManager
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	ledger := service.NewLedger(store, 2)
	approvals := service.NewApprovalService(store, ledger, nil)
	workflow := service.NewWorkflow(
		approvals,
		service.NewEquipmentService(store, ledger),
		service.NewAssignmentService(store, ledger),
		ledger,
	)

	tokens := security.NewTokenManager("test-secret", "equiptrack", time.Hour)
	auth := interceptor.NewAuthInterceptor(tokens)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.Unary()),
		grpc.ChainStreamInterceptor(auth.Stream()),
	)
	apigrpc.RegisterWorkflowServer(srv, apigrpc.NewWorkflowHandler(workflow))
	healthpb.RegisterHealthServer(srv, health.NewServer())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(apigrpc.CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testServer{conn: conn, tokens: tokens}
}

func (s *testServer) as(t *testing.T, userID int64, role domain.Role) context.Context {
	t.Helper()
	token, err := s.tokens.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func (s *testServer) call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return s.conn.Invoke(ctx, "/"+apigrpc.ServiceName+"/"+method, in, out, opts...)
}

func TestWorkflowService_ApprovalAndAssignment(t *testing.T) {
	s := startServer(t)
	user := s.as(t, 100, domain.RoleUser)
	lead := s.as(t, 200, domain.RoleTeamLead)
	admin := s.as(t, 300, domain.RoleAdmin)

	var created apigrpc.RequestReply
	require.NoError(t, s.call(user, "CreateRequest", &apigrpc.CreateRequestRequest{
		EquipmentType: "laptop", Justification: "new starter", Priority: domain.PriorityHigh,
	}, &created))
	require.NotNil(t, created.Request)
	assert.Equal(t, int64(100), created.Request.RequesterID)
	reqID := created.Request.ID

	var reply apigrpc.RequestReply
	require.NoError(t, s.call(lead, "ApproveAsTeamLead", &apigrpc.DecisionRequest{RequestID: reqID}, &reply))
	assert.Equal(t, domain.ApprovalGranted, reply.Request.TeamLeadApproval)
	require.NoError(t, s.call(admin, "ApproveAsAdmin", &apigrpc.DecisionRequest{RequestID: reqID}, &reply))
	assert.Equal(t, domain.RequestStatusApproved, reply.Request.Status)

	var eq apigrpc.EquipmentReply
	require.NoError(t, s.call(admin, "RegisterEquipment", &apigrpc.RegisterEquipmentRequest{SerialNumber: "SN-1", Category: "laptop"}, &eq))

	var assigned apigrpc.AssignmentReply
	require.NoError(t, s.call(admin, "Assign", &apigrpc.AssignRequest{RequestID: reqID, EquipmentID: eq.Equipment.ID}, &assigned))
	assert.Equal(t, domain.RequestStatusFulfilled, assigned.Request.Status)
	assert.Equal(t, domain.EquipmentStatusAssigned, assigned.Equipment.Status)
	assert.True(t, assigned.EquipmentReleased)

	var query apigrpc.QueryEquipmentReply
	require.NoError(t, s.call(lead, "QueryEquipment", &apigrpc.GetEquipmentRequest{EquipmentID: eq.Equipment.ID}, &query))
	assert.Equal(t, domain.EquipmentStatusAssigned, query.Status)
	assert.Contains(t, query.AllowedTargets, domain.EquipmentStatusAvailable)
}

func TestWorkflowService_ErrorMapping(t *testing.T) {
	s := startServer(t)
	user := s.as(t, 100, domain.RoleUser)
	lead := s.as(t, 200, domain.RoleTeamLead)

	var created apigrpc.RequestReply
	require.NoError(t, s.call(user, "CreateRequest", &apigrpc.CreateRequestRequest{
		EquipmentType: "laptop", Justification: "new starter", Priority: domain.PriorityHigh,
	}, &created))

	tests := []struct {
		name   string
		ctx    context.Context
		method string
		in     any
		code   codes.Code
		kind   string
	}{
		{"forbidden", user, "ApproveAsTeamLead", &apigrpc.DecisionRequest{RequestID: created.Request.ID}, codes.PermissionDenied, "forbidden"},
		{"not found", lead, "ApproveAsTeamLead", &apigrpc.DecisionRequest{RequestID: 999}, codes.NotFound, "not_found"},
		{"reason required", lead, "RejectAsTeamLead", &apigrpc.DecisionRequest{RequestID: created.Request.ID, Reason: "n/a"}, codes.InvalidArgument, "reason_required"},
		{"invalid input", user, "CreateRequest", &apigrpc.CreateRequestRequest{EquipmentType: "laptop"}, codes.InvalidArgument, "invalid_input"},
		{"missing token", context.Background(), "GetRequest", &apigrpc.GetRequestRequest{RequestID: created.Request.ID}, codes.Unauthenticated, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trailer metadata.MD
			err := s.call(tt.ctx, tt.method, tt.in, &apigrpc.RequestReply{}, grpc.Trailer(&trailer))
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			if tt.kind == "" {
				assert.Empty(t, trailer.Get(apigrpc.ErrorKindTrailer))
				return
			}
			assert.Equal(t, []string{tt.kind}, trailer.Get(apigrpc.ErrorKindTrailer))
		})
	}
}

func TestWorkflowService_ListHistoryStream(t *testing.T) {
	s := startServer(t)
	user := s.as(t, 100, domain.RoleUser)
	lead := s.as(t, 200, domain.RoleTeamLead)

	var created apigrpc.RequestReply
	require.NoError(t, s.call(user, "CreateRequest", &apigrpc.CreateRequestRequest{
		EquipmentType: "monitor", Justification: "second screen", Priority: domain.PriorityLow,
	}, &created))
	require.NoError(t, s.call(lead, "ApproveAsTeamLead", &apigrpc.DecisionRequest{RequestID: created.Request.ID}, &apigrpc.RequestReply{}))
	err := s.call(lead, "RejectAsTeamLead", &apigrpc.DecisionRequest{RequestID: created.Request.ID, Reason: "changed my mind after review"}, &apigrpc.RequestReply{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	entries, err := listHistory(lead, s, &apigrpc.ListHistoryRequest{SubjectKind: domain.SubjectRequest, SubjectID: created.Request.ID, Order: domain.NewestFirst})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionTeamLeadApproved, entries[0].Action)
	assert.Equal(t, domain.ActionCreated, entries[1].Action)

	_, err = listHistory(user, s, &apigrpc.ListHistoryRequest{SubjectKind: domain.SubjectRequest, SubjectID: created.Request.ID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = listHistory(lead, s, &apigrpc.ListHistoryRequest{SubjectKind: "invoice", SubjectID: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func listHistory(ctx context.Context, s *testServer, in *apigrpc.ListHistoryRequest) ([]domain.HistoryEntry, error) {
	stream, err := s.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, "/"+apigrpc.ServiceName+"/ListHistory")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	var out []domain.HistoryEntry
	for {
		var entry domain.HistoryEntry
		err := stream.RecvMsg(&entry)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := startServer(t)
	resp, err := healthpb.NewHealthClient(s.conn).Check(context.Background(), &healthpb.HealthCheckRequest{}, grpc.CallContentSubtype("proto"))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
