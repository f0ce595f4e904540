package spicedb

import (
	"context"
	"encoding/json"
	"testing"

	"authzbff/internal/authz"
	"authzbff/internal/observability/logging"
	"authzbff/internal/rpcerror"

	v1pb "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeChecker struct {
	last *v1pb.CheckPermissionRequest
	resp *v1pb.CheckPermissionResponse
	err  error
}

func (f *fakeChecker) CheckPermission(_ context.Context, in *v1pb.CheckPermissionRequest, _ ...grpc.CallOption) (*v1pb.CheckPermissionResponse, error) {
	f.last = in
	return f.resp, f.err
}

func request() *authz.Request {
	return &authz.Request{
		PolicyStoreID: "store1",
		Principal:     authz.EntityRef{EntityType: "user", EntityID: "alice"},
		Action:        authz.EntityRef{EntityType: "action", EntityID: "view"},
		Resource:      authz.EntityRef{EntityType: "document", EntityID: "doc1"},
		Context:       map[string]any{},
	}
}

func permissionship(p v1pb.CheckPermissionResponse_Permissionship) *v1pb.CheckPermissionResponse {
	return &v1pb.CheckPermissionResponse{Permissionship: p}
}

func TestIsAuthorizedDecisions(t *testing.T) {
	tests := []struct {
		name     string
		resp     *v1pb.CheckPermissionResponse
		decision authz.Decision
		warnings int
	}{
		{"has permission", permissionship(v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION), authz.Allow, 0},
		{"no permission", permissionship(v1pb.CheckPermissionResponse_PERMISSIONSHIP_NO_PERMISSION), authz.Deny, 0},
		{"unspecified", permissionship(v1pb.CheckPermissionResponse_PERMISSIONSHIP_UNSPECIFIED), authz.Unspecified, 0},
		{"conditional", &v1pb.CheckPermissionResponse{
			Permissionship:    v1pb.CheckPermissionResponse_PERMISSIONSHIP_CONDITIONAL_PERMISSION,
			PartialCaveatInfo: &v1pb.PartialCaveatInfo{MissingRequiredContext: []string{"ip", "time"}},
		}, authz.Unspecified, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(Config{}, &fakeChecker{resp: tt.resp}, logging.NewNopLogger())

			resp, err := client.IsAuthorized(context.Background(), request())
			require.NoError(t, err)
			assert.Equal(t, tt.decision, resp.Decision)
			assert.Len(t, resp.Errors, tt.warnings)
		})
	}
}

func TestConditionalWarningNamesMissingContext(t *testing.T) {
	checker := &fakeChecker{resp: &v1pb.CheckPermissionResponse{
		Permissionship:    v1pb.CheckPermissionResponse_PERMISSIONSHIP_CONDITIONAL_PERMISSION,
		PartialCaveatInfo: &v1pb.PartialCaveatInfo{MissingRequiredContext: []string{"ip"}},
	}}
	client := New(Config{}, checker, logging.NewNopLogger())

	resp, err := client.IsAuthorized(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "ip")
}

func TestBuildsCheckRequest(t *testing.T) {
	checker := &fakeChecker{resp: permissionship(v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION)}
	client := New(Config{StorePrefix: true, FullyConsistent: true}, checker, logging.NewNopLogger())

	req := request()
	req.Context = map[string]any{"ip": "10.0.0.1", "level": 3}

	_, err := client.IsAuthorized(context.Background(), req)
	require.NoError(t, err)

	got := checker.last
	require.NotNil(t, got)
	assert.Equal(t, "store1/document", got.GetResource().GetObjectType())
	assert.Equal(t, "doc1", got.GetResource().GetObjectId())
	assert.Equal(t, "view", got.GetPermission())
	assert.Equal(t, "store1/user", got.GetSubject().GetObject().GetObjectType())
	assert.Equal(t, "alice", got.GetSubject().GetObject().GetObjectId())
	assert.True(t, got.GetConsistency().GetFullyConsistent())
	assert.Equal(t, "10.0.0.1", got.GetContext().GetFields()["ip"].GetStringValue())
	assert.InDelta(t, 3, got.GetContext().GetFields()["level"].GetNumberValue(), 0)
}

func TestWithoutStorePrefix(t *testing.T) {
	checker := &fakeChecker{resp: permissionship(v1pb.CheckPermissionResponse_PERMISSIONSHIP_NO_PERMISSION)}
	client := New(Config{}, checker, logging.NewNopLogger())

	_, err := client.IsAuthorized(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "document", checker.last.GetResource().GetObjectType())
	assert.Nil(t, checker.last.GetContext())
	assert.Nil(t, checker.last.GetConsistency())
}

func TestInvalidContextIsInvalidArgument(t *testing.T) {
	checker := &fakeChecker{}
	client := New(Config{}, checker, logging.NewNopLogger())

	req := request()
	req.Context = map[string]any{"bad": make(chan int)}

	_, err := client.IsAuthorized(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Nil(t, checker.last)
}

func TestBackendErrorKeepsStatus(t *testing.T) {
	checker := &fakeChecker{err: status.Error(codes.NotFound, "object definition `document` not found")}
	client := New(Config{}, checker, logging.NewNopLogger())

	_, err := client.IsAuthorized(context.Background(), request())
	require.Error(t, err)

	code, msg := rpcerror.Translate(err)
	assert.Equal(t, 404, code)
	assert.Equal(t, "object definition `document` not found", msg)
}

func TestEntitiesWarning(t *testing.T) {
	assert.Empty(t, entitiesWarning(nil))
	assert.Empty(t, entitiesWarning(json.RawMessage("null")))
	assert.Empty(t, entitiesWarning(json.RawMessage(" [] ")))
	assert.NotEmpty(t, entitiesWarning(json.RawMessage(`[{"user":"user:bob"}]`)))
}

func TestTokenCredentials(t *testing.T) {
	creds := tokenCredentials{token: "secret", requireTLS: true}
	md, err := creds.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", md["authorization"])
	assert.True(t, creds.RequireTransportSecurity())
}
