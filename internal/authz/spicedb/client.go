// internal/authz/spicedb/client.go
package spicedb

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"

	"authzbff/internal/authz"
	"authzbff/internal/observability/logging"

	v1pb "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/authzed/authzed-go/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PermissionsChecker is the part of the SpiceDB permissions service used here
type PermissionsChecker interface {
	CheckPermission(ctx context.Context, in *v1pb.CheckPermissionRequest, opts ...grpc.CallOption) (*v1pb.CheckPermissionResponse, error)
}

// Config holds SpiceDB client configuration
type Config struct {
	// Endpoint is the SpiceDB endpoint
	Endpoint string

	// Insecure indicates whether to use an insecure connection
	Insecure bool

	// Token is the SpiceDB preshared key
	Token string

	// StorePrefix applies the policy store id as object type prefix (store/type)
	StorePrefix bool

	// FullyConsistent requests fully consistent checks
	FullyConsistent bool
}

// Client implements authz.Client using SpiceDB
type Client struct {
	checker         PermissionsChecker
	storePrefix     bool
	fullyConsistent bool
	logger          *logging.Logger
}

// New creates a new SpiceDB authorization client
func New(config Config, checker PermissionsChecker, logger *logging.Logger) *Client {
	return &Client{
		checker:         checker,
		storePrefix:     config.StorePrefix,
		fullyConsistent: config.FullyConsistent,
		logger:          logger.WithModule("authz.spicedb"),
	}
}

// Dial connects to SpiceDB with the configured transport and token
func Dial(config Config) (*authzed.Client, error) {
	var opts []grpc.DialOption
	if config.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	opts = append(opts, grpc.WithPerRPCCredentials(tokenCredentials{
		token:      config.Token,
		requireTLS: !config.Insecure,
	}))

	client, err := authzed.NewClient(config.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SpiceDB client: %w", err)
	}
	return client, nil
}

// tokenCredentials sends the preshared key as a bearer token on every call
type tokenCredentials struct {
	token      string
	requireTLS bool
}

func (t tokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + t.token}, nil
}

func (t tokenCredentials) RequireTransportSecurity() bool {
	return t.requireTLS
}

// IsAuthorized checks whether the principal holds the action's permission on the resource
func (c *Client) IsAuthorized(ctx context.Context, req *authz.Request) (*authz.Response, error) {
	checkReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx, c.logger)

	resp, err := c.checker.CheckPermission(ctx, checkReq)
	if err != nil {
		logger.Debug("Error checking permission with SpiceDB",
			logging.Err(err),
			"subject", req.Principal.String(),
			"resource", req.Resource.String(),
			"permission", req.Action.EntityID,
		)
		return nil, fmt.Errorf("spicedb check permission: %w", err)
	}

	out := &authz.Response{Decision: authz.Unspecified}
	if ignored := entitiesWarning(req.Entities); ignored != "" {
		out.Errors = append(out.Errors, ignored)
	}

	switch resp.GetPermissionship() {
	case v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION:
		out.Decision = authz.Allow
	case v1pb.CheckPermissionResponse_PERMISSIONSHIP_NO_PERMISSION:
		out.Decision = authz.Deny
	case v1pb.CheckPermissionResponse_PERMISSIONSHIP_CONDITIONAL_PERMISSION:
		missing := resp.GetPartialCaveatInfo().GetMissingRequiredContext()
		out.Errors = append(out.Errors, "conditional permission, missing context: "+strings.Join(missing, ", "))
	}

	if token := resp.GetCheckedAt().GetToken(); token != "" {
		logger.Debug("Permission checked",
			"permission", req.Action.EntityID,
			"decision", out.Decision,
			"checked_at", token,
		)
	}

	return out, nil
}

func (c *Client) buildRequest(req *authz.Request) (*v1pb.CheckPermissionRequest, error) {
	checkReq := &v1pb.CheckPermissionRequest{
		Resource: &v1pb.ObjectReference{
			ObjectType: c.objectType(req.PolicyStoreID, req.Resource.EntityType),
			ObjectId:   req.Resource.EntityID,
		},
		Permission: req.Action.EntityID,
		Subject: &v1pb.SubjectReference{
			Object: &v1pb.ObjectReference{
				ObjectType: c.objectType(req.PolicyStoreID, req.Principal.EntityType),
				ObjectId:   req.Principal.EntityID,
			},
		},
	}

	if len(req.Context) > 0 {
		caveatContext, err := structpb.NewStruct(req.Context)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid context: %v", err)
		}
		checkReq.Context = caveatContext
	}

	if c.fullyConsistent {
		checkReq.Consistency = &v1pb.Consistency{
			Requirement: &v1pb.Consistency_FullyConsistent{FullyConsistent: true},
		}
	}

	return checkReq, nil
}

func (c *Client) objectType(storeID, entityType string) string {
	if c.storePrefix && storeID != "" {
		return storeID + "/" + entityType
	}
	return entityType
}

// entitiesWarning reports a non-empty entity list, which SpiceDB checks cannot use
func entitiesWarning(raw json.RawMessage) string {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", "{}":
		return ""
	}
	return "entities are not supported by the spicedb backend and were ignored"
}
