// internal/authz/openfga/client.go
package openfga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"authzbff/internal/authz"
	"authzbff/internal/observability/logging"

	fga "github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config holds OpenFGA client configuration
type Config struct {
	// APIURL is the OpenFGA HTTP API URL
	APIURL string

	// APIToken is an optional preshared API token
	APIToken string
}

// Client implements authz.Client using OpenFGA
type Client struct {
	sdk    *fga.OpenFgaClient
	logger *logging.Logger
}

// New creates a new OpenFGA authorization client. The store is chosen per request.
func New(config Config, logger *logging.Logger) (*Client, error) {
	conf := &fga.ClientConfiguration{
		ApiUrl: config.APIURL,
	}
	if config.APIToken != "" {
		conf.Credentials = &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{ApiToken: config.APIToken},
		}
	}

	sdk, err := fga.NewSdkClient(conf)
	if err != nil {
		return nil, fmt.Errorf("openfga client init: %w", err)
	}

	return &Client{
		sdk:    sdk,
		logger: logger.WithModule("authz.openfga"),
	}, nil
}

// tupleKey is one contextual tuple supplied in the request entities
type tupleKey struct {
	User     string `json:"user"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// IsAuthorized runs an OpenFGA check in the request's policy store
func (c *Client) IsAuthorized(ctx context.Context, req *authz.Request) (*authz.Response, error) {
	tuples, err := contextualTuples(req.Entities)
	if err != nil {
		return nil, err
	}

	body := fga.ClientCheckRequest{
		User:             req.Principal.String(),
		Relation:         req.Action.EntityID,
		Object:           req.Resource.String(),
		ContextualTuples: tuples,
	}
	if len(req.Context) > 0 {
		checkContext := req.Context
		body.Context = &checkContext
	}

	storeID := req.PolicyStoreID
	resp, err := c.sdk.Check(ctx).
		Body(body).
		Options(fga.ClientCheckOptions{StoreId: &storeID}).
		Execute()
	if err != nil {
		logging.FromContext(ctx, c.logger).Debug("OpenFGA check failed",
			logging.Err(err),
			"store", storeID,
			"user", body.User,
			"relation", body.Relation,
			"object", body.Object,
		)
		return nil, toStatusError(err)
	}

	out := &authz.Response{Decision: authz.Deny}
	if resp.GetAllowed() {
		out.Decision = authz.Allow
	}
	if resolution := resp.GetResolution(); resolution != "" {
		out.DeterminingPolicies = []string{resolution}
	}
	return out, nil
}

// contextualTuples parses the entity list as {user, relation, object} tuples
func contextualTuples(raw json.RawMessage) ([]fga.ClientContextualTupleKey, error) {
	switch strings.TrimSpace(string(raw)) {
	case "", "null":
		return nil, nil
	}

	var keys []tupleKey
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "entities must be a list of {user, relation, object} tuples: %v", err)
	}

	tuples := make([]fga.ClientContextualTupleKey, 0, len(keys))
	for i, key := range keys {
		if key.User == "" || key.Relation == "" || key.Object == "" {
			return nil, status.Errorf(codes.InvalidArgument, "entity %d: user, relation and object are required", i+1)
		}
		tuples = append(tuples, fga.ClientContextualTupleKey{
			User:     key.User,
			Relation: key.Relation,
			Object:   key.Object,
		})
	}
	return tuples, nil
}

var codeByHTTPStatus = map[int]codes.Code{
	http.StatusBadRequest:          codes.InvalidArgument,
	http.StatusUnauthorized:        codes.Unauthenticated,
	http.StatusForbidden:           codes.PermissionDenied,
	http.StatusNotFound:            codes.NotFound,
	http.StatusConflict:            codes.AlreadyExists,
	http.StatusUnprocessableEntity: codes.InvalidArgument,
	http.StatusTooManyRequests:     codes.ResourceExhausted,
}

// toStatusError converts SDK HTTP failures into gRPC status errors.
// Context errors are returned unchanged.
func toStatusError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var httpErr interface{ ResponseStatusCode() int }
	if errors.As(err, &httpErr) {
		code, ok := codeByHTTPStatus[httpErr.ResponseStatusCode()]
		if !ok {
			code = codes.Unknown
			if httpErr.ResponseStatusCode() >= http.StatusInternalServerError {
				code = codes.Unavailable
			}
		}
		return status.Error(code, err.Error())
	}

	return status.Error(codes.Unavailable, err.Error())
}
