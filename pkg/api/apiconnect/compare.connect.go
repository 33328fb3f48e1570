package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/pkg/api"
)

const (
	CompareServiceName = "notapoint.v1.CompareService"

	CompareServiceCompareSingleStoreProcedure = "/notapoint.v1.CompareService/CompareSingleStore"
	CompareServiceCompareComboProcedure       = "/notapoint.v1.CompareService/CompareCombo"
)

// CompareServiceHandler is implemented by the server. CompareService prices a list at single stores or split across stores.
type CompareServiceHandler interface {
	CompareSingleStore(context.Context, *connect.Request[api.CompareSingleStoreRequest]) (*connect.Response[api.CompareSingleStoreResponse], error)
	CompareCombo(context.Context, *connect.Request[api.CompareComboRequest]) (*connect.Response[api.CompareComboResponse], error)
}

// NewCompareServiceHandler returns the mount path and handler for svc.
func NewCompareServiceHandler(svc CompareServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + CompareServiceName + "/", serviceMux{
		CompareServiceCompareSingleStoreProcedure: connect.NewUnaryHandler(CompareServiceCompareSingleStoreProcedure, svc.CompareSingleStore, opts...),
		CompareServiceCompareComboProcedure:       connect.NewUnaryHandler(CompareServiceCompareComboProcedure, svc.CompareCombo, opts...),
	}
}

// CompareServiceClient is a client for CompareService.
type CompareServiceClient interface {
	CompareSingleStore(context.Context, *connect.Request[api.CompareSingleStoreRequest]) (*connect.Response[api.CompareSingleStoreResponse], error)
	CompareCombo(context.Context, *connect.Request[api.CompareComboRequest]) (*connect.Response[api.CompareComboResponse], error)
}

// NewCompareServiceClient creates a client for the service at baseURL.
func NewCompareServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) CompareServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &compareServiceClient{
		compareSingleStore: connect.NewClient[api.CompareSingleStoreRequest, api.CompareSingleStoreResponse](httpClient, baseURL+CompareServiceCompareSingleStoreProcedure, opts...),
		compareCombo:       connect.NewClient[api.CompareComboRequest, api.CompareComboResponse](httpClient, baseURL+CompareServiceCompareComboProcedure, opts...),
	}
}

type compareServiceClient struct {
	compareSingleStore *connect.Client[api.CompareSingleStoreRequest, api.CompareSingleStoreResponse]
	compareCombo       *connect.Client[api.CompareComboRequest, api.CompareComboResponse]
}

func (c *compareServiceClient) CompareSingleStore(ctx context.Context, req *connect.Request[api.CompareSingleStoreRequest]) (*connect.Response[api.CompareSingleStoreResponse], error) {
	return c.compareSingleStore.CallUnary(ctx, req)
}

func (c *compareServiceClient) CompareCombo(ctx context.Context, req *connect.Request[api.CompareComboRequest]) (*connect.Response[api.CompareComboResponse], error) {
	return c.compareCombo.CallUnary(ctx, req)
}
