package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/pkg/api"
)

const (
	CatalogServiceName = "notapoint.v1.CatalogService"

	CatalogServiceCreateProductProcedure   = "/notapoint.v1.CatalogService/CreateProduct"
	CatalogServiceListProductsProcedure    = "/notapoint.v1.CatalogService/ListProducts"
	CatalogServiceCreateStoreProcedure     = "/notapoint.v1.CatalogService/CreateStore"
	CatalogServiceListStoresProcedure      = "/notapoint.v1.CatalogService/ListStores"
	CatalogServiceRecordPriceProcedure     = "/notapoint.v1.CatalogService/RecordPrice"
	CatalogServiceIngestReceiptProcedure   = "/notapoint.v1.CatalogService/IngestReceipt"
	CatalogServiceGetPriceHistoryProcedure = "/notapoint.v1.CatalogService/GetPriceHistory"
)

// CatalogServiceHandler is implemented by the server. CatalogService manages products, stores and price observations.
type CatalogServiceHandler interface {
	CreateProduct(context.Context, *connect.Request[api.CreateProductRequest]) (*connect.Response[api.CreateProductResponse], error)
	ListProducts(context.Context, *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error)
	CreateStore(context.Context, *connect.Request[api.CreateStoreRequest]) (*connect.Response[api.CreateStoreResponse], error)
	ListStores(context.Context, *connect.Request[api.ListStoresRequest]) (*connect.Response[api.ListStoresResponse], error)
	RecordPrice(context.Context, *connect.Request[api.RecordPriceRequest]) (*connect.Response[api.RecordPriceResponse], error)
	IngestReceipt(context.Context, *connect.Request[api.IngestReceiptRequest]) (*connect.Response[api.IngestReceiptResponse], error)
	GetPriceHistory(context.Context, *connect.Request[api.GetPriceHistoryRequest]) (*connect.Response[api.GetPriceHistoryResponse], error)
}

// NewCatalogServiceHandler returns the mount path and handler for svc.
func NewCatalogServiceHandler(svc CatalogServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + CatalogServiceName + "/", serviceMux{
		CatalogServiceCreateProductProcedure:   connect.NewUnaryHandler(CatalogServiceCreateProductProcedure, svc.CreateProduct, opts...),
		CatalogServiceListProductsProcedure:    connect.NewUnaryHandler(CatalogServiceListProductsProcedure, svc.ListProducts, opts...),
		CatalogServiceCreateStoreProcedure:     connect.NewUnaryHandler(CatalogServiceCreateStoreProcedure, svc.CreateStore, opts...),
		CatalogServiceListStoresProcedure:      connect.NewUnaryHandler(CatalogServiceListStoresProcedure, svc.ListStores, opts...),
		CatalogServiceRecordPriceProcedure:     connect.NewUnaryHandler(CatalogServiceRecordPriceProcedure, svc.RecordPrice, opts...),
		CatalogServiceIngestReceiptProcedure:   connect.NewUnaryHandler(CatalogServiceIngestReceiptProcedure, svc.IngestReceipt, opts...),
		CatalogServiceGetPriceHistoryProcedure: connect.NewUnaryHandler(CatalogServiceGetPriceHistoryProcedure, svc.GetPriceHistory, opts...),
	}
}

// CatalogServiceClient is a client for CatalogService.
type CatalogServiceClient interface {
	CreateProduct(context.Context, *connect.Request[api.CreateProductRequest]) (*connect.Response[api.CreateProductResponse], error)
	ListProducts(context.Context, *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error)
	CreateStore(context.Context, *connect.Request[api.CreateStoreRequest]) (*connect.Response[api.CreateStoreResponse], error)
	ListStores(context.Context, *connect.Request[api.ListStoresRequest]) (*connect.Response[api.ListStoresResponse], error)
	RecordPrice(context.Context, *connect.Request[api.RecordPriceRequest]) (*connect.Response[api.RecordPriceResponse], error)
	IngestReceipt(context.Context, *connect.Request[api.IngestReceiptRequest]) (*connect.Response[api.IngestReceiptResponse], error)
	GetPriceHistory(context.Context, *connect.Request[api.GetPriceHistoryRequest]) (*connect.Response[api.GetPriceHistoryResponse], error)
}

// NewCatalogServiceClient creates a client for the service at baseURL.
func NewCatalogServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) CatalogServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &catalogServiceClient{
		createProduct:   connect.NewClient[api.CreateProductRequest, api.CreateProductResponse](httpClient, baseURL+CatalogServiceCreateProductProcedure, opts...),
		listProducts:    connect.NewClient[api.ListProductsRequest, api.ListProductsResponse](httpClient, baseURL+CatalogServiceListProductsProcedure, opts...),
		createStore:     connect.NewClient[api.CreateStoreRequest, api.CreateStoreResponse](httpClient, baseURL+CatalogServiceCreateStoreProcedure, opts...),
		listStores:      connect.NewClient[api.ListStoresRequest, api.ListStoresResponse](httpClient, baseURL+CatalogServiceListStoresProcedure, opts...),
		recordPrice:     connect.NewClient[api.RecordPriceRequest, api.RecordPriceResponse](httpClient, baseURL+CatalogServiceRecordPriceProcedure, opts...),
		ingestReceipt:   connect.NewClient[api.IngestReceiptRequest, api.IngestReceiptResponse](httpClient, baseURL+CatalogServiceIngestReceiptProcedure, opts...),
		getPriceHistory: connect.NewClient[api.GetPriceHistoryRequest, api.GetPriceHistoryResponse](httpClient, baseURL+CatalogServiceGetPriceHistoryProcedure, opts...),
	}
}

type catalogServiceClient struct {
	createProduct   *connect.Client[api.CreateProductRequest, api.CreateProductResponse]
	listProducts    *connect.Client[api.ListProductsRequest, api.ListProductsResponse]
	createStore     *connect.Client[api.CreateStoreRequest, api.CreateStoreResponse]
	listStores      *connect.Client[api.ListStoresRequest, api.ListStoresResponse]
	recordPrice     *connect.Client[api.RecordPriceRequest, api.RecordPriceResponse]
	ingestReceipt   *connect.Client[api.IngestReceiptRequest, api.IngestReceiptResponse]
	getPriceHistory *connect.Client[api.GetPriceHistoryRequest, api.GetPriceHistoryResponse]
}

func (c *catalogServiceClient) CreateProduct(ctx context.Context, req *connect.Request[api.CreateProductRequest]) (*connect.Response[api.CreateProductResponse], error) {
	return c.createProduct.CallUnary(ctx, req)
}

func (c *catalogServiceClient) ListProducts(ctx context.Context, req *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error) {
	return c.listProducts.CallUnary(ctx, req)
}

func (c *catalogServiceClient) CreateStore(ctx context.Context, req *connect.Request[api.CreateStoreRequest]) (*connect.Response[api.CreateStoreResponse], error) {
	return c.createStore.CallUnary(ctx, req)
}

func (c *catalogServiceClient) ListStores(ctx context.Context, req *connect.Request[api.ListStoresRequest]) (*connect.Response[api.ListStoresResponse], error) {
	return c.listStores.CallUnary(ctx, req)
}

func (c *catalogServiceClient) RecordPrice(ctx context.Context, req *connect.Request[api.RecordPriceRequest]) (*connect.Response[api.RecordPriceResponse], error) {
	return c.recordPrice.CallUnary(ctx, req)
}

func (c *catalogServiceClient) IngestReceipt(ctx context.Context, req *connect.Request[api.IngestReceiptRequest]) (*connect.Response[api.IngestReceiptResponse], error) {
	return c.ingestReceipt.CallUnary(ctx, req)
}

func (c *catalogServiceClient) GetPriceHistory(ctx context.Context, req *connect.Request[api.GetPriceHistoryRequest]) (*connect.Response[api.GetPriceHistoryResponse], error) {
	return c.getPriceHistory.CallUnary(ctx, req)
}
