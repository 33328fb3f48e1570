package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/pkg/api"
)

const (
	ShoppingListServiceName = "notapoint.v1.ShoppingListService"

	ShoppingListServiceCreateListProcedure  = "/notapoint.v1.ShoppingListService/CreateList"
	ShoppingListServiceGetListProcedure     = "/notapoint.v1.ShoppingListService/GetList"
	ShoppingListServiceListListsProcedure   = "/notapoint.v1.ShoppingListService/ListLists"
	ShoppingListServiceAddItemProcedure     = "/notapoint.v1.ShoppingListService/AddItem"
	ShoppingListServiceRemoveItemProcedure  = "/notapoint.v1.ShoppingListService/RemoveItem"
	ShoppingListServiceToggleItemProcedure  = "/notapoint.v1.ShoppingListService/ToggleItem"
	ShoppingListServiceSetQuantityProcedure = "/notapoint.v1.ShoppingListService/SetQuantity"
	ShoppingListServiceDeleteListProcedure  = "/notapoint.v1.ShoppingListService/DeleteList"
)

// ShoppingListServiceHandler is implemented by the server. ShoppingListService manages the caller's shopping lists. Every call requires authentication.
type ShoppingListServiceHandler interface {
	CreateList(context.Context, *connect.Request[api.CreateListRequest]) (*connect.Response[api.ListResponse], error)
	GetList(context.Context, *connect.Request[api.GetListRequest]) (*connect.Response[api.ListResponse], error)
	ListLists(context.Context, *connect.Request[api.ListListsRequest]) (*connect.Response[api.ListListsResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.ListResponse], error)
	RemoveItem(context.Context, *connect.Request[api.RemoveItemRequest]) (*connect.Response[api.ListResponse], error)
	ToggleItem(context.Context, *connect.Request[api.ToggleItemRequest]) (*connect.Response[api.ListResponse], error)
	SetQuantity(context.Context, *connect.Request[api.SetQuantityRequest]) (*connect.Response[api.ListResponse], error)
	DeleteList(context.Context, *connect.Request[api.DeleteListRequest]) (*connect.Response[api.DeleteListResponse], error)
}

// NewShoppingListServiceHandler returns the mount path and handler for svc.
func NewShoppingListServiceHandler(svc ShoppingListServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + ShoppingListServiceName + "/", serviceMux{
		ShoppingListServiceCreateListProcedure:  connect.NewUnaryHandler(ShoppingListServiceCreateListProcedure, svc.CreateList, opts...),
		ShoppingListServiceGetListProcedure:     connect.NewUnaryHandler(ShoppingListServiceGetListProcedure, svc.GetList, opts...),
		ShoppingListServiceListListsProcedure:   connect.NewUnaryHandler(ShoppingListServiceListListsProcedure, svc.ListLists, opts...),
		ShoppingListServiceAddItemProcedure:     connect.NewUnaryHandler(ShoppingListServiceAddItemProcedure, svc.AddItem, opts...),
		ShoppingListServiceRemoveItemProcedure:  connect.NewUnaryHandler(ShoppingListServiceRemoveItemProcedure, svc.RemoveItem, opts...),
		ShoppingListServiceToggleItemProcedure:  connect.NewUnaryHandler(ShoppingListServiceToggleItemProcedure, svc.ToggleItem, opts...),
		ShoppingListServiceSetQuantityProcedure: connect.NewUnaryHandler(ShoppingListServiceSetQuantityProcedure, svc.SetQuantity, opts...),
		ShoppingListServiceDeleteListProcedure:  connect.NewUnaryHandler(ShoppingListServiceDeleteListProcedure, svc.DeleteList, opts...),
	}
}

// ShoppingListServiceClient is a client for ShoppingListService.
type ShoppingListServiceClient interface {
	CreateList(context.Context, *connect.Request[api.CreateListRequest]) (*connect.Response[api.ListResponse], error)
	GetList(context.Context, *connect.Request[api.GetListRequest]) (*connect.Response[api.ListResponse], error)
	ListLists(context.Context, *connect.Request[api.ListListsRequest]) (*connect.Response[api.ListListsResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.ListResponse], error)
	RemoveItem(context.Context, *connect.Request[api.RemoveItemRequest]) (*connect.Response[api.ListResponse], error)
	ToggleItem(context.Context, *connect.Request[api.ToggleItemRequest]) (*connect.Response[api.ListResponse], error)
	SetQuantity(context.Context, *connect.Request[api.SetQuantityRequest]) (*connect.Response[api.ListResponse], error)
	DeleteList(context.Context, *connect.Request[api.DeleteListRequest]) (*connect.Response[api.DeleteListResponse], error)
}

// NewShoppingListServiceClient creates a client for the service at baseURL.
func NewShoppingListServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ShoppingListServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &shoppingListServiceClient{
		createList:  connect.NewClient[api.CreateListRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceCreateListProcedure, opts...),
		getList:     connect.NewClient[api.GetListRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceGetListProcedure, opts...),
		listLists:   connect.NewClient[api.ListListsRequest, api.ListListsResponse](httpClient, baseURL+ShoppingListServiceListListsProcedure, opts...),
		addItem:     connect.NewClient[api.AddItemRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceAddItemProcedure, opts...),
		removeItem:  connect.NewClient[api.RemoveItemRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceRemoveItemProcedure, opts...),
		toggleItem:  connect.NewClient[api.ToggleItemRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceToggleItemProcedure, opts...),
		setQuantity: connect.NewClient[api.SetQuantityRequest, api.ListResponse](httpClient, baseURL+ShoppingListServiceSetQuantityProcedure, opts...),
		deleteList:  connect.NewClient[api.DeleteListRequest, api.DeleteListResponse](httpClient, baseURL+ShoppingListServiceDeleteListProcedure, opts...),
	}
}

type shoppingListServiceClient struct {
	createList  *connect.Client[api.CreateListRequest, api.ListResponse]
	getList     *connect.Client[api.GetListRequest, api.ListResponse]
	listLists   *connect.Client[api.ListListsRequest, api.ListListsResponse]
	addItem     *connect.Client[api.AddItemRequest, api.ListResponse]
	removeItem  *connect.Client[api.RemoveItemRequest, api.ListResponse]
	toggleItem  *connect.Client[api.ToggleItemRequest, api.ListResponse]
	setQuantity *connect.Client[api.SetQuantityRequest, api.ListResponse]
	deleteList  *connect.Client[api.DeleteListRequest, api.DeleteListResponse]
}

func (c *shoppingListServiceClient) CreateList(ctx context.Context, req *connect.Request[api.CreateListRequest]) (*connect.Response[api.ListResponse], error) {
	return c.createList.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) GetList(ctx context.Context, req *connect.Request[api.GetListRequest]) (*connect.Response[api.ListResponse], error) {
	return c.getList.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) ListLists(ctx context.Context, req *connect.Request[api.ListListsRequest]) (*connect.Response[api.ListListsResponse], error) {
	return c.listLists.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.ListResponse], error) {
	return c.addItem.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) RemoveItem(ctx context.Context, req *connect.Request[api.RemoveItemRequest]) (*connect.Response[api.ListResponse], error) {
	return c.removeItem.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) ToggleItem(ctx context.Context, req *connect.Request[api.ToggleItemRequest]) (*connect.Response[api.ListResponse], error) {
	return c.toggleItem.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) SetQuantity(ctx context.Context, req *connect.Request[api.SetQuantityRequest]) (*connect.Response[api.ListResponse], error) {
	return c.setQuantity.CallUnary(ctx, req)
}

func (c *shoppingListServiceClient) DeleteList(ctx context.Context, req *connect.Request[api.DeleteListRequest]) (*connect.Response[api.DeleteListResponse], error) {
	return c.deleteList.CallUnary(ctx, req)
}
