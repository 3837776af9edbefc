package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"swrfmods/internal/catalog"
)

const ServiceName = "swrfmods.Catalog"

type ListModsRequest struct {
	Era    string `json:"era"`
	Type   string `json:"type,omitempty"`
	Q      string `json:"q,omitempty"`
	Sort   string `json:"sort,omitempty"`
	View   string `json:"view,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
	Offset int32  `json:"offset,omitempty"`
}

type ListModsResponse struct {
	Era    string         `json:"era"`
	Types  []string       `json:"types"`
	Total  int32          `json:"total"`
	Limit  int32          `json:"limit"`
	Offset int32          `json:"offset"`
	Items  []catalog.Card `json:"items"`
}

type GetModRequest struct {
	ID string `json:"id"`
}

type GetModResponse struct {
	Mod catalog.Card `json:"mod"`
}

// CatalogServer is the server API of the catalog service.
type CatalogServer interface {
	ListMods(context.Context, *ListModsRequest) (*ListModsResponse, error)
	GetMod(context.Context, *GetModRequest) (*GetModResponse, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListMods", Handler: listModsHandler},
		{MethodName: "GetMod", Handler: getModHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swrfmods/catalog",
}

func listModsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListModsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).ListMods(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListMods"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).ListMods(ctx, req.(*ListModsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getModHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetModRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetMod(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetMod"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetMod(ctx, req.(*GetModRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CatalogClient calls the catalog service with the JSON codec.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) ListMods(ctx context.Context, in *ListModsRequest, opts ...grpc.CallOption) (*ListModsResponse, error) {
	out := new(ListModsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListMods", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) GetMod(ctx context.Context, in *GetModRequest, opts ...grpc.CallOption) (*GetModResponse, error) {
	out := new(GetModResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetMod", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
