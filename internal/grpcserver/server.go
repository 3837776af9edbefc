package grpcserver

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"swrfmods/internal/catalog"
	"swrfmods/pkg/models"
)

type Server struct {
	Loader *catalog.Loader
	Logger *zap.Logger
}

func NewServer(loader *catalog.Loader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Loader: loader, Logger: logger.Named("grpc")}
}

func (s *Server) ListMods(ctx context.Context, req *ListModsRequest) (*ListModsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit and offset must be >= 0")
	}

	era := strings.ToLower(strings.TrimSpace(req.Era))
	if era == "" {
		era = catalog.EraAll
	}

	page := catalog.NewPage(ctx, era, s.Loader, nil, s.Logger)
	defer page.Close()
	page.Query = catalog.DefaultQuery()
	if t := strings.TrimSpace(req.Type); t != "" {
		page.Query.Type = t
	}
	page.Query.Search = req.Q
	if req.Sort != "" {
		page.Query.Sort = catalog.SortOption(req.Sort)
	}
	page.View = catalog.ParseViewMode(req.View)

	if err := page.Load(); err != nil {
		if errors.Is(err, catalog.ErrUnknownEra) {
			return nil, status.Error(codes.NotFound, "unknown era")
		}
		return nil, status.FromContextError(err).Err()
	}

	cards := page.Cards(nil)
	total := len(cards)
	start := min(int(req.Offset), total)
	end := total
	if req.Limit > 0 {
		end = min(start+int(req.Limit), total)
	}

	return &ListModsResponse{
		Era:    page.Era,
		Types:  page.Types(),
		Total:  int32(total),
		Limit:  req.Limit,
		Offset: req.Offset,
		Items:  cards[start:end],
	}, nil
}

func (s *Server) GetMod(ctx context.Context, req *GetModRequest) (*GetModResponse, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	id := models.ModID(strings.TrimSpace(req.ID))

	for _, m := range catalog.Annotate(s.Loader.Load(ctx)) {
		if m.ID == id {
			return &GetModResponse{Mod: catalog.BuildCards([]models.Mod{m}, catalog.ViewList, nil)[0]}, nil
		}
	}
	return nil, status.Error(codes.NotFound, "not found")
}
