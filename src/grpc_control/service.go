package grpc_control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"market-pipeline/src/config"
	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements ControlServer
type ControlService struct {
	Config     *config.Config
	Pipeline   interfaces.IPipeline
	ConfigPath string
	Logger     *logger.Logger
	started    time.Time
}

var _ ControlServer = (*ControlService)(nil)

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	pipeline interfaces.IPipeline,
	cfgPath string,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Config:     cfg,
		Pipeline:   pipeline,
		ConfigPath: cfgPath,
		Logger:     log,
		started:    time.Now(),
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	m := s.Pipeline.Metrics()
	return newStruct(map[string]interface{}{
		"symbols":              stringList(s.Pipeline.Symbols()),
		"uptime_seconds":       time.Since(s.started).Seconds(),
		"refresh_time_seconds": m.RefreshTimeSeconds,
		"stale_series":         m.StaleSeries,
		"failed_series":        m.FailedSeries,
		"cache": map[string]interface{}{
			"entries": m.Cache.Entries,
			"hits":    m.Cache.Hits,
			"misses":  m.Cache.Misses,
			"loads":   m.Cache.Loads,
			"errors":  m.Cache.Errors,
		},
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListMarkets(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	markets, err := s.Pipeline.Markets(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	symbols := make([]string, 0, len(markets))
	for _, m := range markets {
		if m.Active {
			symbols = append(symbols, m.Symbol)
		}
	}
	return newStruct(map[string]interface{}{
		"count":   len(symbols),
		"symbols": stringList(symbols),
	})
}

// -----------------------------------------------------------------------------

// SetSymbols replaces the refreshed symbols and persists them to the config file.
func (s *ControlService) SetSymbols(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list := req.GetFields()["symbols"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "symbols list cannot be empty")
	}

	symbols := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		sym := strings.ToUpper(strings.TrimSpace(v.GetStringValue()))
		if sym == "" {
			return nil, status.Error(codes.InvalidArgument, "symbols must be non-empty strings")
		}
		symbols = append(symbols, sym)
	}

	if err := s.Pipeline.SetSymbols(ctx, symbols); err != nil {
		s.Logger.Error("gRPC: SetSymbols rejected: %v", err)
		return nil, toStatus(err)
	}

	current := s.Pipeline.Symbols()
	s.Config.Exchange.Symbols = current
	if !contains(current, s.Config.Exchange.DefaultSymbol) {
		s.Config.Exchange.DefaultSymbol = current[0]
	}

	saved := true
	if s.ConfigPath != "" {
		if err := s.Config.Save(s.ConfigPath); err != nil {
			s.Logger.Warning("gRPC: symbols applied but config not saved: %v", err)
			saved = false
		}
	}

	s.Logger.Info("gRPC: SetSymbols success. Count: %d", len(current))
	return newStruct(map[string]interface{}{
		"success": true,
		"saved":   saved,
		"symbols": stringList(current),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) InvalidateHeatmap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	symbol := strings.ToUpper(fields["symbol"].GetStringValue())
	period := fields["period"].GetStringValue()
	if symbol == "" || period == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol and period are required")
	}

	if err := s.Pipeline.InvalidateHeatmap(symbol, period); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Invalidated %s/%s", symbol, period),
	})
}

// -----------------------------------------------------------------------------

// toStatus maps pipeline errors onto grpc codes.
func toStatus(err error) error {
	var (
		validation *helpers.ValidationError
		gateway    *helpers.GatewayError
	)
	switch {
	case helpers.IsInvalidPeriod(err), errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &gateway):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// stringList converts to the []interface{} form structpb accepts.
func stringList(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
