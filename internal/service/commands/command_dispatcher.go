package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/service/reporting"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates the command word is not known.
var ErrUnsupportedCommand = errors.New("unsupported command")

// HelpText lists the supported commands.
const HelpText = `Bakery commands:
/cakes <shift> <cakes> [bread]
/use <shift> <quantity> <material>
/paid <shift> [YYYY-MM-DD]
/summary [YYYY-MM-DD]
/stock`

// ProductionRecorder is the production surface commands write through.
type ProductionRecorder interface {
	LogCakeProduction(ctx context.Context, shift string, date *time.Time, counts models.ProductionCounts) (models.ProductionLog, error)
	LogMaterialsUsage(ctx context.Context, shift string, date *time.Time, materials []models.MaterialRequest) (models.ProductionLog, error)
	PayWages(ctx context.Context, shift string, date time.Time) (int64, error)
}

// StockReader lists raw-material batches.
type StockReader interface {
	ListMaterials(ctx context.Context) ([]models.MaterialView, error)
}

// SummaryProvider builds daily summaries.
type SummaryProvider interface {
	DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error)
}

// Dispatcher executes parsed commands and returns the reply text.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements Dispatcher on top of the bakery services.
type Service struct {
	production ProductionRecorder
	stock      StockReader
	summary    SummaryProvider
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewService constructs a command dispatcher. Dates typed in commands are
// read in loc.
func NewService(production ProductionRecorder, stock StockReader, summary SummaryProvider, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		production: production,
		stock:      stock,
		summary:    summary,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleCommand runs cmd on behalf of sender.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandCakes:
		return s.logCakes(ctx, cmd.Args)
	case models.CommandUse:
		return s.logUsage(ctx, cmd.Args)
	case models.CommandPaid:
		return s.payWages(ctx, cmd.Args)
	case models.CommandSummary:
		return s.dailySummary(ctx, cmd.Args)
	case models.CommandStock:
		return s.stockLevels(ctx)
	case models.CommandHelp:
		return HelpText, nil
	default:
		return "", ErrUnsupportedCommand
	}
}

func (s *Service) logCakes(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("%w: /cakes <shift> <cakes> [bread]", ErrInvalidArguments)
	}

	cakes, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: cakes must be a whole number", ErrInvalidArguments)
	}
	bread := 0
	if len(args) == 3 {
		if bread, err = strconv.Atoi(args[2]); err != nil {
			return "", fmt.Errorf("%w: bread must be a whole number", ErrInvalidArguments)
		}
	}

	log, err := s.production.LogCakeProduction(ctx, shiftName(args[0]), nil, models.ProductionCounts{StandardCakes: cakes, Bread: bread})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d cakes and %d bread recorded, value %.2f.", log.Shift, cakes, bread, log.TotalValue), nil
}

func (s *Service) logUsage(ctx context.Context, args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("%w: /use <shift> <quantity> <material>", ErrInvalidArguments)
	}

	quantity, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: quantity must be a whole number", ErrInvalidArguments)
	}
	name := strings.Join(args[2:], " ")

	materials, err := s.stock.ListMaterials(ctx)
	if err != nil {
		return "", err
	}
	batchID := ""
	for _, m := range materials {
		if strings.EqualFold(m.Name, name) {
			batchID = m.ID
			name = m.Name
			break
		}
	}
	if batchID == "" {
		return "", models.NotFoundf("raw material %s", name)
	}

	log, err := s.production.LogMaterialsUsage(ctx, shiftName(args[0]), nil, []models.MaterialRequest{{MaterialID: batchID, Quantity: quantity}})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d %s used across %d batch(es).", log.Shift, quantity, name, len(log.MaterialsUsed)), nil
}

func (s *Service) payWages(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fmt.Errorf("%w: /paid <shift> [YYYY-MM-DD]", ErrInvalidArguments)
	}

	day := s.now()
	if len(args) == 2 {
		parsed, err := models.ParseDay(args[1], s.loc)
		if err != nil {
			return "", err
		}
		day = parsed
	}

	shift := shiftName(args[0])
	updated, err := s.production.PayWages(ctx, shift, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s wages for %s marked paid (%d logs).", shift, models.DayStart(day, s.loc).Format(models.DateLayout), updated), nil
}

func (s *Service) dailySummary(ctx context.Context, args []string) (string, error) {
	day := s.now()
	if len(args) > 0 {
		parsed, err := models.ParseDay(args[0], s.loc)
		if err != nil {
			return "", err
		}
		day = parsed
	}

	summary, err := s.summary.DailySummary(ctx, day)
	if err != nil {
		return "", err
	}
	return reporting.FormatDailyReport(summary), nil
}

func (s *Service) stockLevels(ctx context.Context) (string, error) {
	materials, err := s.stock.ListMaterials(ctx)
	if err != nil {
		return "", err
	}
	if len(materials) == 0 {
		return "No raw materials in stock.", nil
	}

	remaining := make(map[string]int)
	for _, m := range materials {
		remaining[m.Name] += m.Remaining
	}
	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Stock on hand:")
	for _, name := range names {
		fmt.Fprintf(&sb, "\n%s: %d", name, remaining[name])
	}
	return sb.String(), nil
}

// shiftName turns a bare shift number into "Shift N".
func shiftName(token string) string {
	if _, err := strconv.Atoi(token); err == nil {
		return "Shift " + token
	}
	return token
}
