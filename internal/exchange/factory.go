package exchange

import (
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// Options - параметры создания адаптеров брокера
type Options struct {
	Mock      bool   // позиции из файла, ордера исполняет PaperBroker
	MockFile  string // путь к файлу позиций
	FivePaisa FivePaisaConfig
}

// Adapters - набор адаптеров, которые использует мониторинг
type Adapters struct {
	Positions  PositionsSource
	Liquidator *Liquidator
	Mock       *MockPositions // nil при работе с брокером
	Name       string

	broker *FivePaisa
}

// NewAdapters создаёт источник позиций и Liquidator для выбранного режима
func NewAdapters(opts Options, logger *zap.Logger) *Adapters {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.Mock {
		mock := NewMockPositions(opts.MockFile)
		logger.Info("Using mock positions", zap.String("file", opts.MockFile))
		return &Adapters{
			Positions:  mock,
			Liquidator: NewLiquidator(mock, NewPaperBroker(mock, logger), logger),
			Mock:       mock,
			Name:       "paper",
		}
	}

	broker := NewFivePaisa(opts.FivePaisa, logger)
	positions := NewBrokerPositions(broker, logger)
	logger.Info("Using broker positions", utils.Broker(broker.GetName()))
	return &Adapters{
		Positions:  positions,
		Liquidator: NewLiquidator(positions, broker, logger),
		Name:       broker.GetName(),
		broker:     broker,
	}
}

// Close освобождает соединения брокера
func (a *Adapters) Close() {
	if a.broker != nil {
		a.broker.Close()
	}
}
