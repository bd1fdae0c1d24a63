package datamodule

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cspine-ai/go-landmark/dataloader"
	"github.com/cspine-ai/go-landmark/datasets"
)

// numClasses is the number of vertebra landmark classes the module reports.
// Note the rendered heatmaps carry 24 channels; the discrepancy is
// inherited from the annotation format and left as-is.
const numClasses = 23

// Stage names passed by the training orchestrator.
const (
	StageFit  = "fit"
	StageTest = "test"
)

// DataModule wires the cervical landmark datasets into train/val/test
// dataloaders for an external training loop.
//
// Setup is idempotent: datasets are constructed once per instance, and the
// partition is seeded so membership is reproducible across runs.
type DataModule struct {
	cfg       Config
	worldSize int

	trainBatchPerDevice int
	testBatchPerDevice  int

	dataTrain *datasets.CervicalDataset
	dataVal   *datasets.CervicalDataset
	dataTest  *datasets.CervicalDataset
}

// Option configures a DataModule.
type Option func(*DataModule)

// WithWorldSize declares the number of devices the orchestrator runs on.
// Setup divides the configured batch sizes by it.
func WithWorldSize(n int) Option {
	return func(m *DataModule) { m.worldSize = n }
}

// New creates a DataModule from cfg.
//
// Arguments:
//   - cfg: The data pipeline configuration.
//   - opts: Optional module settings.
//
// Returns:
//   - *DataModule: The module.
//   - error: A configuration error if cfg is invalid.
func New(cfg Config, opts ...Option) (*DataModule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &DataModule{
		cfg:                 cfg,
		worldSize:           1,
		trainBatchPerDevice: cfg.TrainBatchSize,
		testBatchPerDevice:  cfg.TestBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.worldSize < 1 {
		return nil, errors.Errorf("datamodule: world size must be positive, got %d", m.worldSize)
	}
	return m, nil
}

// NumClasses returns the number of landmark classes.
func (m *DataModule) NumClasses() int {
	return numClasses
}

// PrepareData is a no-op; the datasets read straight from disk.
func (m *DataModule) PrepareData() {}

// Setup adjusts batch sizes for the world size and constructs the dataset
// partitions. Calling it again is a no-op once data is loaded.
//
// Arguments:
//   - stage: The orchestrator stage (StageFit or StageTest); informational.
//
// Returns:
//   - error: A configuration error if a batch size is not divisible by the
//     world size, or a dataset error if loading fails.
func (m *DataModule) Setup(stage string) error {
	if m.worldSize > 1 {
		if m.cfg.TrainBatchSize%m.worldSize != 0 {
			return errors.Errorf(
				"datamodule: train batch size (%d) is not divisible by the number of devices (%d)",
				m.cfg.TrainBatchSize, m.worldSize)
		}
		if m.cfg.TestBatchSize%m.worldSize != 0 {
			return errors.Errorf(
				"datamodule: test batch size (%d) is not divisible by the number of devices (%d)",
				m.cfg.TestBatchSize, m.worldSize)
		}
		m.trainBatchPerDevice = m.cfg.TrainBatchSize / m.worldSize
		m.testBatchPerDevice = m.cfg.TestBatchSize / m.worldSize
	}

	if m.dataTrain != nil && m.dataVal != nil && m.dataTest != nil {
		return nil
	}

	base, err := datasets.NewBaseDataset(m.cfg.DataRoot)
	if err != nil {
		return err
	}
	trainSet, testSet, err := datasets.RandomSplit(base, m.cfg.TrainSplit, m.cfg.TestSplit, datasets.SplitSeed)
	if err != nil {
		return err
	}

	var cervicalOpts []datasets.CervicalOption
	if m.cfg.HeatmapSigma > 0 {
		cervicalOpts = append(cervicalOpts, datasets.WithSigma(m.cfg.HeatmapSigma))
	}
	m.dataTrain = datasets.NewCervicalDataset(trainSet, datasets.ModeTrain, m.cfg.TrainTransforms, cervicalOpts...)
	m.dataVal = datasets.NewCervicalDataset(testSet, datasets.ModeVal, m.cfg.TestTransforms, cervicalOpts...)
	m.dataTest = datasets.NewCervicalDataset(testSet, datasets.ModeTest, m.cfg.TestTransforms, cervicalOpts...)

	logrus.Debugf("datamodule: setup stage=%s train=%d eval=%d", stage, trainSet.Len(), testSet.Len())
	return nil
}

// TrainDataloader returns the shuffled training loader. Every sampled item
// contributes its pair of views, so batches carry twice the per-device
// batch size.
func (m *DataModule) TrainDataloader() (*dataloader.Loader, error) {
	if m.dataTrain == nil {
		return nil, errors.New("datamodule: Setup has not run")
	}
	return dataloader.New(m.dataTrain, dataloader.Options{
		BatchSize: m.trainBatchPerDevice,
		Workers:   m.cfg.NumWorkers,
		Shuffle:   true,
		Seed:      datasets.SplitSeed,
		PinMemory: m.cfg.PinMemory,
		Collate:   dataloader.PairConcat,
	})
}

// ValDataloader returns the validation loader.
func (m *DataModule) ValDataloader() (*dataloader.Loader, error) {
	return m.evalDataloader(m.dataVal)
}

// TestDataloader returns the test loader.
func (m *DataModule) TestDataloader() (*dataloader.Loader, error) {
	return m.evalDataloader(m.dataTest)
}

func (m *DataModule) evalDataloader(ds *datasets.CervicalDataset) (*dataloader.Loader, error) {
	if ds == nil {
		return nil, errors.New("datamodule: Setup has not run")
	}
	return dataloader.New(ds, dataloader.Options{
		BatchSize: m.testBatchPerDevice,
		Workers:   m.cfg.NumWorkers,
		PinMemory: m.cfg.PinMemory,
	})
}

// TrainBatchSizePerDevice returns the adjusted training batch size.
func (m *DataModule) TrainBatchSizePerDevice() int {
	return m.trainBatchPerDevice
}

// TestBatchSizePerDevice returns the adjusted evaluation batch size.
func (m *DataModule) TestBatchSizePerDevice() int {
	return m.testBatchPerDevice
}

// Teardown is a no-op; the datasets hold no resources needing release.
func (m *DataModule) Teardown(stage string) {}

// StateDict returns an empty state; the module persists nothing.
func (m *DataModule) StateDict() map[string]any {
	return map[string]any{}
}

// LoadStateDict restores nothing and never fails.
func (m *DataModule) LoadStateDict(state map[string]any) {}
