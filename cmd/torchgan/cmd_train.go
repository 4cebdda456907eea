package main

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/shaunstanislauslau/torchgan/checkpoints"
	"github.com/shaunstanislauslau/torchgan/history"
	"github.com/shaunstanislauslau/torchgan/losses"
	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/optimizer"
	"github.com/shaunstanislauslau/torchgan/tensor"
	"github.com/shaunstanislauslau/torchgan/vision/dataloader"
	"github.com/shaunstanislauslau/torchgan/vision/dataset"
)

var trainFlags struct {
	configPath     string
	dbPath         string
	checkpointPath string
	name           string
	steps          int
	batchSize      int
	seed           int64
	logEvery       int
	verbose        bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a boundary-equilibrium GAN on synthetic data",
	Long: `Runs a demo training loop: a dense generator and discriminator train
against a synthetic Gaussian dataset under the boundary-equilibrium
controller. Every step is recorded in the history store and the final
state is written out as a checkpoint.`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVarP(&trainFlags.configPath, "config", "c", "", "YAML config file (flags override it)")
	f.StringVar(&trainFlags.dbPath, "db", "torchgan.db", "History store path")
	f.StringVarP(&trainFlags.checkpointPath, "out", "o", "checkpoint.bin", "Checkpoint output path (.json for JSON format)")
	f.StringVar(&trainFlags.name, "name", "", "Run name")
	f.IntVar(&trainFlags.steps, "steps", 0, "Number of discriminator updates")
	f.IntVar(&trainFlags.batchSize, "batch-size", 0, "Batch size")
	f.Int64Var(&trainFlags.seed, "seed", 0, "Random seed")
	f.IntVar(&trainFlags.logEvery, "log-every", 25, "Steps between progress lines")
	f.BoolVarP(&trainFlags.verbose, "verbose", "v", false, "Debug logging")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	config := defaultTrainConfig()
	if trainFlags.configPath != "" {
		loaded, err := loadTrainConfig(trainFlags.configPath)
		if err != nil {
			return err
		}
		config = loaded
	}
	f := cmd.Flags()
	if f.Changed("name") {
		config.Name = trainFlags.name
	}
	if f.Changed("steps") {
		config.Steps = trainFlags.steps
	}
	if f.Changed("batch-size") {
		config.BatchSize = trainFlags.batchSize
	}
	if f.Changed("seed") {
		config.Seed = trainFlags.seed
	}
	if err := config.validate(); err != nil {
		return err
	}

	log := newLogger(trainFlags.verbose)
	tensor.SetRandomSeed(config.Seed)

	ctx := cmd.Context()
	store := history.NewRunStore(trainFlags.dbPath)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	configYAML, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	run, err := store.CreateRun(ctx, config.Name, string(configYAML))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	// Real data: a Gaussian blob offset from the origin so the
	// discriminator has a distribution to pull the generator toward.
	samples, err := tensor.RandomNormal([]int{config.DatasetSize, config.Features}, 0.5, 0.2)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}
	realData, err := dataset.NewTensorDataset(samples, nil)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}
	loader, err := dataloader.NewDataLoader(realData, dataloader.Config{
		BatchSize: config.BatchSize,
		Shuffle:   true,
		Seed:      config.Seed,
		DropLast:  true,
	})
	if err != nil {
		return fmt.Errorf("build loader: %w", err)
	}
	prefetcher, err := dataloader.NewPrefetcher(loader, dataloader.PrefetcherConfig{})
	if err != nil {
		return fmt.Errorf("build prefetcher: %w", err)
	}
	if err := prefetcher.Start(); err != nil {
		return fmt.Errorf("start prefetcher: %w", err)
	}
	defer prefetcher.Stop()

	generator, err := models.NewDenseGenerator(config.EncodingDims, config.HiddenSize, config.Features, 0, models.LabelNone)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}
	discriminator, err := models.NewDenseDiscriminator(config.Features, config.HiddenSize, 0, models.LabelNone)
	if err != nil {
		return fmt.Errorf("build discriminator: %w", err)
	}

	generatorOpt := optimizer.NewAdamDefault(generator.Parameters(), config.GeneratorLR)
	discriminatorOpt := optimizer.NewAdamDefault(discriminator.Parameters(), config.DiscriminatorLR)

	var schedule optimizer.LRScheduler = &optimizer.NoOpScheduler{}
	if config.LRStepSize > 0 {
		schedule = optimizer.NewStepLRScheduler(config.LRStepSize, config.LRGamma)
	}

	generatorLoss := losses.NewBoundaryEquilibriumGeneratorLossDefault()
	discriminatorLoss := losses.NewBoundaryEquilibriumDiscriminatorLoss(
		tensor.ReduceMean, nil, config.InitK, config.Lambda, config.Gamma)

	log.Info("starting run",
		slog.String("run_id", run.ID),
		slog.String("name", config.Name),
		slog.Int("steps", config.Steps),
		slog.Int("batch_size", config.BatchSize),
		slog.String("lr_schedule", schedule.GetName()))

	epoch := 0
	bestConvergence := math.Inf(1)
	for step := 1; step <= config.Steps; step++ {
		batch, err := prefetcher.Next()
		if err != nil {
			return fmt.Errorf("load batch: %w", err)
		}
		if batch.Epoch != epoch {
			epoch = batch.Epoch
			discriminatorOpt.SetLR(schedule.GetLR(epoch, config.DiscriminatorLR))
		}

		discriminatorValue, err := discriminatorLoss.TrainOps(
			generator, discriminator, discriminatorOpt, batch.Samples, config.BatchSize, tensor.CPU, nil)
		if err != nil {
			return fmt.Errorf("discriminator step %d: %w", step, err)
		}
		generatorValue, err := generatorLoss.TrainOps(
			generator, discriminator, generatorOpt, tensor.CPU, config.BatchSize, nil)
		if err != nil {
			return fmt.Errorf("generator step %d: %w", step, err)
		}

		record := history.StepRecord{
			RunID:             run.ID,
			Step:              step,
			Epoch:             epoch,
			GeneratorLoss:     generatorValue,
			DiscriminatorLoss: discriminatorValue,
			K:                 discriminatorLoss.K(),
		}
		if convergence, ok := discriminatorLoss.State().ConvergenceMetric(); ok {
			record.Convergence = convergence
			record.HasConvergence = true
			if convergence < bestConvergence {
				bestConvergence = convergence
			}
		}
		if err := store.AppendStep(ctx, record); err != nil {
			return fmt.Errorf("record step %d: %w", step, err)
		}

		if step%trainFlags.logEvery == 0 || step == config.Steps {
			log.Info("step",
				slog.Int("step", step),
				slog.Int("epoch", epoch),
				slog.Float64("d_loss", discriminatorValue),
				slog.Float64("g_loss", generatorValue),
				slog.Float64("k", discriminatorLoss.K()),
				slog.Float64("convergence", record.Convergence))
		}
	}

	checkpoint, err := checkpoints.CaptureGAN(generator, discriminator, discriminatorLoss)
	if err != nil {
		return fmt.Errorf("capture checkpoint: %w", err)
	}
	checkpoint.TrainingState = checkpoints.TrainingState{
		Epoch:           epoch,
		Step:            config.Steps,
		GeneratorLR:     generatorOpt.GetLR(),
		DiscriminatorLR: discriminatorOpt.GetLR(),
		TotalSteps:      config.Steps,
	}
	if !math.IsInf(bestConvergence, 1) {
		checkpoint.TrainingState.BestConvergence = bestConvergence
	}
	checkpoint.Metadata.RunID = run.ID
	checkpoint.Metadata.Description = config.Name

	saver := checkpoints.NewCheckpointSaver(formatForPath(trainFlags.checkpointPath))
	if err := saver.SaveCheckpoint(checkpoint, trainFlags.checkpointPath); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", run.ID)
	fmt.Fprintf(out, "Steps:       %d (%d epochs)\n", config.Steps, epoch+1)
	fmt.Fprintf(out, "Final k:     %.6f\n", discriminatorLoss.K())
	if convergence, ok := discriminatorLoss.State().ConvergenceMetric(); ok {
		fmt.Fprintf(out, "Convergence: %.6f (best %.6f)\n", convergence, bestConvergence)
	}
	fmt.Fprintf(out, "Checkpoint:  %s\n", trainFlags.checkpointPath)
	return nil
}
