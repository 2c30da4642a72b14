package model

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
)

// TrainConfig holds optimizer and callback settings.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64

	// Early stopping on validation loss; the best weights are restored
	// when training ends.
	Patience int

	// Learning-rate reduction on a validation-loss plateau.
	LRPatience int
	LRFactor   float64
	MinLR      float64

	// ClipNorm rescales a batch gradient whose L2 norm exceeds it. Zero
	// disables clipping.
	ClipNorm float64

	// CheckpointDir receives best_model.json whenever validation accuracy
	// improves. Empty disables checkpoints.
	CheckpointDir string

	Logger *slog.Logger
}

// DefaultTrainConfig returns the stock training settings.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       20,
		BatchSize:    32,
		LearningRate: 0.001,
		Seed:         42,
		Patience:     5,
		LRPatience:   3,
		LRFactor:     0.5,
		MinLR:        1e-7,
		ClipNorm:     5,
	}
}

// History records per-epoch metrics.
type History struct {
	Loss        []float64 `json:"loss"`
	Accuracy    []float64 `json:"accuracy"`
	ValLoss     []float64 `json:"val_loss"`
	ValAccuracy []float64 `json:"val_accuracy"`
	LR          []float64 `json:"lr"`
	BestEpoch   int       `json:"best_epoch"`
	StoppedAt   int       `json:"stopped_epoch,omitempty"`
}

// Epochs is the number of completed epochs.
func (h *History) Epochs() int { return len(h.Loss) }

// Fit trains on train and monitors val. When val is empty the training
// metrics are monitored instead. Cancelling ctx stops after the current batch
// and restores the best weights seen so far.
func (m *Model) Fit(ctx context.Context, train, val []Sample, cfg TrainConfig) (*History, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	opt := NewAdam(cfg.LearningRate)
	params := m.Params()
	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	hist := &History{}
	bestLoss, plateauLoss, bestAcc := math.Inf(1), math.Inf(1), math.Inf(-1)
	var best [][]float64
	wait, plateau := 0, 0

	defer func() {
		if best != nil {
			m.restore(best)
		}
	}()

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		hits := 0
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := min(start+cfg.BatchSize, len(order))
			for _, idx := range order[start:end] {
				l, ok := m.step(train[idx], rng)
				lossSum += l
				if ok {
					hits++
				}
			}
			scale := 1 / float64(end-start)
			if cfg.ClipNorm > 0 {
				if norm := gradNorm(params) * scale; norm > cfg.ClipNorm {
					scale *= cfg.ClipNorm / norm
				}
			}
			opt.Step(params, scale)
		}

		n := math.Max(float64(len(train)), 1)
		loss, acc := lossSum/n, float64(hits)/n
		valLoss, valAcc := loss, acc
		if len(val) > 0 {
			valLoss, valAcc, _ = m.Evaluate(val)
		}
		hist.Loss = append(hist.Loss, loss)
		hist.Accuracy = append(hist.Accuracy, acc)
		hist.ValLoss = append(hist.ValLoss, valLoss)
		hist.ValAccuracy = append(hist.ValAccuracy, valAcc)
		hist.LR = append(hist.LR, opt.LR)

		log.Info("epoch finished",
			"epoch", epoch+1, "loss", loss, "accuracy", acc,
			"val_loss", valLoss, "val_accuracy", valAcc, "lr", opt.LR)

		if valAcc > bestAcc {
			bestAcc = valAcc
			if cfg.CheckpointDir != "" {
				path := filepath.Join(cfg.CheckpointDir, "best_model.json")
				if err := m.Save(path); err != nil {
					return hist, err
				}
				log.Info("checkpoint saved", "path", path, "val_accuracy", valAcc)
			}
		}

		if valLoss < plateauLoss-1e-4 {
			plateauLoss = valLoss
			plateau = 0
		} else {
			plateau++
			if cfg.LRPatience > 0 && plateau >= cfg.LRPatience && opt.LR > cfg.MinLR {
				opt.LR = math.Max(opt.LR*cfg.LRFactor, cfg.MinLR)
				plateau = 0
				log.Info("reducing learning rate", "lr", opt.LR)
			}
		}

		if valLoss < bestLoss {
			bestLoss = valLoss
			best = m.snapshot()
			hist.BestEpoch = epoch + 1
			wait = 0
			continue
		}
		wait++
		if cfg.Patience > 0 && wait >= cfg.Patience && epoch > 0 {
			hist.StoppedAt = epoch + 1
			log.Info("early stopping", "epoch", epoch+1, "best_epoch", hist.BestEpoch)
			break
		}
	}
	return hist, nil
}
