package main

import (
	"strings"
	"testing"

	"aisentinel/config"
	"aisentinel/model"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("Claude is great\n\n   \nCursor crashed again  \n"))
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "Claude is great" || lines[1] != "Cursor crashed again" {
		t.Errorf("lines = %q", lines)
	}
}

func TestRunConfig(t *testing.T) {
	a := &app{cfg: config.Defaults()}
	a.cfg.Training.Epochs = 3
	a.cfg.Training.LSTMUnits = 16

	rc := a.runConfig(model.LSTM)
	if rc.Model.ModelType != model.LSTM || rc.Model.LSTMUnits != 16 || rc.Model.MaxLength != 128 {
		t.Errorf("model config = %+v", rc.Model)
	}
	if rc.Model.DropoutRate != 0.5 {
		t.Errorf("dropout = %v, want architecture default 0.5", rc.Model.DropoutRate)
	}
	if rc.Train.Epochs != 3 || rc.Train.Seed != 42 || rc.Train.Patience != 5 {
		t.Errorf("train config = %+v", rc.Train)
	}
	if rc.MaxVocabSize != 10000 || rc.OutputRoot != "./models" {
		t.Errorf("run config = %+v", rc)
	}

	a.cfg.Training.Dropout = 0.2
	if rc := a.runConfig(model.Transformer); rc.Model.DropoutRate != 0.2 || rc.Model.ModelType != model.Transformer {
		t.Errorf("transformer config = %+v", rc.Model)
	}
}
