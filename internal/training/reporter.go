package training

import (
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/progress"
)

// reporter turns fit and evaluate callbacks into progress events.
type reporter struct {
	runID  string
	emit   progress.Emitter
	params nn.TrainParams
}

var _ nn.Callback = (*reporter)(nil)

func (r *reporter) send(stage progress.Stage, msg string) {
	r.emit.Emit(progress.NewEvent(r.runID, stage, msg))
}

func (r *reporter) OnTrainBegin(p nn.TrainParams) { r.params = p }

func (r *reporter) OnEpochBegin(epoch int) {
	r.send(progress.StageEpochBegin, progress.EpochMessage(epoch+1, r.params.Epochs))
}

func (r *reporter) OnBatchEnd(batch int, logs nn.Logs) {
	r.send(progress.StageBatchProgress, progress.BatchMessage(batch, r.params.Steps, logs["loss"], batchMetric(logs)))
}

func (r *reporter) OnEpochEnd(int, nn.Logs) {}

func (r *reporter) OnTestBegin(nn.TrainParams) {
	r.send(progress.StageEvalBegin, progress.EvalBeginMessage)
}

func (r *reporter) OnTestEnd(logs nn.Logs) {
	r.send(progress.StageEvalEnd, progress.EvalResultMessage(evalMetric(logs), logs["loss"]))
}

func batchMetric(logs nn.Logs) string {
	if v, ok := logs["mse"]; ok {
		return fmt.Sprintf("MSE: %.4f", v)
	}
	if v, ok := logs["accuracy"]; ok {
		return fmt.Sprintf("Accuracy: %.4f", v)
	}
	if v, ok := logs["mae"]; ok {
		return fmt.Sprintf("MAE: %.4f", v)
	}
	return ""
}

func evalMetric(logs nn.Logs) string {
	if v, ok := logs["mse"]; ok {
		return fmt.Sprintf("MSE Loss- %.4f", v)
	}
	if v, ok := logs["accuracy"]; ok {
		return fmt.Sprintf("Accuracy- %.4f", v)
	}
	if v, ok := logs["mae"]; ok {
		return fmt.Sprintf("MAE- %.4f", v)
	}
	return ""
}
