// Package training sequences the offline pipeline:
// prepare data → train → evaluate → persist, recording each run to the
// experiment tracker.
package training

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/aanand-mishra/churn-api/internal/dataset"
	"github.com/aanand-mishra/churn-api/internal/model"
	"github.com/aanand-mishra/churn-api/internal/storage"
	"github.com/aanand-mishra/churn-api/internal/storage/modelfile"
)

// Action is one CLI verb.
type Action string

const (
	ActionPrepareData Action = "prepare_data"
	ActionTrain       Action = "train"
	ActionEvaluate    Action = "evaluate"
)

// Actions lists the accepted verbs in usage order.
var Actions = []Action{ActionPrepareData, ActionTrain, ActionEvaluate}

// Outcome tells a completed action apart from a rejected one.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeUnknownAction
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeUnknownAction:
		return "unknown_action"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Run names and tags used for tracking.
const (
	trainingRunName   = "ChurnModelTraining"
	evaluationRunName = "ChurnModelEvaluation"
	artifactName      = "model"
)

// Options are the paths and hyperparameters an Orchestrator works with.
type Options struct {
	DatasetPath string
	ModelPath   string
	NEstimators int
	RandomState int64
	TestSize    float64
}

// Result reports what an action did.
type Result struct {
	Action       Action
	Outcome      Outcome
	TrainSamples int
	TestSamples  int
	Accuracy     float64
	RunID        string
}

// Orchestrator runs CLI actions. Its dependencies are fixed at
// construction; it holds no other state.
type Orchestrator struct {
	opts    Options
	tracker storage.Tracker
	log     *slog.Logger
	out     io.Writer
}

// New builds an Orchestrator. Human-facing progress lines go to out;
// diagnostics go to log.
func New(opts Options, tracker storage.Tracker, log *slog.Logger, out io.Writer) *Orchestrator {
	if opts.NEstimators <= 0 {
		opts.NEstimators = model.DefaultNEstimators
	}
	return &Orchestrator{opts: opts, tracker: tracker, log: log, out: out}
}

// Run dispatches one action. An unrecognised action prints usage and
// returns OutcomeUnknownAction with a nil error; data and model loading
// failures are returned as errors.
func (o *Orchestrator) Run(ctx context.Context, action string) (Result, error) {
	switch Action(action) {
	case ActionPrepareData:
		return o.prepareData()
	case ActionTrain:
		return o.train(ctx)
	case ActionEvaluate:
		return o.evaluate(ctx)
	default:
		o.log.Warn("unknown action", slog.String("action", action))
		fmt.Fprintln(o.out, "Unknown action. Use 'prepare_data', 'train', or 'evaluate'.")
		return Result{Action: Action(action), Outcome: OutcomeUnknownAction}, nil
	}
}

func (o *Orchestrator) prepare() (*dataset.Split, error) {
	split, err := dataset.Prepare(o.opts.DatasetPath, dataset.SplitOptions{
		Seed:     o.opts.RandomState,
		TestSize: o.opts.TestSize,
	})
	if err != nil {
		return nil, err
	}
	o.log.Debug("dataset prepared",
		slog.String("path", o.opts.DatasetPath),
		slog.Int("train", split.XTrain.Len()),
		slog.Int("test", split.XTest.Len()),
	)
	return split, nil
}

func (o *Orchestrator) prepareData() (Result, error) {
	split, err := o.prepare()
	if err != nil {
		return Result{}, err
	}
	fmt.Fprintln(o.out, "Data prepared successfully")
	fmt.Fprintf(o.out, "Training samples: %d, Test samples: %d\n", split.XTrain.Len(), split.XTest.Len())

	return Result{
		Action:       ActionPrepareData,
		Outcome:      OutcomeCompleted,
		TrainSamples: split.XTrain.Len(),
		TestSamples:  split.XTest.Len(),
	}, nil
}

func (o *Orchestrator) train(ctx context.Context) (Result, error) {
	split, err := o.prepare()
	if err != nil {
		return Result{}, err
	}

	run := o.startRun(ctx, trainingRunName, "training")
	run.param("model_type", model.ModelType)
	run.param("n_estimators", strconv.Itoa(o.opts.NEstimators))
	run.param("random_state", strconv.FormatInt(o.opts.RandomState, 10))

	pipeline, err := model.Train(split.XTrain, split.YTrain,
		model.WithNEstimators(o.opts.NEstimators),
		model.WithRandomState(o.opts.RandomState),
	)
	if err != nil {
		run.end(storage.RunFailed)
		return Result{}, err
	}

	accuracy, err := model.Evaluate(pipeline, split.XTest, split.YTest)
	if err != nil {
		run.end(storage.RunFailed)
		return Result{}, err
	}
	fmt.Fprintf(o.out, "Model trained with accuracy: %.4f\n", accuracy)
	run.metric("accuracy", accuracy)
	run.artifact(pipeline)

	if err := modelfile.Save(pipeline, o.opts.ModelPath); err != nil {
		run.end(storage.RunFailed)
		return Result{}, err
	}
	o.log.Info("model saved", slog.String("path", o.opts.ModelPath))
	run.end(storage.RunFinished)

	return Result{
		Action:       ActionTrain,
		Outcome:      OutcomeCompleted,
		TrainSamples: split.XTrain.Len(),
		TestSamples:  split.XTest.Len(),
		Accuracy:     accuracy,
		RunID:        run.id,
	}, nil
}

func (o *Orchestrator) evaluate(ctx context.Context) (Result, error) {
	split, err := o.prepare()
	if err != nil {
		return Result{}, err
	}
	pipeline, err := modelfile.Load(o.opts.ModelPath)
	if err != nil {
		return Result{}, err
	}
	accuracy, err := model.Evaluate(pipeline, split.XTest, split.YTest)
	if err != nil {
		return Result{}, err
	}
	fmt.Fprintf(o.out, "Loaded model accuracy: %.4f\n", accuracy)

	run := o.startRun(ctx, evaluationRunName, "evaluation")
	run.metric("accuracy", accuracy)
	run.artifact(pipeline)
	run.end(storage.RunFinished)

	return Result{
		Action:       ActionEvaluate,
		Outcome:      OutcomeCompleted,
		TrainSamples: split.XTrain.Len(),
		TestSamples:  split.XTest.Len(),
		Accuracy:     accuracy,
		RunID:        run.id,
	}, nil
}

// trackedRun logs to the tracker without ever failing the action: every
// tracker error is reported as a warning and later calls become no-ops if
// the run could not be started.
type trackedRun struct {
	ctx     context.Context
	tracker storage.Tracker
	log     *slog.Logger
	id      string
}

func (o *Orchestrator) startRun(ctx context.Context, name, stage string) *trackedRun {
	r := &trackedRun{ctx: ctx, tracker: o.tracker, log: o.log}
	if o.tracker == nil {
		return r
	}
	id, err := o.tracker.StartRun(ctx, name, map[string]string{"stage": stage})
	if err != nil {
		r.warn("start run", err)
		return r
	}
	r.id = id
	r.log = o.log.With(slog.String("run_id", id))
	return r
}

func (r *trackedRun) active() bool { return r.id != "" }

func (r *trackedRun) param(key, value string) {
	if !r.active() {
		return
	}
	if err := r.tracker.LogParam(r.ctx, r.id, key, value); err != nil {
		r.warn("log param "+key, err)
	}
}

func (r *trackedRun) metric(key string, value float64) {
	if !r.active() {
		return
	}
	if err := r.tracker.LogMetric(r.ctx, r.id, key, value); err != nil {
		r.warn("log metric "+key, err)
	}
}

func (r *trackedRun) artifact(p *model.Pipeline) {
	if !r.active() {
		return
	}
	var buf bytes.Buffer
	if err := modelfile.Encode(&buf, p); err != nil {
		r.warn("encode artifact", err)
		return
	}
	if err := r.tracker.LogArtifact(r.ctx, r.id, artifactName, buf.Bytes()); err != nil {
		r.warn("log artifact", err)
	}
}

func (r *trackedRun) end(status string) {
	if !r.active() {
		return
	}
	if err := r.tracker.EndRun(r.ctx, r.id, status); err != nil {
		r.warn("end run", err)
	}
}

func (r *trackedRun) warn(op string, err error) {
	r.log.Warn("experiment tracking failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
